package memory

import (
	"testing"

	"github.com/hospitalbooking/internal/storage/storagetest"
)

func TestClient_Conformance(t *testing.T) {
	c := New()
	defer c.Close()
	storagetest.Run(t, c)
}
