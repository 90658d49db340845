package voiceflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlow_Advance(t *testing.T) {
	f := New()
	assert.Equal(t, StepIncoming, f.Current())

	want := []Step{StepGreeting, StepIntent, StepResults, StepConfirmation, StepSuccess}
	for i, step := range want {
		s := f.Advance()
		assert.Equal(t, step, s.Current)
		assert.Equal(t, i+1, s.Index)
	}

	s := f.Advance()
	assert.Equal(t, StepSuccess, s.Current, "advance at the last step is a no-op")
	assert.True(t, s.Done)
}

func TestFlow_Replay(t *testing.T) {
	f := New()
	f.Advance()
	f.Advance()
	s := f.Replay()
	assert.Equal(t, StepIncoming, s.Current)
	assert.Equal(t, 0, s.Index)
	assert.False(t, s.Done)
	assert.Len(t, s.Steps, 6)
}

func TestIndex(t *testing.T) {
	assert.Equal(t, 3, Index(StepResults))
	assert.Equal(t, -1, Index(Step("hangup")))
}
