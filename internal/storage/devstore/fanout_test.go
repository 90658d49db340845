package devstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalbooking/internal/storage"
)

func TestClient_Dispatch(t *testing.T) {
	c := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.mu.Lock()
	tabA := c.addLocked(ctx, "profile-a")
	tabA2 := c.addLocked(ctx, "profile-a")
	tabB := c.addLocked(ctx, "profile-b")
	c.mu.Unlock()

	c.dispatch(`{"scope":"profile-a","key":"authToken","removed":true}`)
	c.dispatch(`{not json`)

	for _, s := range []*subscriber{tabA, tabA2} {
		select {
		case ch := <-s.ch:
			assert.Equal(t, storage.Change{Scope: "profile-a", Key: storage.KeyAuthToken, Removed: true}, ch)
		case <-time.After(time.Second):
			t.Fatal("subscriber of profile-a got nothing")
		}
	}
	select {
	case ch := <-tabB.ch:
		t.Fatalf("profile-b got foreign change %+v", ch)
	default:
	}
}

func TestClient_SlowSubscriberDoesNotBlock(t *testing.T) {
	c := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.mu.Lock()
	s := c.addLocked(ctx, "profile-a")
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			c.dispatch(`{"scope":"profile-a","key":"authToken","value":"t"}`)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked on a full subscriber")
	}
	assert.Len(t, s.ch, subscriberBuffer)
}

func TestClient_UnsubscribeAndClose(t *testing.T) {
	c := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	gone := c.addLocked(ctx, "profile-a")
	kept := c.addLocked(context.Background(), "profile-a")
	c.mu.Unlock()

	cancel()
	select {
	case _, open := <-gone.ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("cancelled subscriber was not closed")
	}

	require.NoError(t, c.Close())
	_, open := <-kept.ch
	assert.False(t, open)
	require.NoError(t, c.Close())

	_, err := c.Subscribe(context.Background(), "profile-a")
	assert.ErrorIs(t, err, storage.ErrClosed)
}
