package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []string
}

func (f *flakySender) SendWelcome(_ context.Context, email, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("upstream 503")
	}
	f.sent = append(f.sent, email)
	return nil
}

func (f *flakySender) snapshot() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]string(nil), f.sent...)
}

func TestQueue_RetriesUntilDelivered(t *testing.T) {
	next := &flakySender{failures: 2}
	q := NewQueue(next, QueueConfig{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	require.NoError(t, q.SendWelcome(context.Background(), "a@b.io", "Ann", "http://localhost:5173"))
	require.Eventually(t, func() bool {
		_, sent := next.snapshot()
		return len(sent) == 1
	}, time.Second, 5*time.Millisecond)
	calls, _ := next.snapshot()
	assert.Equal(t, 3, calls)
}

func TestQueue_GivesUpAfterMaxAttempts(t *testing.T) {
	next := &flakySender{failures: 100}
	q := NewQueue(next, QueueConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	require.NoError(t, q.SendWelcome(context.Background(), "a@b.io", "Ann", ""))
	require.Eventually(t, func() bool {
		calls, _ := next.snapshot()
		return calls == 3
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	calls, sent := next.snapshot()
	assert.Equal(t, 3, calls)
	assert.Empty(t, sent)
}

func TestQueue_FullAndClosed(t *testing.T) {
	q := NewQueue(&flakySender{}, QueueConfig{Size: 1}, zerolog.Nop())
	require.NoError(t, q.SendWelcome(context.Background(), "a@b.io", "Ann", ""))
	assert.ErrorIs(t, q.SendWelcome(context.Background(), "c@d.io", "Cy", ""), ErrQueueFull)
	assert.Equal(t, 1, q.Pending())

	q.Close()
	q.Close()
	assert.ErrorIs(t, q.SendWelcome(context.Background(), "e@f.io", "Eve", ""), ErrQueueClosed)

	done := make(chan struct{})
	go func() {
		q.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestQueue_Backoff(t *testing.T) {
	q := NewQueue(nil, QueueConfig{BaseDelay: 2 * time.Second, MaxDelay: 5 * time.Minute}, zerolog.Nop())
	assert.Equal(t, 2*time.Second, q.backoff(0))
	assert.Equal(t, 4*time.Second, q.backoff(1))
	assert.Equal(t, 128*time.Second, q.backoff(6))
	assert.Equal(t, 5*time.Minute, q.backoff(10))
}
