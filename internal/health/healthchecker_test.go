package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	name    string
	healthy atomic.Bool
}

func (f *fakeChecker) Name() string                               { return f.name }
func (f *fakeChecker) IsHealthy() bool                            { return f.healthy.Load() }
func (f *fakeChecker) Start(ctx context.Context, _ time.Duration) {}

func TestServiceHealthChecker_Transitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeChecker{name: "store"}
	other := &fakeChecker{name: "other"}
	store.healthy.Store(true)
	other.healthy.Store(true)

	svc := NewServiceHealthChecker(zerolog.Nop(), store, other)
	go svc.Start(ctx, 10*time.Millisecond)

	waitTrue(t, svc.IsHealthy)

	other.healthy.Store(false)
	waitTrue(t, func() bool { return !svc.IsHealthy() })
	assert.Equal(t, []string{"other"}, svc.Unhealthy())

	other.healthy.Store(true)
	waitTrue(t, svc.IsHealthy)
}

func TestServiceHealthChecker_StartsDown(t *testing.T) {
	c := &fakeChecker{name: "store"}
	svc := NewServiceHealthChecker(zerolog.Nop(), c)
	require.False(t, svc.IsHealthy())
	require.False(t, svc.Evaluate())

	c.healthy.Store(true)
	require.True(t, svc.Evaluate())
	require.Empty(t, svc.Unhealthy())
}

func waitTrue(t *testing.T, pred func() bool) {
	t.Helper()
	require.Eventually(t, pred, 500*time.Millisecond, 10*time.Millisecond)
}
