package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store/memstore"
)

type pingStore struct {
	*memstore.Store
	err error
}

func (p *pingStore) HealthPing(context.Context) error { return p.err }

func TestStoreHealthChecker_FallbackRead(t *testing.T) {
	hc := store.NewStoreHealthChecker(memstore.New(), zerolog.Nop(), time.Second)
	assert.False(t, hc.IsHealthy())
	assert.True(t, hc.Check(context.Background()))
	assert.True(t, hc.IsHealthy())
}

func TestStoreHealthChecker_Pinger(t *testing.T) {
	ps := &pingStore{Store: memstore.New(), err: errors.New("connection refused")}
	hc := store.NewStoreHealthChecker(ps, zerolog.Nop(), 0)

	assert.False(t, hc.Check(context.Background()))
	assert.False(t, hc.IsHealthy())

	ps.err = nil
	assert.True(t, hc.Check(context.Background()))
	assert.True(t, hc.IsHealthy())
}

func TestStoreHealthChecker_StartStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hc := store.NewStoreHealthChecker(memstore.New(), zerolog.Nop(), time.Second)

	done := make(chan struct{})
	go func() {
		hc.Start(ctx, 10*time.Millisecond)
		close(done)
	}()
	assert.Eventually(t, hc.IsHealthy, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
