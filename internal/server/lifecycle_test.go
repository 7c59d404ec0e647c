package server_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/keeper/internal/server"
)

// orderRecorder tracks the order Stop calls arrive in.
type orderRecorder struct {
	mu    sync.Mutex
	stops []string
}

func (r *orderRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops = append(r.stops, name)
}

func (r *orderRecorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stops...)
}

func blockingService(rec *orderRecorder, name string) *server.FuncService {
	return &server.FuncService{
		StartFn: func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		},
		StopFn: func() { rec.record(name) },
	}
}

func TestLifecycle_CleanExitShutsDownRemainingServices(t *testing.T) {
	rec := &orderRecorder{}
	lc := server.NewLifecycle(zaptest.NewLogger(t))

	lc.Add("transport", &server.FuncService{
		StartFn: func(ctx context.Context) error { return nil },
		StopFn:  func() { rec.record("transport") },
	})
	lc.Add("background", blockingService(rec, "background"))

	err := lc.Run(context.Background())
	require.NoError(t, err)

	// Reverse of registration order.
	assert.Equal(t, []string{"background", "transport"}, rec.order())
}

func TestLifecycle_ServiceErrorIsReturned(t *testing.T) {
	rec := &orderRecorder{}
	boom := errors.New("listen failed")
	lc := server.NewLifecycle(zaptest.NewLogger(t))

	lc.Add("steady", blockingService(rec, "steady"))
	lc.Add("broken", &server.FuncService{
		StartFn: func(ctx context.Context) error { return boom },
		StopFn:  func() { rec.record("broken") },
	})

	err := lc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, []string{"broken", "steady"}, rec.order())
}

func TestLifecycle_ContextCancellationStopsServices(t *testing.T) {
	rec := &orderRecorder{}
	lc := server.NewLifecycle(zaptest.NewLogger(t))
	lc.Add("a", blockingService(rec, "a"))
	lc.Add("b", blockingService(rec, "b"))

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := make(chan error, 1)
	go func() { resultCh <- lc.Run(ctx) }()

	cancel()

	select {
	case err := <-resultCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down after context cancellation")
	}
	assert.Equal(t, []string{"b", "a"}, rec.order())
}

func TestFuncService_NilStopIsNoop(t *testing.T) {
	svc := &server.FuncService{
		StartFn: func(ctx context.Context) error { return nil },
	}
	assert.NotPanics(t, func() { svc.Stop() })
}
