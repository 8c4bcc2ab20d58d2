package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"cryptodaily/internal/refresh"
	"cryptodaily/internal/scheduler"

	"github.com/stretchr/testify/require"
)

type refresherFunc func(ctx context.Context) (refresh.Report, error)

func (f refresherFunc) Run(ctx context.Context) (refresh.Report, error) {
	return f(ctx)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunAtStartupSwallowsErrorsAndPanics(t *testing.T) {
	for name, run := range map[string]refresherFunc{
		"error": func(context.Context) (refresh.Report, error) {
			return refresh.Report{}, errors.New("provider down")
		},
		"panic": func(context.Context) (refresh.Report, error) {
			panic("boom")
		},
	} {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			s := scheduler.New(context.Background(), "", refresherFunc(func(ctx context.Context) (refresh.Report, error) {
				calls.Add(1)
				return run(ctx)
			}), discardLogger())

			s.RunAtStartup()

			require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		})
	}
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := scheduler.New(context.Background(), "not a spec", refresherFunc(func(context.Context) (refresh.Report, error) {
		return refresh.Report{}, nil
	}), discardLogger())

	require.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := scheduler.New(context.Background(), "", refresherFunc(func(context.Context) (refresh.Report, error) {
		return refresh.Report{}, nil
	}), discardLogger())

	require.NoError(t, s.Start())
	s.Stop()
}

func TestStartupRunSkipsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	s := scheduler.New(ctx, "", refresherFunc(func(context.Context) (refresh.Report, error) {
		calls.Add(1)
		return refresh.Report{}, nil
	}), discardLogger())

	s.RunAtStartup()
	time.Sleep(20 * time.Millisecond)

	require.Zero(t, calls.Load())
}
