package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recLogger) Debug(context.Context, string, ...any) {}
func (l *recLogger) Info(context.Context, string, ...any)  {}
func (l *recLogger) Warn(context.Context, string, ...any)  {}
func (l *recLogger) Error(_ context.Context, msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
func (l *recLogger) With(...any) logging.Logger { return l }

func (l *recLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

func TestPool_RunsDetachedFromCallerContext(t *testing.T) {
	done := make(chan error, 1)
	p := NewPool(2, func(ctx context.Context, job Job) error {
		time.Sleep(10 * time.Millisecond)
		done <- ctx.Err()
		return nil
	}, &recLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Dispatch(ctx, Job{TaskID: "t1"}))
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "job context must not be cancelled with the request")
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	p.Close()
}

func TestPool_BoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	p := NewPool(3, func(ctx context.Context, job Job) error {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	}, &recLogger{})

	for i := 0; i < 20; i++ {
		require.NoError(t, p.Dispatch(context.Background(), Job{TaskID: "t"}))
	}
	p.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestPool_RecoversPanicsAndLogsErrors(t *testing.T) {
	log := &recLogger{}
	p := NewPool(1, func(ctx context.Context, job Job) error {
		if job.TaskID == "panic" {
			panic("boom")
		}
		return errors.New("failed")
	}, log)

	require.NoError(t, p.Dispatch(context.Background(), Job{TaskID: "panic"}))
	require.NoError(t, p.Dispatch(context.Background(), Job{TaskID: "err"}))
	p.Wait()

	assert.Equal(t, 2, log.errorCount())
}

func TestPool_ClosedRejects(t *testing.T) {
	p := NewPool(1, func(context.Context, Job) error { return nil }, &recLogger{})
	p.Close()

	assert.ErrorIs(t, p.Dispatch(context.Background(), Job{TaskID: "t"}), ErrPoolClosed)
	assert.ErrorIs(t, p.Submit(context.Background(), Job{TaskID: "t"}), ErrPoolClosed)
}

func TestPool_SubmitWaitsForFreeWorker(t *testing.T) {
	release := make(chan struct{})
	p := NewPool(1, func(ctx context.Context, job Job) error {
		<-release
		return nil
	}, &recLogger{})

	require.NoError(t, p.Submit(context.Background(), Job{TaskID: "t1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Submit(ctx, Job{TaskID: "t2"}), context.DeadlineExceeded)

	close(release)
	p.Close()
}

func TestNewPool_AtLeastOneWorker(t *testing.T) {
	ran := make(chan struct{})
	p := NewPool(0, func(context.Context, Job) error { close(ran); return nil }, &recLogger{})
	require.NoError(t, p.Dispatch(context.Background(), Job{TaskID: "t"}))
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	p.Close()
}
