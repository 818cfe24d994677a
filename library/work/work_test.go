package work

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetLogger(log.NewStdLogger(os.Stdout))
}

func waitFor(t *testing.T, ch <-chan struct{}, d time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(d):
		t.Fatal(msg)
	}
}

func TestAntsLoop(t *testing.T) {
	l := NewAntsLoop(2)
	require.NoError(t, l.Start())
	defer l.Stop()

	t.Run("start more times", func(t *testing.T) {
		require.NoError(t, l.Start())
	})

	t.Run("Post simple task", func(t *testing.T) {
		done := make(chan struct{})
		l.Post(func() { close(done) })
		waitFor(t, done, time.Second, "task not finished")
	})

	t.Run("panicking job does not kill the worker", func(t *testing.T) {
		l.Post(func() { panic("oops") })
		done := make(chan struct{})
		l.Post(func() { close(done) })
		waitFor(t, done, time.Second, "pool stopped after a panic")
	})

	t.Run("status reports capacity", func(t *testing.T) {
		st := l.Status()
		require.Equal(t, 2, st.Capacity)
	})
}

func TestAntsLoop_FallbackWhenStopped(t *testing.T) {
	l := NewAntsLoop(1)

	executed := make(chan struct{})
	l.Post(func() { close(executed) })
	waitFor(t, executed, time.Second, "fallback job did not run")
	require.Equal(t, LoopStatus{}, l.Status())
}

func TestWheelScheduler(t *testing.T) {
	s := NewWheelScheduler(WithTick(5 * time.Millisecond))
	defer s.Stop()

	t.Run("Once task executes", func(t *testing.T) {
		done := make(chan struct{})
		s.Once(10*time.Millisecond, func() { close(done) })
		waitFor(t, done, time.Second, "Once task did not execute")
	})

	t.Run("Forever task repeats and cancels", func(t *testing.T) {
		var count atomic.Int32
		done := make(chan struct{})
		id := s.Forever(10*time.Millisecond, func() {
			if count.Add(1) == 3 {
				close(done)
			}
		})
		waitFor(t, done, time.Second, "Forever task timed out")
		s.Cancel(id)

		time.Sleep(30 * time.Millisecond)
		prev := count.Load()
		time.Sleep(60 * time.Millisecond)
		require.Equal(t, prev, count.Load(), "task continued after cancellation")
	})

	t.Run("Cancel single task", func(t *testing.T) {
		var executed atomic.Bool
		id := s.Once(30*time.Millisecond, func() { executed.Store(true) })
		s.Cancel(id)
		time.Sleep(80 * time.Millisecond)
		require.False(t, executed.Load())
	})

	t.Run("Len counts pending tasks", func(t *testing.T) {
		before := s.Len()
		id := s.Once(time.Second, func() {})
		require.Equal(t, before+1, s.Len())
		s.Cancel(id)
		require.Equal(t, before, s.Len())
	})
}

// goExecutor runs jobs on bare goroutines with no recovery of its own.
type goExecutor struct{}

func (goExecutor) Post(job func()) { go job() }

func TestWheelScheduler_RecoversPanickingTask(t *testing.T) {
	s := NewWheelScheduler(WithTick(5*time.Millisecond), WithExecutor(goExecutor{}))
	defer s.Stop()

	s.Once(5*time.Millisecond, func() { panic("task exploded") })

	done := make(chan struct{})
	s.Once(20*time.Millisecond, func() { close(done) })
	waitFor(t, done, time.Second, "scheduler stopped after a panicking task")
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWheelScheduler_Stop(t *testing.T) {
	s := NewWheelScheduler(WithTick(5 * time.Millisecond))
	s.Once(50*time.Millisecond, func() { t.Error("task executed after Stop") })
	s.Stop()

	require.Equal(t, int64(-1), s.Once(time.Millisecond, func() {}))
	time.Sleep(100 * time.Millisecond)
}

func TestWorkStore(t *testing.T) {
	ws := NewWorkStore(context.Background(), 4, WithTick(5*time.Millisecond))
	require.NoError(t, ws.Start())
	defer ws.Stop()

	done := make(chan struct{})
	ws.Once(10*time.Millisecond, func() { close(done) })
	waitFor(t, done, time.Second, "timer job did not reach the pool")
}
