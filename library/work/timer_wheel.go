package work

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RussellLuo/timingwheel"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/tileplay/carcassonne/library/xgo"
)

const (
	defaultWheelTick  = 100 * time.Millisecond
	defaultWheelSize  = 128
	defaultStopWindow = 3 * time.Second
)

// preciseEvery keeps a periodic task anchored to its first fire time so
// executor latency does not accumulate as drift.
type preciseEvery struct {
	interval time.Duration
	last     atomic.Value // time.Time
}

func (p *preciseEvery) Next(t time.Time) time.Time {
	last, _ := p.last.Load().(time.Time)
	if last.IsZero() {
		last = t
	}
	next := last.Add(p.interval)
	for steps := 0; !next.After(t); steps++ {
		if steps > maxIntervalJumps {
			log.Warnf("[wheelScheduler] skipped too many steps: %d", steps)
			break
		}
		next = next.Add(p.interval)
	}
	p.last.Store(next)
	return next
}

type WheelOption func(*wheelScheduler)

func WithTick(d time.Duration) WheelOption {
	return func(s *wheelScheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

func WithWheelSize(size int64) WheelOption {
	return func(s *wheelScheduler) {
		if size > 0 {
			s.wheelSize = size
		}
	}
}

func WithContext(ctx context.Context) WheelOption {
	return func(s *wheelScheduler) { s.ctx = ctx }
}

func WithExecutor(exec Executor) WheelOption {
	return func(s *wheelScheduler) { s.executor = exec }
}

func WithStopTimeout(d time.Duration) WheelOption {
	return func(s *wheelScheduler) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

type wheelScheduler struct {
	executor    Executor
	tick        time.Duration
	wheelSize   int64
	tw          *timingwheel.TimingWheel
	stopTimeout time.Duration
	tasks       sync.Map // map[int64]*wheelTask
	nextID      atomic.Int64
	shutdown    atomic.Bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	once        sync.Once
}

type wheelTask struct {
	timer     *timingwheel.Timer
	cancelled atomic.Bool
	executing atomic.Bool
	repeated  bool
}

// NewWheelScheduler starts a timing wheel. Fired jobs are handed to the
// configured executor.
func NewWheelScheduler(opts ...WheelOption) Scheduler {
	s := &wheelScheduler{
		tick:        defaultWheelTick,
		wheelSize:   defaultWheelSize,
		ctx:         context.Background(),
		stopTimeout: defaultStopWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.executor == nil {
		log.Warn("[wheelScheduler] no executor provided, tasks run on their own goroutines")
	}

	s.ctx, s.cancel = context.WithCancel(s.ctx)
	s.tw = timingwheel.NewTimingWheel(s.tick, s.wheelSize)
	s.tw.Start()
	go func() {
		<-s.ctx.Done()
		s.tw.Stop()
	}()
	return s
}

func (s *wheelScheduler) Len() int {
	count := 0
	s.tasks.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (s *wheelScheduler) Once(delay time.Duration, f func()) int64 {
	return s.schedule(delay, false, f)
}

func (s *wheelScheduler) Forever(interval time.Duration, f func()) int64 {
	return s.schedule(interval, true, f)
}

func (s *wheelScheduler) Cancel(taskID int64) {
	s.removeTask(taskID)
}

func (s *wheelScheduler) cancelAll() {
	s.tasks.Range(func(key, _ any) bool {
		s.removeTask(key.(int64))
		return true
	})
}

func (s *wheelScheduler) removeTask(taskID int64) {
	val, ok := s.tasks.LoadAndDelete(taskID)
	if !ok {
		return
	}
	task := val.(*wheelTask)
	if !task.cancelled.CompareAndSwap(false, true) {
		return
	}
	if task.timer != nil {
		task.timer.Stop()
	}
}

// Stop rejects new tasks, cancels registered ones and waits up to the stop
// timeout for in-flight jobs.
func (s *wheelScheduler) Stop() {
	s.once.Do(func() {
		s.shutdown.Store(true)
		s.cancelAll()
		s.cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			log.Info("[wheelScheduler] stopped gracefully")
		case <-time.After(s.stopTimeout):
			log.Warnf("[wheelScheduler] shutdown timed out after %v, some tasks may still be running", s.stopTimeout)
		}
	})
}

func (s *wheelScheduler) schedule(delay time.Duration, repeated bool, f func()) int64 {
	if s.shutdown.Load() || s.ctx.Err() != nil {
		log.Warn("[wheelScheduler] shut down; task rejected")
		return -1
	}

	taskID := s.nextID.Add(1)
	task := &wheelTask{repeated: repeated}
	// stored before arming so a fast fire can always find its entry
	s.tasks.Store(taskID, task)

	fire := func() {
		if task.cancelled.Load() {
			return
		}
		if !repeated && !task.executing.CompareAndSwap(false, true) {
			return
		}
		s.wg.Add(1)

		s.executeAsync(func() {
			defer func() {
				s.wg.Done()
				if !repeated {
					s.tasks.Delete(taskID)
				}
			}()
			defer xgo.RecoverFromError(nil)
			if task.cancelled.Load() {
				return
			}
			f()
		})
	}

	if repeated {
		task.timer = s.tw.ScheduleFunc(&preciseEvery{interval: delay}, fire)
	} else {
		task.timer = s.tw.AfterFunc(delay, fire)
	}
	return taskID
}

// executeAsync hands f to the executor, or to a fresh goroutine when none is
// configured. Recovery is the job's own concern.
func (s *wheelScheduler) executeAsync(f func()) {
	if s.executor != nil {
		s.executor.Post(f)
		return
	}
	go f()
}
