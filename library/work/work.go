package work

import (
	"context"
	"time"
)

/*
	goroutine pool + timing wheel, shared by every game session
*/

const defaultPoolSize = 100

type Store interface {
	Loop
	Scheduler
}

type workStore struct {
	loop  Loop
	timer Scheduler
}

// NewWorkStore builds a pool of poolSize workers and a timing wheel whose
// fired jobs run on that pool.
func NewWorkStore(ctx context.Context, poolSize int, opts ...WheelOption) Store {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	l := NewAntsLoop(poolSize)
	opts = append([]WheelOption{WithContext(ctx), WithExecutor(l)}, opts...)
	return &workStore{
		loop:  l,
		timer: NewWheelScheduler(opts...),
	}
}

func (w *workStore) Start() error {
	return w.loop.Start()
}

func (w *workStore) Stop() {
	w.timer.Stop()
	w.loop.Stop()
}

func (w *workStore) Status() LoopStatus { return w.loop.Status() }

func (w *workStore) Post(job func()) { w.loop.Post(job) }

func (w *workStore) Len() int { return w.timer.Len() }

func (w *workStore) Once(delay time.Duration, f func()) int64 {
	return w.timer.Once(delay, f)
}

func (w *workStore) Forever(interval time.Duration, f func()) int64 {
	return w.timer.Forever(interval, f)
}

func (w *workStore) Cancel(taskID int64) { w.timer.Cancel(taskID) }
