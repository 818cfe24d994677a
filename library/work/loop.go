package work

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/panjf2000/ants/v2"

	"github.com/tileplay/carcassonne/library/xgo"
)

// LoopStatus is a point-in-time view of the pool.
type LoopStatus struct {
	Capacity int `json:"capacity"`
	Running  int `json:"running"`
	Free     int `json:"free"`
}

// Loop runs jobs on a bounded goroutine pool.
type Loop interface {
	Start() error
	Stop()
	Status() LoopStatus
	Post(job func())
}

type LoopOption func(*antsLoop)

// WithFallback replaces the strategy used when the pool rejects a job.
func WithFallback(fallback func(ctx context.Context, fn func())) LoopOption {
	return func(l *antsLoop) { l.fallback = fallback }
}

// WithPoolOptions appends raw ants options.
func WithPoolOptions(opts ...ants.Option) LoopOption {
	return func(l *antsLoop) { l.poolOptions = append(l.poolOptions, opts...) }
}

type antsLoop struct {
	mu          sync.RWMutex
	pool        *ants.Pool
	size        int
	fallback    func(context.Context, func())
	poolOptions []ants.Option
}

// NewAntsLoop creates a pool of at most size workers. Start must be called
// before jobs reach the pool; until then they run on the fallback.
func NewAntsLoop(size int, opts ...LoopOption) Loop {
	l := &antsLoop{
		size: size,
		fallback: func(ctx context.Context, fn func()) {
			go safeRun(ctx, fn)
		},
		poolOptions: []ants.Option{
			ants.WithExpiryDuration(60 * time.Second),
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *antsLoop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pool != nil {
		log.Warnf("antsLoop already started.")
		return nil
	}

	pool, err := ants.NewPool(l.size, l.poolOptions...)
	if err != nil {
		return fmt.Errorf("pool init failed: %w", err)
	}
	l.pool = pool
	log.Infof("antsLoop start... [size:%d]", l.size)
	return nil
}

func (l *antsLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pool == nil {
		return
	}
	p := l.pool
	l.pool = nil
	p.Release()
	log.Infof("antsLoop stopping [running:%d]", p.Running())
}

func (l *antsLoop) Status() LoopStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.pool == nil {
		return LoopStatus{}
	}
	capacity, running := l.pool.Cap(), l.pool.Running()
	return LoopStatus{
		Capacity: capacity,
		Running:  running,
		Free:     max(capacity-running, 0),
	}
}

func (l *antsLoop) Post(job func()) {
	l.submit(context.Background(), job)
}

func (l *antsLoop) submit(ctx context.Context, fn func()) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.pool == nil || l.pool.IsClosed() {
		l.triggerFallback(ctx, fn, "loop not started or loop is closed.")
		return
	}
	if err := l.pool.Submit(func() { safeRun(ctx, fn) }); err != nil {
		l.triggerFallback(ctx, fn, err.Error())
	}
}

func (l *antsLoop) triggerFallback(ctx context.Context, fn func(), reason string) {
	log.Warnf("antsLoop fallback. reason=%s", reason)
	l.fallback(ctx, fn)
}

func safeRun(ctx context.Context, fn func()) {
	defer xgo.RecoverFromError(nil)
	if ctx.Err() == nil {
		fn()
	}
}
