package registry

import (
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/zhenjl/cityhash"

	"github.com/tileplay/carcassonne/internal/biz/session"
)

const defaultBucketNum = 32

// Factory builds the session for a code seen for the first time.
type Factory func(code string) *session.Session

// Option configures a Registry.
type Option func(*Registry)

// WithOnCreate registers fn to run once for every session the registry
// creates. It runs after the bucket lock is released.
func WithOnCreate(fn func(s *session.Session)) Option {
	return func(r *Registry) { r.onCreate = fn }
}

type bucket struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// Registry maps game codes to their single live session. Codes are spread
// over buckets so unrelated games rarely contend on the same lock.
type Registry struct {
	factory  Factory
	onCreate func(s *session.Session)
	buckets  []*bucket
}

func New(factory Factory, opts ...Option) *Registry {
	return NewWithBuckets(factory, defaultBucketNum, opts...)
}

func NewWithBuckets(factory Factory, n int, opts ...Option) *Registry {
	if n <= 0 {
		n = defaultBucketNum
	}
	r := &Registry{factory: factory, buckets: make([]*bucket, n)}
	for i := range r.buckets {
		r.buckets[i] = &bucket{sessions: make(map[string]*session.Session)}
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) bucket(code string) *bucket {
	idx := cityhash.CityHash32([]byte(code), uint32(len(code))) % uint32(len(r.buckets))
	return r.buckets[idx]
}

// GetOrCreate returns the session for code, creating it on first use.
// Concurrent callers with the same code all receive the same instance. The
// factory runs under the bucket lock and must not block.
func (r *Registry) GetOrCreate(code string) *session.Session {
	b := r.bucket(code)

	b.mu.RLock()
	s, ok := b.sessions[code]
	b.mu.RUnlock()
	if ok {
		return s
	}

	b.mu.Lock()
	if s, ok = b.sessions[code]; ok {
		b.mu.Unlock()
		return s
	}
	s = r.factory(code)
	b.sessions[code] = s
	b.mu.Unlock()

	if r.onCreate != nil {
		r.onCreate(s)
	}
	return s
}

func (r *Registry) Get(code string) (*session.Session, bool) {
	b := r.bucket(code)
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.sessions[code]
	return s, ok
}

func (r *Registry) Len() int {
	n := 0
	for _, b := range r.buckets {
		b.mu.RLock()
		n += len(b.sessions)
		b.mu.RUnlock()
	}
	return n
}

// Range calls fn for every session until fn returns false. fn runs without
// any registry lock held.
func (r *Registry) Range(fn func(s *session.Session) bool) {
	for _, b := range r.buckets {
		b.mu.RLock()
		list := make([]*session.Session, 0, len(b.sessions))
		for _, s := range b.sessions {
			list = append(list, s)
		}
		b.mu.RUnlock()

		for _, s := range list {
			if !fn(s) {
				return
			}
		}
	}
}

// Reap removes and closes finished sessions whose finish time is older than
// retention. It returns how many were removed.
func (r *Registry) Reap(now time.Time, retention time.Duration) int {
	var expired []*session.Session
	for _, b := range r.buckets {
		b.mu.Lock()
		for code, s := range b.sessions {
			at, done := s.FinishedAt()
			if done && now.Sub(at) >= retention {
				delete(b.sessions, code)
				expired = append(expired, s)
			}
		}
		b.mu.Unlock()
	}

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		log.Infof("reaped %d finished sessions, %d live", len(expired), r.Len())
	}
	return len(expired)
}

// Close closes every session and empties the registry.
func (r *Registry) Close() {
	for _, b := range r.buckets {
		b.mu.Lock()
		list := b.sessions
		b.sessions = make(map[string]*session.Session)
		b.mu.Unlock()

		for _, s := range list {
			s.Close()
		}
	}
}
