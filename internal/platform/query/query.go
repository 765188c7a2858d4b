// Package query implements cached query objects: a loader, the parameters
// it last ran with, its result and a staleness flag. A query reruns when it
// is read with different parameters, after Invalidate, or once MaxAge has
// elapsed.
package query

import (
	"context"
	"sync"
	"time"
)

// Loader computes a result for params.
type Loader[P comparable, R any] func(ctx context.Context, params P) (R, error)

// Query holds the last result of a Loader.
type Query[P comparable, R any] struct {
	mu       sync.Mutex
	load     Loader[P, R]
	maxAge   time.Duration
	now      func() time.Time
	params   P
	result   R
	loaded   bool
	stale    bool
	loadedAt time.Time
}

// New returns a query. maxAge <= 0 disables age-based expiry.
func New[P comparable, R any](load Loader[P, R], maxAge time.Duration) *Query[P, R] {
	return &Query[P, R]{load: load, maxAge: maxAge, now: time.Now}
}

// Get returns the cached result when it is fresh for params, otherwise it
// runs the loader. A failed load leaves the previous state untouched.
func (q *Query[P, R]) Get(ctx context.Context, params P) (R, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.fresh(params) {
		return q.result, nil
	}

	res, err := q.load(ctx, params)
	if err != nil {
		var zero R
		return zero, err
	}
	q.params = params
	q.result = res
	q.loaded = true
	q.stale = false
	q.loadedAt = q.now()
	return res, nil
}

func (q *Query[P, R]) fresh(params P) bool {
	if !q.loaded || q.stale || q.params != params {
		return false
	}
	return q.maxAge <= 0 || q.now().Sub(q.loadedAt) < q.maxAge
}

// Invalidate marks the result stale so the next Get reloads.
func (q *Query[P, R]) Invalidate() {
	q.mu.Lock()
	q.stale = true
	q.mu.Unlock()
}

// Stale reports whether the next Get will reload regardless of params.
func (q *Query[P, R]) Stale() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.loaded || q.stale
}

// Set keeps one Query per key, such as one per tenant.
type Set[K comparable, P comparable, R any] struct {
	mu      sync.Mutex
	load    Loader[P, R]
	maxAge  time.Duration
	queries map[K]*Query[P, R]
}

func NewSet[K comparable, P comparable, R any](load Loader[P, R], maxAge time.Duration) *Set[K, P, R] {
	return &Set[K, P, R]{load: load, maxAge: maxAge, queries: make(map[K]*Query[P, R])}
}

func (s *Set[K, P, R]) query(key K) *Query[P, R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queries[key]
	if !ok {
		q = New(s.load, s.maxAge)
		s.queries[key] = q
	}
	return q
}

// Get reads the query for key.
func (s *Set[K, P, R]) Get(ctx context.Context, key K, params P) (R, error) {
	return s.query(key).Get(ctx, params)
}

// Invalidate marks the query for key stale. Unknown keys are ignored.
func (s *Set[K, P, R]) Invalidate(key K) {
	s.mu.Lock()
	q, ok := s.queries[key]
	s.mu.Unlock()
	if ok {
		q.Invalidate()
	}
}

// Len returns the number of tracked keys.
func (s *Set[K, P, R]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}
