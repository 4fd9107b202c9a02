package yearlock

import (
	"context"
	"sync"
)

// Locker serializes membership ID allocation per calendar year.
// The returned unlock func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, year int) (unlock func(), err error)
}

// Local is an in-process Locker. It is enough for a single server instance;
// multi-instance deployments use Redis and rely on the store's unique index.
type Local struct {
	mu    sync.Mutex
	years map[int]chan struct{}
}

// NewLocal creates an in-process locker
func NewLocal() *Local {
	return &Local{years: make(map[int]chan struct{})}
}

func (l *Local) slot(year int) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.years[year]
	if !ok {
		ch = make(chan struct{}, 1)
		l.years[year] = ch
	}
	return ch
}

// Lock blocks until year is free or ctx is done
func (l *Local) Lock(ctx context.Context, year int) (func(), error) {
	ch := l.slot(year)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Nop never blocks. Uniqueness then rests on the store alone.
type Nop struct{}

func (Nop) Lock(context.Context, int) (func(), error) {
	return func() {}, nil
}
