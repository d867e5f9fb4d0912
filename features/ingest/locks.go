package ingest

import (
	"context"
	"sync"
)

// urlLocks serializes work per page URL. Entries are dropped once no caller
// holds or waits on them.
type urlLocks struct {
	mu    sync.Mutex
	locks map[string]*urlLock
}

type urlLock struct {
	ch   chan struct{}
	refs int
}

func newURLLocks() *urlLocks {
	return &urlLocks{locks: make(map[string]*urlLock)}
}

// acquire blocks until key is free or ctx is done. The returned func releases it.
func (l *urlLocks) acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &urlLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
		return func() {
			<-lk.ch
			l.release(key, lk)
		}, nil
	case <-ctx.Done():
		l.release(key, lk)
		return nil, ctx.Err()
	}
}

func (l *urlLocks) release(key string, lk *urlLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *urlLocks) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
