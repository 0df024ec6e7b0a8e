package ingest

import (
	"context"
	"sync"
)

// tableLocks serializes ingestion runs per destination table.
type tableLocks struct {
	mu    sync.Mutex
	locks map[string]*tableLock
}

type tableLock struct {
	ch   chan struct{}
	refs int
}

func newTableLocks() *tableLocks {
	return &tableLocks{locks: make(map[string]*tableLock)}
}

// Lock blocks until the lock of `table` is held or `ctx` is done.
func (tl *tableLocks) Lock(ctx context.Context, table string) (unlock func(), err error) {
	tl.mu.Lock()
	l, ok := tl.locks[table]
	if !ok {
		l = &tableLock{ch: make(chan struct{}, 1)}
		tl.locks[table] = l
	}
	l.refs++
	tl.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				tl.release(table, l)
			})
		}, nil
	case <-ctx.Done():
		tl.release(table, l)
		return nil, ctx.Err()
	}
}

func (tl *tableLocks) release(table string, l *tableLock) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(tl.locks, table)
	}
}
