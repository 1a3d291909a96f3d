package indexer

import "sync/atomic"

// IndexLock is a non-blocking lock held for the duration of a run. A second
// caller fails fast instead of queueing behind a long ingestion.
type IndexLock struct {
	held atomic.Bool
}

// TryAcquire takes the lock and reports whether it succeeded
func (l *IndexLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.held.Store(false)
}

// Held reports whether a run currently holds the lock
func (l *IndexLock) Held() bool {
	return l.held.Load()
}
