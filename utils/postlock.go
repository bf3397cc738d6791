package utils

import "sync"

// postLock serializes aggregate read-modify-write cycles per post id.
// Two concurrent mutations on the same post must not interleave their read
// and write halves; mutations on different posts proceed in parallel.
type postLock struct {
	mu   sync.Mutex
	refs int
}

var (
	postLocks   = map[uint]*postLock{}
	postLocksMu sync.Mutex
)

// LockPost acquires the mutation lock for a post id and returns the
// release function. Callers must release on all exit paths.
func LockPost(id uint) func() {
	postLocksMu.Lock()
	l, ok := postLocks[id]
	if !ok {
		l = &postLock{}
		postLocks[id] = l
	}
	l.refs++
	postLocksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		postLocksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(postLocks, id)
		}
		postLocksMu.Unlock()
	}
}
