package worker

import "sync"

// ResetForTest releases the pool and clears counters. Test code only.
func ResetForTest() {
	if pool != nil {
		pool.Release()
	}
	pool = nil
	initOnce = sync.Once{}
	mu.Lock()
	stats = Stats{}
	mu.Unlock()
}
