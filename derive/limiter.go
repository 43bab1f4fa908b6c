package derive

import (
	"sync"
)

// stackReadConcurrency caps how many member grids a composite read has in
// flight at once. Backends serialize their own physical IO, so more
// concurrency than this only burns memory on decoded planes.
const stackReadConcurrency = 4

// concLimiter is a counting semaphore with completion tracking for
// fan-out reads over composite grid members.
type concLimiter struct {
	wg   sync.WaitGroup
	pool chan struct{}
}

func newConcLimiter(level int) *concLimiter {
	if level < 1 {
		level = 1
	}
	return &concLimiter{pool: make(chan struct{}, level)}
}

func (c *concLimiter) acquire() {
	c.wg.Add(1)
	c.pool <- struct{}{}
}

func (c *concLimiter) release() {
	<-c.pool
	c.wg.Done()
}

func (c *concLimiter) wait() {
	c.wg.Wait()
}
