package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how many presses a search has made.
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
	Done      bool      `json:"done"`
}

// IncrementFinished adds amount to the finished counter.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	if b == nil {
		return
	}

	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// Progress returns the finished count and the total.
func (b *ProgressBar) Progress() (finished, total uint64) {
	b.Lock()
	defer b.Unlock()

	return b.Finished, b.Total
}
