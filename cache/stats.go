package cache

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of keyed entries.
	Len int
	// Pooled is the current number of values in the free list.
	Pooled int
	// Bytes is the accounted size of live plus pooled values.
	Bytes int64
	// Budget is the configured byte budget (0 = unbounded).
	Budget int64
	// Waiters is the number of goroutines blocked in Poll.
	Waiters int

	// Hits and Misses count Get lookups.
	Hits   uint64
	Misses uint64
	// Puts counts Put calls.
	Puts uint64
	// Polls counts values handed out by Poll; PollMisses counts empty returns.
	Polls      uint64
	PollMisses uint64
	// Waits counts the times a Poll caller went to sleep.
	Waits uint64
	// Offers counts values placed in the free list.
	Offers uint64
	// Evictions counts values discarded to satisfy the budget or by Clear.
	Evictions uint64
	// Discards counts non-reusable values dropped on reclaim.
	Discards uint64
	// Degenerate counts size measurements that returned <= 0.
	Degenerate uint64
}

// HitRate returns Hits / (Hits + Misses), or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
