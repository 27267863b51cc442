// Package cache provides a size-bounded, reference-aware cache with a pool of
// reclaimable values.
//
// # Pooled[K, V]
//
// Pooled couples two structures behind a single mutex:
//
//   - a keyed table of live values, ordered by insertion time
//   - a free list of reclaimable values, bucketed by byte size
//
// Values report their own reference count. A value with outstanding
// references is never evicted and never handed out by Poll. A value's owner
// drops the last reference through Reclaim, which does the 1→0 transition
// under the cache lock: keyed values stay in the table (still reclaimable by
// Poll), un-keyed reusable values move to the free list.
//
//	c := cache.New[string, *Buf](64<<20, func(b *Buf) int { return b.Len() })
//	c.Put("a", buf)
//	if v, ok := c.Poll(); ok {
//	    // v carries one reference owned by the caller
//	}
//
// # Blocking
//
// With SetBlocking(true), Poll waits until a value becomes reclaimable.
// Offer and Reclaim wake exactly one waiter; SetBlocking(false) wakes all
// of them and they return none.
//
// # Budget
//
// The budget covers live and pooled bytes together. Over budget, pooled
// values are discarded oldest-offered first, then unreferenced live values
// oldest-inserted first. Referenced values are skipped, so the cache may
// exceed its budget while they are held.
//
// # Thread Safety
//
// Pooled is safe for concurrent use and must not be copied after creation.
package cache
