package cache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eapache/queue"
)

// Value is the constraint for values held by Pooled.
//
// Acquire must increment the value's reference count atomically.
// ReleaseLast must atomically move the count from 1 to 0 and report whether
// it did. RefCount and Reusable must be safe to call from any goroutine.
type Value interface {
	comparable
	Acquire()
	ReleaseLast() bool
	RefCount() int32
	Reusable() bool
}

// SizeFunc reports the byte cost of a value for budget accounting.
// It must be deterministic and free of side effects. Results <= 0 are
// accounted as 0 and counted in Stats.Degenerate.
type SizeFunc[V any] func(V) int

// Option configures a Pooled cache.
type Option[V any] func(*options[V])

type options[V any] struct {
	logger  *slog.Logger
	onEvict func(V)
}

// WithLogger sets the logger used for diagnostics. Nil keeps the cache silent.
func WithLogger[V any](l *slog.Logger) Option[V] {
	return func(o *options[V]) {
		o.logger = l
	}
}

// WithEvictHook registers fn to be called, outside the cache lock, for every
// value the cache discards (budget eviction or non-reusable reclaim).
func WithEvictHook[V any](fn func(V)) Option[V] {
	return func(o *options[V]) {
		o.onEvict = fn
	}
}

// liveEntry is a keyed value in the table.
type liveEntry[K comparable, V any] struct {
	value V
	size  int64
	node  *ageNode[K]
}

// poolSlot is a free-list record. Slots are removed lazily: a slot is stale
// when pooled[value] no longer carries its seq.
type poolSlot[V any] struct {
	value V
	size  int64
	seq   uint64
}

// poolMark records the live slot of a pooled value.
type poolMark struct {
	seq  uint64
	size int64
}

// Pooled is a byte-budgeted cache of reference-counted values with a free
// list of reclaimable values.
//
// Pooled is safe for concurrent use.
// Pooled must not be copied after creation (has mutex).
type Pooled[K comparable, V Value] struct {
	mu   sync.Mutex
	cond *sync.Cond

	entries map[K]*liveEntry[K, V]
	keys    map[V]K
	order   ageList[K]

	buckets map[int64]*queue.Queue
	pooled  map[V]poolMark
	seq     uint64

	bytes    int64
	budget   int64
	blocking bool
	waiters  int

	sizeOf  SizeFunc[V]
	onEvict func(V)
	log     *slog.Logger

	stats Stats
}

// New creates a cache holding at most budget bytes of live plus pooled values.
// A budget <= 0 means unbounded.
func New[K comparable, V Value](budget int64, sizeOf SizeFunc[V], opts ...Option[V]) *Pooled[K, V] {
	o := options[V]{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if budget < 0 {
		budget = 0
	}

	c := &Pooled[K, V]{
		entries: make(map[K]*liveEntry[K, V]),
		keys:    make(map[V]K),
		buckets: make(map[int64]*queue.Queue),
		pooled:  make(map[V]poolMark),
		budget:  budget,
		sizeOf:  sizeOf,
		onEvict: o.onEvict,
		log:     o.logger,
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Get returns the value stored under key.
// When acquire is true, a reference is taken while the cache lock is held,
// so a concurrent Poll cannot reclaim the value between lookup and acquire.
func (c *Pooled[K, V]) Get(key K, acquire bool) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.stats.Hits++
	if acquire {
		e.value.Acquire()
	}
	return e.value, true
}

// Put stores v under key, replacing any previous value.
// If the new total exceeds the budget, unreferenced values are evicted
// until it fits or nothing evictable remains.
func (c *Pooled[K, V]) Put(key K, v V) {
	c.mu.Lock()
	var evicted []V
	size := c.sizeLocked(v)

	c.unpoolLocked(v)
	if prev, ok := c.keys[v]; ok && prev != key {
		c.dropLiveLocked(prev)
	}

	if e, ok := c.entries[key]; ok {
		if e.value == v {
			c.bytes += size - e.size
			e.size = size
			c.order.MoveToFront(e.node)
		} else {
			old := e.value
			c.dropLiveLocked(key)
			evicted = c.releaseDetachedLocked(old, evicted)
			c.insertLocked(key, v, size)
		}
	} else {
		c.insertLocked(key, v, size)
	}

	c.stats.Puts++
	evicted = c.trimLocked(evicted)
	c.mu.Unlock()

	c.notifyEvicted(evicted)
}

// Poll removes and returns a reclaimable value: the oldest pooled value, or
// failing that the oldest unreferenced reusable live value. The returned
// value carries one reference owned by the caller.
//
// In blocking mode Poll waits until a value becomes available or blocking is
// turned off.
func (c *Pooled[K, V]) Poll() (V, bool) {
	return c.PollContext(context.Background())
}

// PollContext is like Poll but also returns none once ctx is done.
func (c *Pooled[K, V]) PollContext(ctx context.Context) (V, bool) {
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		})
		defer stop()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	waited := false
	for {
		if ctx.Err() != nil {
			break
		}
		if v, ok := c.takeLocked(); ok {
			v.Acquire()
			c.stats.Polls++
			return v, true
		}
		if !c.blocking {
			break
		}
		waited = true
		c.waiters++
		c.stats.Waits++
		c.cond.Wait()
		c.waiters--
	}

	// A Signal may have been spent on us; pass it on.
	if waited && c.waiters > 0 && c.reclaimableLocked() {
		c.cond.Signal()
	}
	c.stats.PollMisses++
	var zero V
	return zero, false
}

// Offer places an unreferenced, reusable value into the free list and wakes
// one waiter. A keyed value is removed from the table first. Offer returns
// false when v is referenced, not reusable, or already pooled.
func (c *Pooled[K, V]) Offer(v V) bool {
	if v.RefCount() > 0 {
		c.log.Warn("cache: offer of referenced value ignored", "refs", v.RefCount())
		return false
	}
	if !v.Reusable() {
		return false
	}

	c.mu.Lock()
	if c.isPooledLocked(v) {
		c.mu.Unlock()
		return false
	}
	if key, ok := c.keys[v]; ok {
		c.dropLiveLocked(key)
	}
	c.pushPoolLocked(v, c.sizeLocked(v))
	c.stats.Offers++
	evicted := c.trimLocked(nil)
	c.cond.Signal()
	c.mu.Unlock()

	c.notifyEvicted(evicted)
	return true
}

// Reclaim drops the last reference to v under the cache lock and decides
// its fate. A keyed value stays in the table and becomes reclaimable by Poll;
// an un-keyed reusable value is offered to the free list; anything else is
// discarded. Owners call Reclaim in place of their final release.
//
// Reclaim returns false and leaves v untouched unless v holds exactly one
// reference. The 1→0 transition and the eviction scan share the lock, so a
// value is never evicted while its reclaim is pending.
func (c *Pooled[K, V]) Reclaim(v V) bool {
	c.mu.Lock()
	if !v.ReleaseLast() {
		c.mu.Unlock()
		return false
	}

	var evicted []V
	_, keyed := c.keys[v]
	switch {
	case keyed:
		evicted = c.trimLocked(nil)
		if _, ok := c.keys[v]; ok && v.Reusable() {
			c.cond.Signal()
		}
	case c.isPooledLocked(v):
		// Already free.
	case v.Reusable():
		c.pushPoolLocked(v, c.sizeLocked(v))
		c.stats.Offers++
		evicted = c.trimLocked(nil)
		c.cond.Signal()
	default:
		c.stats.Discards++
		evicted = append(evicted, v)
	}
	c.mu.Unlock()

	c.notifyEvicted(evicted)
	return true
}

// SetBlocking toggles blocking mode. Turning it off wakes every waiter.
func (c *Pooled[K, V]) SetBlocking(blocking bool) {
	c.mu.Lock()
	c.blocking = blocking
	if !blocking {
		c.cond.Broadcast()
	}
	c.mu.Unlock()
}

// Blocking reports whether Poll blocks on an empty pool.
func (c *Pooled[K, V]) Blocking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocking
}

// Len returns the number of keyed entries.
func (c *Pooled[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// PoolLen returns the number of values in the free list.
func (c *Pooled[K, V]) PoolLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pooled)
}

// Bytes returns the accounted size of live plus pooled values.
func (c *Pooled[K, V]) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Budget returns the configured byte budget (0 = unbounded).
func (c *Pooled[K, V]) Budget() int64 {
	return c.budget
}

// Waiters returns the number of goroutines blocked in Poll.
func (c *Pooled[K, V]) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiters
}

// Stats returns a snapshot of cache counters and gauges.
func (c *Pooled[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Len = c.order.Len()
	s.Pooled = len(c.pooled)
	s.Bytes = c.bytes
	s.Budget = c.budget
	s.Waiters = c.waiters
	return s
}

// Clear drops every unreferenced entry and the whole free list.
// Referenced entries stay keyed.
func (c *Pooled[K, V]) Clear() {
	c.mu.Lock()
	var evicted []V
	evicted = append(evicted, c.drainPoolLocked()...)
	var keys []K
	c.order.WalkOldest(func(key K) bool {
		if c.entries[key].value.RefCount() == 0 {
			keys = append(keys, key)
		}
		return true
	})
	for _, key := range keys {
		evicted = append(evicted, c.entries[key].value)
		c.dropLiveLocked(key)
	}
	c.stats.Evictions += uint64(len(evicted))
	c.mu.Unlock()

	c.notifyEvicted(evicted)
}

// sizeLocked applies sizeOf, clamping degenerate results to 0.
func (c *Pooled[K, V]) sizeLocked(v V) int64 {
	n := c.sizeOf(v)
	if n <= 0 {
		c.stats.Degenerate++
		c.log.Debug("cache: non-positive size, accounting as 0", "size", n)
		return 0
	}
	return int64(n)
}

func (c *Pooled[K, V]) insertLocked(key K, v V, size int64) {
	c.entries[key] = &liveEntry[K, V]{
		value: v,
		size:  size,
		node:  c.order.PushFront(key),
	}
	c.keys[v] = key
	c.bytes += size
}

// dropLiveLocked removes key from the table without touching the value.
func (c *Pooled[K, V]) dropLiveLocked(key K) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.order.Remove(e.node)
	delete(c.entries, key)
	delete(c.keys, e.value)
	c.bytes -= e.size
}

// releaseDetachedLocked handles a value that just lost its key.
// Referenced values are left to their holders; the final Reclaim pools them.
func (c *Pooled[K, V]) releaseDetachedLocked(v V, evicted []V) []V {
	if v.RefCount() > 0 {
		return evicted
	}
	if v.Reusable() {
		c.pushPoolLocked(v, c.sizeLocked(v))
		c.stats.Offers++
		c.cond.Signal()
		return evicted
	}
	c.stats.Discards++
	return append(evicted, v)
}

func (c *Pooled[K, V]) pushPoolLocked(v V, size int64) {
	c.seq++
	q, ok := c.buckets[size]
	if !ok {
		q = queue.New()
		c.buckets[size] = q
	}
	q.Add(&poolSlot[V]{value: v, size: size, seq: c.seq})
	c.pooled[v] = poolMark{seq: c.seq, size: size}
	c.bytes += size
}

func (c *Pooled[K, V]) isPooledLocked(v V) bool {
	_, ok := c.pooled[v]
	return ok
}

// unpoolLocked removes v from the free list; its slot goes stale.
func (c *Pooled[K, V]) unpoolLocked(v V) {
	mark, ok := c.pooled[v]
	if !ok {
		return
	}
	delete(c.pooled, v)
	c.bytes -= mark.size
}

// popOldestPooledLocked removes the oldest live slot across all buckets.
func (c *Pooled[K, V]) popOldestPooledLocked() (*poolSlot[V], bool) {
	var (
		best    *poolSlot[V]
		bestKey int64
	)
	for size, q := range c.buckets {
		for q.Length() > 0 {
			slot := q.Peek().(*poolSlot[V])
			if mark, ok := c.pooled[slot.value]; ok && mark.seq == slot.seq {
				break
			}
			q.Remove()
		}
		if q.Length() == 0 {
			delete(c.buckets, size)
			continue
		}
		slot := q.Peek().(*poolSlot[V])
		if best == nil || slot.seq < best.seq {
			best, bestKey = slot, size
		}
	}
	if best == nil {
		return nil, false
	}

	q := c.buckets[bestKey]
	q.Remove()
	if q.Length() == 0 {
		delete(c.buckets, bestKey)
	}
	delete(c.pooled, best.value)
	c.bytes -= best.size
	return best, true
}

func (c *Pooled[K, V]) drainPoolLocked() []V {
	out := make([]V, 0, len(c.pooled))
	for {
		slot, ok := c.popOldestPooledLocked()
		if !ok {
			return out
		}
		out = append(out, slot.value)
	}
}

// takeLocked removes one reclaimable value: pooled first, then the oldest
// unreferenced reusable live entry.
func (c *Pooled[K, V]) takeLocked() (V, bool) {
	if slot, ok := c.popOldestPooledLocked(); ok {
		return slot.value, true
	}

	var (
		found K
		ok    bool
	)
	c.order.WalkOldest(func(key K) bool {
		v := c.entries[key].value
		if v.RefCount() == 0 && v.Reusable() {
			found, ok = key, true
			return false
		}
		return true
	})
	if !ok {
		var zero V
		return zero, false
	}
	v := c.entries[found].value
	c.dropLiveLocked(found)
	return v, true
}

// reclaimableLocked reports whether takeLocked would succeed.
func (c *Pooled[K, V]) reclaimableLocked() bool {
	if len(c.pooled) > 0 {
		return true
	}
	found := false
	c.order.WalkOldest(func(key K) bool {
		v := c.entries[key].value
		found = v.RefCount() == 0 && v.Reusable()
		return !found
	})
	return found
}

// trimLocked evicts until within budget: pooled values oldest-offered first,
// then unreferenced live values oldest-inserted first.
func (c *Pooled[K, V]) trimLocked(evicted []V) []V {
	for c.budget > 0 && c.bytes > c.budget {
		if slot, ok := c.popOldestPooledLocked(); ok {
			evicted = append(evicted, slot.value)
			c.stats.Evictions++
			continue
		}

		var (
			victim K
			ok     bool
		)
		c.order.WalkOldest(func(key K) bool {
			if c.entries[key].value.RefCount() == 0 {
				victim, ok = key, true
				return false
			}
			return true
		})
		if !ok {
			c.log.Debug("cache: over budget with only referenced entries",
				"bytes", c.bytes, "budget", c.budget)
			break
		}
		evicted = append(evicted, c.entries[victim].value)
		c.dropLiveLocked(victim)
		c.stats.Evictions++
	}
	return evicted
}

func (c *Pooled[K, V]) notifyEvicted(evicted []V) {
	if c.onEvict == nil {
		return
	}
	for _, v := range evicted {
		c.onEvict(v)
	}
}
