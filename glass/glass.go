// ============================================================================
// GLASS PRICE-LEVEL INDEX
// ============================================================================
//
// Glass is a bounded, ordered index from 32-bit integer price keys to 64-bit
// resting quantities, built for book-building loops that hammer a narrow
// active band of prices while a long far tail sits mostly idle.
//
// Two partitions share the key space:
//
//	trie:     at most MaxActive smallest keys, held in the radix trie for
//	          O(1)-ish point access and ordered scans.
//	overflow: every key at or above the routing threshold, held in a flat
//	          map with a lazily sorted snapshot for ordered access.
//
// The routing threshold tracks the overflow minimum (unbounded sentinel
// while the overflow is empty), so the partitions never interleave: every
// trie key is strictly below every overflow key.
//
// ⚠️ Single-owner structure: one goroutine owns an instance, no internal
// locking. Cross-goroutine use requires external coordination.
//
// All public operations are total. Absent keys, empty partitions and
// out-of-range indices report through ok-style returns, never panics, and
// fill arithmetic saturates instead of wrapping.

package glass

import (
	"math/bits"
	"slices"
)

const noKey = ^uint32(0) // threshold / minimum sentinel while overflow is empty

// Glass owns a node arena, the overflow map, and a set of access caches.
// The zero value is not usable; construct with New.
type Glass struct {
	arena    []node
	freeList []nodeRef

	// Overflow partition.
	overflow       map[uint32]uint64
	thres          uint32 // routing boundary: overflow minimum, noKey when empty
	overflowMin    uint32
	overflowMax    uint32
	boundsValid    bool
	overflowDirty  bool
	sortedOverflow []uint32

	// Last-access path cache.
	lastKey     uint32
	hasLastKey  bool
	cachedDepth int
	cachedPath  [numLevels]nodeRef

	// Prefix cache: upper 30 key bits → pre-leaf arena index.
	prefix map[uint32]nodeRef

	// Extremal caches, sentinel-reset on removal of the extreme.
	minKey, maxKey   uint32
	minLeaf, maxLeaf nodeRef

	scan bitScanner
}

// New constructs an empty index. Hardware bit-scan capability is probed
// exactly once here; the chosen strategy is fixed for the instance lifetime.
func New() *Glass {
	g := &Glass{
		arena:       make([]node, 1, arenaCapacity),
		overflow:    make(map[uint32]uint64),
		prefix:      make(map[uint32]nodeRef),
		thres:       noKey,
		overflowMin: noKey,
		boundsValid: true,
		minKey:      noKey,
		minLeaf:     nilNode,
		maxLeaf:     nilNode,
		scan:        newBitScanner(),
	}
	clearNode(&g.arena[rootNode])
	return g
}

// TrieSize reports the number of populated levels in the trie partition.
//
//go:nosplit
//go:inline
func (g *Glass) TrieSize() int {
	return int(g.arena[rootNode].count)
}

// OverflowSize reports the number of levels parked in the overflow map.
//
//go:nosplit
//go:inline
func (g *Glass) OverflowSize() int {
	return len(g.overflow)
}

// Size reports the total number of populated levels across both partitions.
//
//go:nosplit
//go:inline
func (g *Glass) Size() int {
	return g.TrieSize() + len(g.overflow)
}

// ============================================================================
// POINT MUTATIONS
// ============================================================================

// Insert sets the quantity at key. A zero quantity is a delete. When the key
// routes to a full trie, the largest trie level is evicted to overflow to
// make room; a key at or above the current trie maximum spills directly.
func (g *Glass) Insert(key uint32, value uint64) {
	if value == 0 {
		g.Remove(key)
		return
	}
	if _, ok := g.Get(key); ok {
		g.UpdateValue(key, func(v *uint64) { *v = value })
		return
	}

	if key < g.thres {
		if g.TrieSize() < MaxActive {
			g.trieInsert(key, value)
			return
		}
		// Trie full: the incoming key displaces the worst trie level only
		// when it actually improves on it.
		if wk, wv, ok := g.trieMax(); ok && key < wk {
			g.trieRemove(wk)
			g.spill(wk, wv)
			g.trieInsert(key, value)
			return
		}
	}
	g.spill(key, value)
}

// spill parks a key in the overflow map, tightening the threshold when the
// key becomes the new overflow minimum.
func (g *Glass) spill(key uint32, value uint64) {
	g.overflow[key] = value
	if key < g.thres {
		g.thres = key
	}
	g.overflowDirty = true
	g.boundsValid = false
}

// Get returns the quantity at key.
//
//go:nosplit
func (g *Glass) Get(key uint32) (uint64, bool) {
	if key < g.thres {
		return g.trieGet(key)
	}
	v, ok := g.overflow[key]
	return v, ok
}

// UpdateValue applies f to the quantity stored at key, in place for trie
// residents. Reports whether the key was present. f must not call back into
// the index.
func (g *Glass) UpdateValue(key uint32, f func(*uint64)) bool {
	if key < g.thres {
		if p := g.trieGetRef(key); p != nil {
			f(p)
			return true
		}
		return false
	}
	v, ok := g.overflow[key]
	if !ok {
		return false
	}
	f(&v)
	g.overflow[key] = v
	g.overflowDirty = true
	return true
}

// Remove deletes key from whichever partition holds it, returning the
// removed quantity.
func (g *Glass) Remove(key uint32) (uint64, bool) {
	if key < g.thres {
		return g.trieRemove(key)
	}
	v, ok := g.overflow[key]
	if !ok {
		return 0, false
	}
	delete(g.overflow, key)
	if len(g.overflow) == 0 {
		g.resetOverflowState()
	} else {
		// Threshold may now sit below the true overflow minimum; that is a
		// safe lower bound, refreshed on the next bounds query.
		g.boundsValid = false
		g.overflowDirty = true
	}
	return v, true
}

func (g *Glass) resetOverflowState() {
	g.thres = noKey
	g.overflowMin = noKey
	g.overflowMax = 0
	g.boundsValid = true
	g.overflowDirty = false
	g.sortedOverflow = g.sortedOverflow[:0]
}

// ============================================================================
// ORDERED ACCESS
// ============================================================================

// refreshOverflowBounds recomputes the cached overflow extremes with a full
// map pass and re-tightens the threshold to the exact minimum.
func (g *Glass) refreshOverflowBounds() {
	if len(g.overflow) == 0 {
		g.resetOverflowState()
		return
	}
	lo, hi := noKey, uint32(0)
	first := true
	for k := range g.overflow {
		if first {
			lo, hi = k, k
			first = false
			continue
		}
		if k < lo {
			lo = k
		}
		if k > hi {
			hi = k
		}
	}
	g.overflowMin = lo
	g.overflowMax = hi
	g.thres = lo
	g.boundsValid = true
}

// Min returns the smallest populated level across both partitions. Since
// every trie key sits below every overflow key, the trie answers whenever it
// is non-empty.
func (g *Glass) Min() (uint32, uint64, bool) {
	if k, v, ok := g.trieMin(); ok {
		return k, v, true
	}
	if len(g.overflow) == 0 {
		return 0, 0, false
	}
	if !g.boundsValid {
		g.refreshOverflowBounds()
	}
	return g.overflowMin, g.overflow[g.overflowMin], true
}

// Max returns the largest populated level across both partitions; the
// overflow answers whenever it is non-empty.
func (g *Glass) Max() (uint32, uint64, bool) {
	if len(g.overflow) > 0 {
		if !g.boundsValid {
			g.refreshOverflowBounds()
		}
		return g.overflowMax, g.overflow[g.overflowMax], true
	}
	return g.trieMax()
}

// overflowSorted returns the ascending overflow key snapshot, rebuilt only
// after a mutation dirtied it.
func (g *Glass) overflowSorted() []uint32 {
	if g.overflowDirty {
		g.sortedOverflow = g.sortedOverflow[:0]
		for k := range g.overflow {
			g.sortedOverflow = append(g.sortedOverflow, k)
		}
		slices.Sort(g.sortedOverflow)
		g.overflowDirty = false
	}
	return g.sortedOverflow
}

// AscendLevels walks every populated level in ascending key order, trie
// first, then the sorted overflow. The walk stops when visit returns false.
// Read-only apart from the sorted-snapshot rebuild.
func (g *Glass) AscendLevels(visit func(key uint32, qty uint64) bool) {
	if !g.trieAscend(rootNode, 0, 0, visit) {
		return
	}
	for _, k := range g.overflowSorted() {
		if !visit(k, g.overflow[k]) {
			return
		}
	}
}

// KthKey returns the key of the k-th smallest populated level (0-based)
// across both partitions.
func (g *Glass) KthKey(k int) (uint32, bool) {
	if k < 0 || k >= g.Size() {
		return 0, false
	}
	ts := g.TrieSize()
	if k < ts {
		return g.trieFindKth(k)
	}
	k -= ts
	keys := make([]uint32, 0, len(g.overflow))
	for key := range g.overflow {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys[k], true
}

// RemoveByIndex deletes the k-th smallest populated level and returns its
// key and quantity.
func (g *Glass) RemoveByIndex(k int) (uint32, uint64, bool) {
	key, ok := g.KthKey(k)
	if !ok {
		return 0, 0, false
	}
	v, _ := g.Remove(key)
	return key, v, true
}

// ============================================================================
// REBALANCING
// ============================================================================

// Restructure promotes the smallest overflow keys into the trie until the
// trie reaches capacity or the overflow drains, then re-derives the
// threshold from the smallest key left behind.
func (g *Glass) Restructure() {
	spare := MaxActive - g.TrieSize()
	if spare <= 0 || len(g.overflow) == 0 {
		return
	}

	keys := make([]uint32, 0, len(g.overflow))
	for k := range g.overflow {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	n := spare
	if n > len(keys) {
		n = len(keys)
	}
	for _, k := range keys[:n] {
		v := g.overflow[k]
		delete(g.overflow, k)
		g.trieInsert(k, v)
	}

	if len(g.overflow) == 0 {
		g.resetOverflowState()
		return
	}
	g.thres = keys[n] // smallest key not promoted
	g.overflowMin = keys[n]
	g.overflowMax = keys[len(keys)-1]
	g.boundsValid = true
	g.overflowDirty = true
}

// ============================================================================
// FILL SIMULATION
// ============================================================================

// ComputeBuyCost reports the saturating cost of lifting `target` units off
// the cheapest levels, without mutating quantities. A partial fill (both
// partitions drained) prices only what was available.
func (g *Glass) ComputeBuyCost(target uint64) uint64 {
	var total uint64
	target = g.trieBuyCost(rootNode, 0, 0, target, &total)
	if target == 0 {
		return total
	}
	for _, k := range g.overflowSorted() {
		avail := g.overflow[k]
		buy := avail
		if buy > target {
			buy = target
		}
		total = satAdd(total, satMul(uint64(k), buy))
		target -= buy
		if target == 0 {
			break
		}
	}
	return total
}

// BuyShares consumes `target` units off the cheapest levels, deleting
// drained levels and promoting overflow keys as trie capacity frees up.
// Returns the saturating cost of what was actually filled.
func (g *Glass) BuyShares(target uint64) uint64 {
	var total uint64
	if g.TrieSize() == 0 && len(g.overflow) > 0 {
		g.Restructure()
	}
	for target > 0 {
		price, _, ok := g.Min()
		if !ok {
			break
		}
		drained := false
		hit := g.UpdateValue(price, func(avail *uint64) {
			buy := *avail
			if buy > target {
				buy = target
			}
			total = satAdd(total, satMul(uint64(price), buy))
			*avail -= buy
			target -= buy
			drained = *avail == 0
		})
		if !hit {
			break
		}
		if drained {
			g.Remove(price)
			if g.TrieSize() < MaxActive {
				g.Restructure()
			}
		}
	}
	return total
}

// ============================================================================
// SATURATING ARITHMETIC
// ============================================================================

//go:nosplit
//go:inline
func satAdd(a, b uint64) uint64 {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return ^uint64(0)
	}
	return s
}

//go:nosplit
//go:inline
func satMul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return ^uint64(0)
	}
	return lo
}
