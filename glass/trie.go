// ============================================================================
// GLASS RADIX TRIE ENGINE
// ============================================================================
//
// Fixed-depth radix-64 trie over the 32-bit price key space, holding the
// active (small-key) partition of the level index. Six levels of 6-bit key
// groups; the final level consumes the remaining 2 bits and is addressed
// through the same 64-slot child array, leaving 60 slots structurally unused
// there.
//
// Nodes live in a growable arena and are referenced by position, never by
// pointer, so the free list can recycle slots without invalidating the
// handles held in the access caches. The root occupies index 0 and is never
// freed.
//
// Traversal exploits two caches:
//   - Path cache: the ancestor chain of the most recently touched key.
//     The shared bit-prefix with the incoming key (leading zeros of the
//     XOR, divided by the level width) tells us how many levels of descent
//     can be skipped.
//   - Prefix cache: upper 30 bits of a key → arena index of the node one
//     level above the leaf, giving O(1) amortized point lookups.

package glass

import "math/bits"

// ============================================================================
// LAYOUT CONSTANTS
// ============================================================================

const (
	bitsPerLevel = 6
	numChildren  = 1 << bitsPerLevel
	keyBits      = 32
	lastBits     = keyBits % bitsPerLevel                      // final level width: 2 bits
	lastMask     = uint32(1<<lastBits) - 1                     // radix-4 slot mask
	numLevels    = (keyBits + bitsPerLevel - 1) / bitsPerLevel // 6

	// MaxActive bounds the trie partition. Keys that would grow it past
	// this spill into the overflow map.
	MaxActive = 4096

	// arenaCapacity seeds the node arena. The arena still grows beyond it
	// if a pathological key distribution needs more interior nodes.
	arenaCapacity = 16384
)

// nodeRef is an opaque arena index. Node identities are meaningless outside
// the owning Glass instance.
type nodeRef uint32

const (
	nilNode  nodeRef = ^nodeRef(0) // absent child / cleared leaf cache
	rootNode nodeRef = 0
)

// node is a trie node owned exclusively by the arena.
//
// mask bit i is set exactly when children[i] is occupied; count is the
// number of populated leaves reachable below this node (inclusive, when the
// node is itself a populated leaf). Interior nodes never hold a value.
type node struct {
	mask     uint64
	value    uint64
	count    uint32
	hasValue bool
	children [numChildren]nodeRef
}

// clearNode resets a node to the empty state with all child slots absent.
//
//go:nosplit
//go:inline
func clearNode(n *node) {
	n.mask = 0
	n.value = 0
	n.count = 0
	n.hasValue = false
	for i := range n.children {
		n.children[i] = nilNode
	}
}

// levelShift returns the right-shift that exposes the key group consumed at
// the given depth. Depths past the 32-bit boundary saturate to zero.
//
//go:nosplit
//go:inline
func levelShift(depth int) uint {
	s := keyBits - (depth+1)*bitsPerLevel
	if s < 0 {
		return 0
	}
	return uint(s)
}

// levelBits returns the group width at the given depth (6, except 2 at the
// final level).
//
//go:nosplit
//go:inline
func levelBits(depth int) int {
	b := keyBits - depth*bitsPerLevel
	if b > bitsPerLevel {
		return bitsPerLevel
	}
	return b
}

// childSlot extracts the child index for key at the given depth.
//
//go:nosplit
//go:inline
func childSlot(key uint32, depth int) int {
	return int((key >> levelShift(depth)) & ((1 << uint(levelBits(depth))) - 1))
}

// sharedLevels reports how many whole trie levels two keys share, i.e. how
// many levels of descent a cached path for one can skip for the other.
//
//go:nosplit
//go:inline
func sharedLevels(a, b uint32) int {
	if a == b {
		return numLevels
	}
	return bits.LeadingZeros32(a^b) / bitsPerLevel
}

// ============================================================================
// ARENA MANAGEMENT
// ============================================================================

// allocNode hands out a cleared node, preferring the free list over growth.
func (g *Glass) allocNode() nodeRef {
	if n := len(g.freeList); n > 0 {
		ref := g.freeList[n-1]
		g.freeList = g.freeList[:n-1]
		clearNode(&g.arena[ref])
		return ref
	}
	ref := nodeRef(len(g.arena))
	g.arena = append(g.arena, node{})
	clearNode(&g.arena[ref])
	return ref
}

// ============================================================================
// POINT OPERATIONS
// ============================================================================

// trieInsert places a key that is known to be absent. The caller has already
// routed the key (below threshold) and checked capacity.
func (g *Glass) trieInsert(key uint32, value uint64) {
	partial := key >> lastBits
	wasEmpty := g.arena[rootNode].count == 0
	level := 0
	ref := rootNode

	// Skip shared-prefix levels using the cached ancestor chain.
	if g.hasLastKey {
		level = sharedLevels(key, g.lastKey)
		if level > g.cachedDepth {
			level = g.cachedDepth
		}
		if level > numLevels-1 {
			level = numLevels - 1
		}
		if level > 0 {
			ref = g.cachedPath[level]
		}
	}

	for l := level; l < numLevels; l++ {
		slot := childSlot(key, l)
		if g.arena[ref].children[slot] == nilNode {
			child := g.allocNode()
			n := &g.arena[ref] // re-acquire: allocNode may grow the arena
			n.children[slot] = child
			n.mask |= 1 << uint(slot)
		}
		if l == numLevels-1 {
			if _, ok := g.prefix[partial]; !ok {
				g.prefix[partial] = ref
			}
		}
		g.cachedPath[l] = ref
		ref = g.arena[ref].children[slot]
	}

	leaf := &g.arena[ref]
	leaf.value = value
	leaf.hasValue = true
	leaf.count = 1

	// Cardinality bump along the full ancestor chain. Entries below the
	// resume level are shared with the previous key by construction.
	for l := 0; l < numLevels; l++ {
		g.arena[g.cachedPath[l]].count++
	}

	g.lastKey = key
	g.hasLastKey = true
	g.cachedDepth = numLevels

	// Extremal caches are extended only while live; a cleared cache stays
	// cleared until the lazy recompute, since an arbitrary insert says
	// nothing about the surviving extreme.
	if g.minLeaf != nilNode {
		if key < g.minKey {
			g.minKey = key
			g.minLeaf = ref
		}
	} else if wasEmpty {
		g.minKey = key
		g.minLeaf = ref
	}
	if g.maxLeaf != nilNode {
		if key > g.maxKey {
			g.maxKey = key
			g.maxLeaf = ref
		}
	} else if wasEmpty {
		g.maxKey = key
		g.maxLeaf = ref
	}
}

// trieGet resolves a point lookup: prefix cache first, then a top-down
// descent shortened by the path cache.
func (g *Glass) trieGet(key uint32) (uint64, bool) {
	if p := g.trieLeafRef(key); p != nilNode {
		n := &g.arena[p]
		return n.value, n.hasValue
	}
	return 0, false
}

// trieGetRef exposes the stored quantity for in-place mutation, or nil when
// the key is absent.
func (g *Glass) trieGetRef(key uint32) *uint64 {
	if p := g.trieLeafRef(key); p != nilNode {
		n := &g.arena[p]
		if n.hasValue {
			return &n.value
		}
	}
	return nil
}

// trieLeafRef locates the leaf node for key, refreshing the path and prefix
// caches on the slow path. Returns nilNode when absent.
func (g *Glass) trieLeafRef(key uint32) nodeRef {
	partial := key >> lastBits

	// Fast path: prefix cache jumps straight to the pre-leaf level.
	if preleaf, ok := g.prefix[partial]; ok {
		if leaf := g.arena[preleaf].children[key&lastMask]; leaf != nilNode {
			return leaf
		}
	}

	level := 0
	ref := rootNode
	if g.hasLastKey {
		level = sharedLevels(key, g.lastKey)
		if level > g.cachedDepth {
			level = g.cachedDepth
		}
		if level > numLevels-1 {
			level = numLevels - 1
		}
		if level > 0 {
			ref = g.cachedPath[level]
		}
	}

	// Path entries are staged locally and committed only on a full descent,
	// so a miss can never leave the cache describing a mix of two keys.
	var staged [numLevels]nodeRef
	for l := level; l < numLevels; l++ {
		slot := childSlot(key, l)
		if l == numLevels-1 {
			if _, ok := g.prefix[partial]; !ok {
				g.prefix[partial] = ref
			}
		}
		child := g.arena[ref].children[slot]
		if child == nilNode {
			return nilNode
		}
		staged[l] = ref
		ref = child
	}

	if g.arena[ref].hasValue {
		copy(g.cachedPath[level:], staged[level:])
		g.lastKey = key
		g.hasLastKey = true
		g.cachedDepth = numLevels
	}
	return ref
}

// trieRemove deletes a key from the trie, decrementing cardinalities along
// the path and pruning ancestors that become empty. Returns the removed
// quantity.
func (g *Glass) trieRemove(key uint32) (uint64, bool) {
	partial := key >> lastBits

	var parents [numLevels]nodeRef
	var slots [numLevels]int
	ref := rootNode

	for l := 0; l < numLevels; l++ {
		slot := childSlot(key, l)
		if l == numLevels-1 {
			if _, ok := g.prefix[partial]; !ok {
				g.prefix[partial] = ref
			}
		}
		child := g.arena[ref].children[slot]
		if child == nilNode {
			return 0, false
		}
		parents[l] = ref
		slots[l] = slot
		ref = child
	}

	leaf := &g.arena[ref]
	if !leaf.hasValue {
		return 0, false
	}
	removed := leaf.value
	leaf.value = 0
	leaf.hasValue = false
	leaf.count = 0

	for l := 0; l < numLevels; l++ {
		g.arena[parents[l]].count--
	}

	// Prune empty branches bottom-up, stopping at the first ancestor that
	// still carries something.
	current := ref
	pruned := 0
	for l := numLevels - 1; l >= 0; l-- {
		n := &g.arena[current]
		if n.hasValue || n.mask != 0 {
			break
		}
		parent := parents[l]
		slot := slots[l]
		p := &g.arena[parent]
		p.children[slot] = nilNode
		p.mask &^= 1 << uint(slot)
		g.freeList = append(g.freeList, current)

		// The pre-leaf going empty invalidates its prefix cache entry.
		if l == numLevels-1 && p.mask == 0 {
			delete(g.prefix, partial)
		}
		pruned++
		current = parent
	}

	// Pruned nodes on this key's path may also sit on the cached path when
	// the last-accessed key shares the prefix down to the pruned region;
	// clamp the usable depth so stale (potentially recycled) entries are
	// never followed.
	if pruned > 0 && g.hasLastKey && sharedLevels(key, g.lastKey) >= numLevels-pruned {
		if g.cachedDepth > numLevels-pruned {
			g.cachedDepth = numLevels - pruned
		}
	}

	// Extremal caches reset to sentinels and recompute lazily on the next
	// Min/Max touch.
	if key == g.minKey {
		g.minKey = ^uint32(0)
		g.minLeaf = nilNode
	}
	if key == g.maxKey {
		g.maxKey = 0
		g.maxLeaf = nilNode
	}
	return removed, true
}

// ============================================================================
// EXTREMES
// ============================================================================

// trieMin returns the smallest populated level in the trie, serving from the
// cached extreme leaf when it is still live.
func (g *Glass) trieMin() (uint32, uint64, bool) {
	if g.minLeaf != nilNode {
		if n := &g.arena[g.minLeaf]; n.hasValue {
			return g.minKey, n.value, true
		}
	}
	return g.trieExtreme(true)
}

// trieMax mirrors trieMin for the largest populated level.
func (g *Glass) trieMax() (uint32, uint64, bool) {
	if g.maxLeaf != nilNode {
		if n := &g.arena[g.maxLeaf]; n.hasValue {
			return g.maxKey, n.value, true
		}
	}
	return g.trieExtreme(false)
}

// trieExtreme recomputes an extreme by scanning child masks top-down, then
// refreshes the corresponding leaf cache.
func (g *Glass) trieExtreme(isMin bool) (uint32, uint64, bool) {
	if g.arena[rootNode].mask == 0 {
		return 0, 0, false
	}

	ref := rootNode
	key := uint32(0)
	for depth := 0; depth < numLevels; depth++ {
		mask := g.arena[ref].mask
		var slot int
		if isMin {
			slot = g.scan.next(mask, 0)
		} else {
			slot = g.scan.prev(mask, 1<<uint(levelBits(depth)))
		}
		if slot < 0 {
			return 0, 0, false
		}
		key |= uint32(slot) << levelShift(depth)
		ref = g.arena[ref].children[slot]
	}

	n := &g.arena[ref]
	if !n.hasValue {
		return 0, 0, false
	}
	if isMin {
		g.minKey = key
		g.minLeaf = ref
	} else {
		g.maxKey = key
		g.maxLeaf = ref
	}
	return key, n.value, true
}

// ============================================================================
// ORDER STATISTICS AND ASCENDING WALKS
// ============================================================================

// trieFindKth resolves the key of the k-th smallest populated level using
// subtree cardinalities: at each level, earlier siblings whose whole subtree
// precedes the target are skipped by subtracting their counts.
func (g *Glass) trieFindKth(k int) (uint32, bool) {
	if k < 0 || k >= g.TrieSize() {
		return 0, false
	}

	ref := rootNode
	key := uint32(0)
	for depth := 0; depth < numLevels; depth++ {
		n := &g.arena[ref]
		start := 0
		descended := false
		for !descended {
			slot := g.scan.next(n.mask, start)
			if slot < 0 {
				// Unreachable when counts are consistent with k.
				return 0, false
			}
			child := n.children[slot]
			cc := int(g.arena[child].count)
			if k < cc {
				key |= uint32(slot) << levelShift(depth)
				ref = child
				descended = true
			} else {
				k -= cc
				start = slot + 1
			}
		}
	}
	return key, true
}

// trieBuyCost walks populated levels in strictly ascending key order,
// consuming quantity against the remaining target and accumulating
// price×consumed with saturating arithmetic. Returns the unfilled remainder.
func (g *Glass) trieBuyCost(ref nodeRef, depth int, prefix uint32, target uint64, total *uint64) uint64 {
	if target == 0 {
		return 0
	}
	if depth == numLevels {
		n := &g.arena[ref]
		if n.hasValue {
			buy := n.value
			if buy > target {
				buy = target
			}
			*total = satAdd(*total, satMul(uint64(prefix), buy))
			target -= buy
		}
		return target
	}

	rem := g.arena[ref].mask
	for rem != 0 && target > 0 {
		slot := g.scan.next(rem, 0)
		rem &^= 1 << uint(slot)
		child := g.arena[ref].children[slot]
		target = g.trieBuyCost(child, depth+1, prefix|uint32(slot)<<levelShift(depth), target, total)
	}
	return target
}

// trieAscend visits populated levels in ascending key order until the
// visitor declines. Read-only.
func (g *Glass) trieAscend(ref nodeRef, depth int, prefix uint32, visit func(key uint32, qty uint64) bool) bool {
	if depth == numLevels {
		n := &g.arena[ref]
		if n.hasValue {
			return visit(prefix, n.value)
		}
		return true
	}
	rem := g.arena[ref].mask
	for rem != 0 {
		slot := g.scan.next(rem, 0)
		rem &^= 1 << uint(slot)
		if !g.trieAscend(g.arena[ref].children[slot], depth+1, prefix|uint32(slot)<<levelShift(depth), visit) {
			return false
		}
	}
	return true
}
