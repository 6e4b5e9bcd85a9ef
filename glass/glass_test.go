package glass

import (
	"math/rand"
	"testing"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// EMPTY AND POINT-OPERATION BEHAVIOR
// ============================================================================

func TestEmptyIndex(t *testing.T) {
	g := New()

	require.Equal(t, 0, g.Size())

	_, ok := g.Get(0)
	require.False(t, ok)
	_, ok = g.Remove(42)
	require.False(t, ok)
	_, _, ok = g.Min()
	require.False(t, ok)
	_, _, ok = g.Max()
	require.False(t, ok)
	_, ok = g.KthKey(0)
	require.False(t, ok)
	_, _, ok = g.RemoveByIndex(0)
	require.False(t, ok)

	require.Equal(t, uint64(0), g.ComputeBuyCost(100))
	require.Equal(t, uint64(0), g.BuyShares(100))
	g.Restructure()
	require.Equal(t, 0, g.Size())
}

func TestInsertGetRemove(t *testing.T) {
	g := New()

	g.Insert(123, 999)
	v, ok := g.Get(123)
	require.True(t, ok)
	require.Equal(t, uint64(999), v)
	require.Equal(t, 1, g.Size())

	k, v, ok := g.Min()
	require.True(t, ok)
	require.Equal(t, uint32(123), k)
	require.Equal(t, uint64(999), v)
	k, _, ok = g.Max()
	require.True(t, ok)
	require.Equal(t, uint32(123), k)

	// Overwrite in place.
	g.Insert(123, 1000)
	v, _ = g.Get(123)
	require.Equal(t, uint64(1000), v)
	require.Equal(t, 1, g.Size())

	removed, ok := g.Remove(123)
	require.True(t, ok)
	require.Equal(t, uint64(1000), removed)
	require.Equal(t, 0, g.Size())
	_, ok = g.Get(123)
	require.False(t, ok)

	_, ok = g.Remove(123)
	require.False(t, ok)
}

func TestZeroQuantityDeletes(t *testing.T) {
	g := New()
	g.Insert(50, 7)
	g.Insert(50, 0)
	require.Equal(t, 0, g.Size())
	_, ok := g.Get(50)
	require.False(t, ok)

	// Deleting an absent key through a zero insert is a no-op.
	g.Insert(77, 0)
	require.Equal(t, 0, g.Size())
}

func TestUpdateValue(t *testing.T) {
	g := New()
	g.Insert(10, 100)

	ok := g.UpdateValue(10, func(v *uint64) { *v += 5 })
	require.True(t, ok)
	v, _ := g.Get(10)
	require.Equal(t, uint64(105), v)

	ok = g.UpdateValue(11, func(v *uint64) { *v = 1 })
	require.False(t, ok)
	_, ok = g.Get(11)
	require.False(t, ok)
}

func TestMinMaxAfterRemovingExtreme(t *testing.T) {
	g := New()
	for _, k := range []uint32{40, 10, 30, 20} {
		g.Insert(k, uint64(k))
	}

	g.Remove(10)
	k, _, ok := g.Min()
	require.True(t, ok)
	require.Equal(t, uint32(20), k)

	g.Remove(40)
	k, _, ok = g.Max()
	require.True(t, ok)
	require.Equal(t, uint32(30), k)

	// An insert right after clearing the extreme cache must not shadow the
	// surviving minimum.
	g.Remove(20)
	g.Insert(35, 1)
	k, _, ok = g.Min()
	require.True(t, ok)
	require.Equal(t, uint32(30), k)
}

// ============================================================================
// CAPACITY, OVERFLOW AND REBALANCING
// ============================================================================

func TestCapacityEviction(t *testing.T) {
	g := New()
	for i := 0; i < MaxActive+10; i++ {
		g.Insert(uint32(i), uint64(i)+1)
	}

	require.Equal(t, MaxActive+10, g.Size())
	require.Equal(t, MaxActive, g.TrieSize())
	require.Equal(t, 10, g.OverflowSize())

	// Every key stays reachable regardless of partition.
	for i := 0; i < MaxActive+10; i++ {
		v, ok := g.Get(uint32(i))
		require.True(t, ok, "key %d", i)
		require.Equal(t, uint64(i)+1, v)
	}

	k, _, ok := g.Min()
	require.True(t, ok)
	require.Equal(t, uint32(0), k)
	k, _, ok = g.Max()
	require.True(t, ok)
	require.Equal(t, uint32(MaxActive+9), k)
}

func TestEvictionKeepsSmallestActive(t *testing.T) {
	g := New()
	// Odd keys so the later even inserts are guaranteed absent.
	for i := 0; i < MaxActive; i++ {
		g.Insert(uint32(2*i+1), 1)
	}
	require.Equal(t, MaxActive, g.TrieSize())

	// A key below the current worst must displace it, not vanish.
	g.Insert(2, 9)
	require.Equal(t, MaxActive, g.TrieSize())
	require.Equal(t, 1, g.OverflowSize())
	v, ok := g.Get(2)
	require.True(t, ok)
	require.Equal(t, uint64(9), v)
	v, ok = g.Get(uint32(2*MaxActive - 1))
	require.True(t, ok)
	require.Equal(t, uint64(1), v)

	// A key above every active level parks in overflow directly.
	g.Insert(uint32(4*MaxActive), 3)
	require.Equal(t, MaxActive, g.TrieSize())
	require.Equal(t, 2, g.OverflowSize())
	_, ok = g.Get(uint32(4 * MaxActive))
	require.True(t, ok)
}

func TestRestructurePromotesSmallest(t *testing.T) {
	g := New()
	for i := 0; i < MaxActive+100; i++ {
		g.Insert(uint32(i), 1)
	}
	require.Equal(t, 100, g.OverflowSize())

	// Free half the trie, then rebalance.
	for i := 0; i < 60; i++ {
		g.Remove(uint32(i))
	}
	g.Restructure()

	require.Equal(t, MaxActive, g.TrieSize())
	require.Equal(t, 40, g.OverflowSize())

	// Promoted keys stay reachable, and order statistics see one contiguous
	// sequence.
	for i := 60; i < MaxActive+100; i++ {
		_, ok := g.Get(uint32(i))
		require.True(t, ok, "key %d", i)
	}
	k, ok := g.KthKey(0)
	require.True(t, ok)
	require.Equal(t, uint32(60), k)
	k, ok = g.KthKey(g.Size() - 1)
	require.True(t, ok)
	require.Equal(t, uint32(MaxActive+99), k)
}

// ============================================================================
// ORDER STATISTICS AND ITERATION
// ============================================================================

func TestKthKeyAcrossPartitions(t *testing.T) {
	g := New()
	for i := 0; i < MaxActive+50; i++ {
		g.Insert(uint32(i*3), 1)
	}
	for k := 0; k < g.Size(); k += 97 {
		got, ok := g.KthKey(k)
		require.True(t, ok)
		require.Equal(t, uint32(k*3), got)
	}
	_, ok := g.KthKey(g.Size())
	require.False(t, ok)
	_, ok = g.KthKey(-1)
	require.False(t, ok)
}

func TestRemoveByIndex(t *testing.T) {
	g := New()
	keys := []uint32{5, 1, 9, 3, 7}
	for _, k := range keys {
		g.Insert(k, uint64(k)*10)
	}

	k, v, ok := g.RemoveByIndex(2) // sorted: 1 3 5 7 9
	require.True(t, ok)
	require.Equal(t, uint32(5), k)
	require.Equal(t, uint64(50), v)
	require.Equal(t, 4, g.Size())

	k, _, ok = g.RemoveByIndex(0)
	require.True(t, ok)
	require.Equal(t, uint32(1), k)
	k, _, ok = g.RemoveByIndex(2)
	require.True(t, ok)
	require.Equal(t, uint32(9), k)

	_, _, ok = g.RemoveByIndex(5)
	require.False(t, ok)
}

func TestAscendLevels(t *testing.T) {
	g := New()
	for i := 0; i < MaxActive+20; i++ {
		g.Insert(uint32(i*2+1), uint64(i)+1)
	}

	var seen []uint32
	g.AscendLevels(func(k uint32, q uint64) bool {
		seen = append(seen, k)
		return true
	})
	require.Len(t, seen, g.Size())
	for i := 1; i < len(seen); i++ {
		require.Less(t, seen[i-1], seen[i])
	}

	// Early termination stops the walk.
	count := 0
	g.AscendLevels(func(uint32, uint64) bool {
		count++
		return count < 10
	})
	require.Equal(t, 10, count)
}

// ============================================================================
// FILL SIMULATION
// ============================================================================

func TestBuyShares(t *testing.T) {
	g := New()
	g.Insert(10, 500)
	g.Insert(20, 600)

	// 500×10 + 200×20
	require.Equal(t, uint64(9000), g.ComputeBuyCost(700))

	cost := g.BuyShares(700)
	require.Equal(t, uint64(9000), cost)

	_, ok := g.Get(10)
	require.False(t, ok)
	v, ok := g.Get(20)
	require.True(t, ok)
	require.Equal(t, uint64(400), v)
}

func TestComputeBuyCostReadOnly(t *testing.T) {
	g := New()
	for i := 1; i <= MaxActive+30; i++ {
		g.Insert(uint32(i), 10)
	}
	before := g.Size()

	cost := g.ComputeBuyCost(uint64(MaxActive+10) * 10)
	require.NotZero(t, cost)
	require.Equal(t, before, g.Size())
	for i := 1; i <= MaxActive+30; i++ {
		v, ok := g.Get(uint32(i))
		require.True(t, ok)
		require.Equal(t, uint64(10), v)
	}
}

func TestBuyCostSpansOverflow(t *testing.T) {
	g := New()
	var want uint64
	for i := 0; i < MaxActive+5; i++ {
		g.Insert(uint32(i+1), 2)
		want += uint64(i+1) * 2
	}
	require.Equal(t, 5, g.OverflowSize())

	// Demand beyond total liquidity prices exactly what exists.
	require.Equal(t, want, g.ComputeBuyCost(^uint64(0)))
	require.Equal(t, want, g.BuyShares(^uint64(0)))
	require.Equal(t, 0, g.Size())
}

func TestBuySharesDrainsThroughOverflow(t *testing.T) {
	g := New()
	for i := 0; i < MaxActive+3; i++ {
		g.Insert(uint32(i+1), 1)
	}
	// Consume past the original trie contents so promotion must kick in.
	cost := g.BuyShares(uint64(MaxActive + 2))
	require.NotZero(t, cost)
	require.Equal(t, 1, g.Size())
	k, _, ok := g.Min()
	require.True(t, ok)
	require.Equal(t, uint32(MaxActive+3), k)
}

func TestCostSaturates(t *testing.T) {
	g := New()
	g.Insert(^uint32(0), ^uint64(0))
	require.Equal(t, ^uint64(0), g.ComputeBuyCost(^uint64(0)))

	h := New()
	h.Insert(^uint32(0), ^uint64(0))
	require.Equal(t, ^uint64(0), h.BuyShares(^uint64(0)))
}

// ============================================================================
// RANDOMIZED ORACLE CHECK
// ============================================================================

// The index must agree with an ordered map under an arbitrary operation mix,
// including capacity churn across the partition boundary.
func TestRandomOpsAgainstOracle(t *testing.T) {
	g := New()
	oracle := rbt.New[uint32, uint64]()
	rng := rand.New(rand.NewSource(1))

	const keySpace = 3 * MaxActive
	for op := 0; op < 200000; op++ {
		key := uint32(rng.Intn(keySpace))
		switch rng.Intn(10) {
		case 0, 1, 2, 3:
			qty := uint64(rng.Intn(1000) + 1)
			g.Insert(key, qty)
			oracle.Put(key, qty)
		case 4, 5:
			gotV, gotOK := g.Remove(key)
			wantV, wantOK := oracle.Get(key)
			require.Equal(t, wantOK, gotOK, "remove %d", key)
			if wantOK {
				require.Equal(t, wantV, gotV)
			}
			oracle.Remove(key)
		case 6:
			gotV, gotOK := g.Get(key)
			wantV, wantOK := oracle.Get(key)
			require.Equal(t, wantOK, gotOK, "get %d", key)
			if wantOK {
				require.Equal(t, wantV, gotV)
			}
		case 7:
			if oracle.Size() == 0 {
				break
			}
			k := rng.Intn(oracle.Size())
			wantKey := oracle.Keys()[k]
			gotKey, gotOK := g.KthKey(k)
			require.True(t, gotOK)
			require.Equal(t, wantKey, gotKey, "kth %d", k)
		case 8:
			g.Restructure()
		case 9:
			gk, gv, gok := g.Min()
			if n := oracle.Left(); n != nil {
				require.True(t, gok)
				require.Equal(t, n.Key, gk)
				require.Equal(t, n.Value, gv)
			} else {
				require.False(t, gok)
			}
			gk, gv, gok = g.Max()
			if n := oracle.Right(); n != nil {
				require.True(t, gok)
				require.Equal(t, n.Key, gk)
				require.Equal(t, n.Value, gv)
			} else {
				require.False(t, gok)
			}
		}

		require.Equal(t, oracle.Size(), g.Size())
		require.LessOrEqual(t, g.TrieSize(), MaxActive)
	}

	// Full ordered sweep at the end.
	wantKeys := oracle.Keys()
	var gotKeys []uint32
	g.AscendLevels(func(k uint32, q uint64) bool {
		v, found := oracle.Get(k)
		require.True(t, found)
		require.Equal(t, v, q)
		gotKeys = append(gotKeys, k)
		return true
	})
	require.Equal(t, wantKeys, gotKeys)
}
