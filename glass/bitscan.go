// ============================================================================
// BIT-SCAN STRATEGY SELECTION
// ============================================================================
//
// Child-mask navigation reduces to two primitives over a 64-bit occupancy
// word: lowest set bit at or above a floor, and highest set bit strictly
// below a ceiling. The strategy is picked once per Glass instance: when the
// host advertises BMI1 (TZCNT, and LZCNT on the same parts), math/bits
// lowers to the single-instruction forms; otherwise a portable De Bruijn
// variant with no hardware assumptions is installed.

package glass

import (
	"math/bits"

	"golang.org/x/sys/cpu"
)

// bitScanner carries the resolved scan functions. Both return -1 when no
// qualifying bit exists.
type bitScanner struct {
	next func(mask uint64, start int) int // lowest set bit, index >= start
	prev func(mask uint64, end int) int   // highest set bit, index < end
}

func newBitScanner() bitScanner {
	if cpu.X86.HasBMI1 {
		return bitScanner{next: nextSetBitHW, prev: prevSetBitHW}
	}
	return bitScanner{next: nextSetBitPortable, prev: prevSetBitPortable}
}

// ============================================================================
// HARDWARE-ACCELERATED PATH
// ============================================================================

//go:nosplit
//go:inline
func nextSetBitHW(mask uint64, start int) int {
	if start >= 64 {
		return -1
	}
	if start > 0 {
		mask &^= (1 << uint(start)) - 1
	}
	if mask == 0 {
		return -1
	}
	return bits.TrailingZeros64(mask)
}

//go:nosplit
//go:inline
func prevSetBitHW(mask uint64, end int) int {
	if end <= 0 {
		return -1
	}
	if end < 64 {
		mask &= (1 << uint(end)) - 1
	}
	if mask == 0 {
		return -1
	}
	return 63 - bits.LeadingZeros64(mask)
}

// ============================================================================
// PORTABLE FALLBACK
// ============================================================================

// De Bruijn multiply-shift bit indexing; branch-free once the candidate bit
// is isolated.
const deBruijn64 = 0x03f79d71b4ca8b09

var deBruijnIdx = [64]int{
	0, 1, 56, 2, 57, 49, 28, 3,
	61, 58, 42, 50, 38, 29, 17, 4,
	62, 47, 59, 36, 45, 43, 51, 22,
	53, 39, 33, 30, 24, 18, 12, 5,
	63, 55, 48, 27, 60, 41, 37, 16,
	46, 35, 44, 21, 52, 32, 23, 11,
	54, 26, 40, 15, 34, 20, 31, 10,
	25, 14, 19, 9, 13, 8, 7, 6,
}

//go:nosplit
func nextSetBitPortable(mask uint64, start int) int {
	if start >= 64 {
		return -1
	}
	if start > 0 {
		mask &^= (1 << uint(start)) - 1
	}
	if mask == 0 {
		return -1
	}
	lsb := mask & (^mask + 1)
	return deBruijnIdx[lsb*deBruijn64>>58]
}

//go:nosplit
func prevSetBitPortable(mask uint64, end int) int {
	if end <= 0 {
		return -1
	}
	if end < 64 {
		mask &= (1 << uint(end)) - 1
	}
	if mask == 0 {
		return -1
	}
	// Smear downward, then isolate the surviving top bit.
	mask |= mask >> 1
	mask |= mask >> 2
	mask |= mask >> 4
	mask |= mask >> 8
	mask |= mask >> 16
	mask |= mask >> 32
	msb := mask &^ (mask >> 1)
	return deBruijnIdx[msb*deBruijn64>>58]
}
