package utils

import (
	"syscall"
	"unsafe"
)

///////////////////////////////////////////////////////////////////////////////
// Conversion Utilities — Zero-Alloc Casts
///////////////////////////////////////////////////////////////////////////////

// B2s converts a []byte to a string **without** allocation.
// ⚠️ Caller must ensure the input slice remains valid and unchanged.
// Used for human-readable print paths.
//
//go:nosplit
//go:inline
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

///////////////////////////////////////////////////////////////////////////////
// Fast Loaders — Unaligned 32/64-Bit Reads
///////////////////////////////////////////////////////////////////////////////

// Load32 reads an unaligned 32-bit word from a byte slice.
//
//go:nosplit
//go:inline
func Load32(b []byte) uint32 {
	return *(*uint32)(unsafe.Pointer(&b[0]))
}

// Load64 reads an unaligned 64-bit word from a byte slice.
//
//go:nosplit
//go:inline
func Load64(b []byte) uint64 {
	return *(*uint64)(unsafe.Pointer(&b[0]))
}

///////////////////////////////////////////////////////////////////////////////
// Decimal Scanners — No Allocation, Early Exit on Malformed Input
///////////////////////////////////////////////////////////////////////////////

// ParseUintDec parses a decimal uint64 starting at b[0] and reports how many
// bytes were consumed. Stops at the first non-digit; zero consumed means no
// digit was present.
//
//go:nosplit
//go:inline
func ParseUintDec(b []byte) (uint64, int) {
	var v uint64
	i := 0
	for ; i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			break
		}
		if v > (^uint64(0)-9)/10 {
			break // overflow guard
		}
		v = v*10 + uint64(c-'0')
	}
	return v, i
}

// ParseScaledDec parses a decimal string like "7403.89" into an integer
// scaled by 10^decimals, truncating fractional digits past the scale.
// Exchange feeds quote fixed-scale decimals, so truncation never fires on
// well-formed input. Returns the scaled value and bytes consumed.
//
//go:nosplit
func ParseScaledDec(b []byte, decimals int) (uint64, int) {
	var v uint64
	i := 0
	for ; i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + uint64(c-'0')
	}
	frac := 0
	if i < len(b) && b[i] == '.' {
		i++
		for ; i < len(b) && frac < decimals; i++ {
			c := b[i]
			if c < '0' || c > '9' {
				break
			}
			v = v*10 + uint64(c-'0')
			frac++
		}
		// Swallow (truncate) any excess fractional digits.
		for ; i < len(b); i++ {
			if c := b[i]; c < '0' || c > '9' {
				break
			}
		}
	}
	for ; frac < decimals; frac++ {
		v *= 10
	}
	return v, i
}

// Itoa converts an int to its decimal string form using a stack buffer.
// Cold-path helper for log message assembly.
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Utoa64 converts a uint64 to its decimal string form.
func Utoa64(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

///////////////////////////////////////////////////////////////////////////////
// Fixed-Point Formatting — For Human-Readable Diagnostics
///////////////////////////////////////////////////////////////////////////////

// FormatScaled renders an integer that carries `decimals` implied fractional
// digits back into decimal notation, e.g. (740389, 2) → "7403.89".
func FormatScaled(v uint64, decimals int) string {
	s := Utoa64(v)
	if decimals <= 0 {
		return s
	}
	if len(s) <= decimals {
		pad := make([]byte, 0, decimals+2)
		pad = append(pad, '0', '.')
		for i := len(s); i < decimals; i++ {
			pad = append(pad, '0')
		}
		return string(append(pad, s...))
	}
	cut := len(s) - decimals
	return s[:cut] + "." + s[cut:]
}

///////////////////////////////////////////////////////////////////////////////
// Warning Output — Direct Stderr Write
///////////////////////////////////////////////////////////////////////////////

// PrintWarning writes a message straight to stderr (fd 2), bypassing the fmt
// machinery and its allocations.
//
//go:nosplit
func PrintWarning(msg string) {
	if len(msg) == 0 {
		return
	}
	_, _ = syscall.Write(2, unsafe.Slice(unsafe.StringData(msg), len(msg)))
}
