// ring.go
//
// Fixed-window event tape: a circular buffer of event timestamps used to
// estimate the stream's arrival intensity. Single-owner like the book it
// belongs to, so the head index needs no atomics; the power-of-two size
// keeps the wrap a bit-mask.

package book

// tapeSize must stay a power of two for the masked wrap.
const tapeSize = 4096

// LambdaRing records the last tapeSize event times (venue milliseconds).
// Older events fall off the back; Rate only ever looks at a recent window
// so the truncation is invisible in practice.
type LambdaRing struct {
	ts    [tapeSize]uint64
	head  uint32
	count uint32
}

// Push records one event time.
//
//go:nosplit
func (r *LambdaRing) Push(t uint64) {
	r.ts[r.head&(tapeSize-1)] = t
	r.head++
	if r.count < tapeSize {
		r.count++
	}
}

// Len returns the number of recorded events, capped at the tape size.
func (r *LambdaRing) Len() int { return int(r.count) }

// Reset forgets all recorded events.
func (r *LambdaRing) Reset() {
	r.head = 0
	r.count = 0
}

// Trim drops recorded events older than cutoff.
func (r *LambdaRing) Trim(cutoff uint64) {
	kept := uint32(0)
	for i := uint32(1); i <= r.count; i++ {
		if r.ts[(r.head-i)&(tapeSize-1)] < cutoff {
			break
		}
		kept++
	}
	r.count = kept
}

// EventsWithin counts recorded events with now-window <= ts <= now, walking
// newest to oldest and stopping at the first stale entry. Entries stamped
// after now (clock skew) still count.
func (r *LambdaRing) EventsWithin(window, now uint64) int {
	cutoff := uint64(0)
	if now > window {
		cutoff = now - window
	}
	n := 0
	for i := uint32(1); i <= r.count; i++ {
		if r.ts[(r.head-i)&(tapeSize-1)] < cutoff {
			break
		}
		n++
	}
	return n
}

// Rate returns events per second over the trailing window (milliseconds).
func (r *LambdaRing) Rate(windowMs, now uint64) float64 {
	if windowMs == 0 {
		return 0
	}
	return float64(r.EventsWithin(windowMs, now)) * 1000 / float64(windowMs)
}
