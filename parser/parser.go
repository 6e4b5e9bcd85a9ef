package parser

import (
	"unsafe"

	"github.com/jaycampbellluo/binance-l3-est/constants"
	"github.com/jaycampbellluo/binance-l3-est/utils"
)

// ============================================================================
// DEPTH EVENT PARSER - ZERO-ALLOCATION JSON PROCESSING
// ============================================================================
//
// Extracts the fields of a Binance futures diff-depth event from the raw
// WebSocket payload without allocations: every extracted slice is a view
// into the frame buffer and is only valid until the next frame overwrites
// it.
//
// SAFETY MODEL:
// - Assumes well-formed JSON from the venue (trusted source)
// - Field probes are single 32-bit loads; a frame shorter than the probe
//   window is rejected up front
// - Malformed frames degrade to a !ok return, never a panic
//
// The scan is a single forward pass. Binance emits fields in a fixed order
// (e, E, T, s, U, u, pu, b, a) which the switch ordering mirrors for branch
// prediction, but correctness does not depend on the order.
// ============================================================================

// DepthView holds zero-copy references to one diff-depth event.
//
// Bids and Asks are the raw innards of the level arrays, i.e. the bytes
// between the outer brackets of `[["price","qty"],...]`. Use ForEachLevel to
// walk them.
type DepthView struct {
	Symbol    []byte
	EventTime uint64 // venue wall clock, ms
	TradeTime uint64 // matching engine clock, ms
	FirstID   uint64 // U: first update ID in event
	FinalID   uint64 // u: final update ID in event
	PrevID    uint64 // pu: final ID of previous event
	Bids      []byte
	Asks      []byte
}

// ParseDepth scans one frame and fills a DepthView. Returns !ok for frames
// that are not depth updates (stream confirmations, unrelated events) or
// that are structurally broken.
//
//go:nosplit
func ParseDepth(p []byte) (DepthView, bool) {
	var v DepthView

	// Smallest conceivable depth event is far larger than this; anything
	// shorter is a control payload of some kind.
	if len(p) < 48 {
		return v, false
	}

	sawType := false
	sawBids := false
	sawAsks := false

	end := len(p) - 4
	for i := 0; i <= end; i++ {
		tag := *(*[4]byte)(unsafe.Pointer(&p[i]))

		switch tag {
		case constants.KeyEventType:
			// `"e":"depthUpdate"` — only the leading bytes of the value
			// need checking, nothing else starts with `"d` on this stream.
			if i+6 >= len(p) || p[i+4] != '"' || p[i+5] != 'd' {
				return v, false
			}
			sawType = true
			i += 5

		case constants.KeyEventTime:
			n := 0
			v.EventTime, n = utils.ParseUintDec(p[i+4:])
			if n == 0 {
				return v, false
			}
			i += 3 + n

		case constants.KeyTradeTime:
			n := 0
			v.TradeTime, n = utils.ParseUintDec(p[i+4:])
			if n == 0 {
				return v, false
			}
			i += 3 + n

		case constants.KeySymbol:
			// `"s":"DOGEUSDT"` — consume through the closing quote so the
			// symbol bytes can never alias later probes.
			start := i + 5
			j := start
			for j < len(p) && p[j] != '"' {
				j++
			}
			if j == len(p) {
				return v, false
			}
			v.Symbol = p[start:j]
			i = j

		case constants.KeyFirstID:
			n := 0
			v.FirstID, n = utils.ParseUintDec(p[i+4:])
			if n == 0 {
				return v, false
			}
			i += 3 + n

		case constants.KeyFinalID:
			n := 0
			v.FinalID, n = utils.ParseUintDec(p[i+4:])
			if n == 0 {
				return v, false
			}
			i += 3 + n

		case constants.KeyPrevID:
			// `"pu":<id>` — the probe covers `"pu"`, the colon sits at i+4.
			if i+5 >= len(p) || p[i+4] != ':' {
				break
			}
			n := 0
			v.PrevID, n = utils.ParseUintDec(p[i+5:])
			if n == 0 {
				return v, false
			}
			i += 4 + n

		case constants.KeyBids:
			raw, next, ok := sliceLevelArray(p, i+4)
			if !ok {
				return v, false
			}
			v.Bids = raw
			sawBids = true
			i = next

		case constants.KeyAsks:
			raw, next, ok := sliceLevelArray(p, i+4)
			if !ok {
				return v, false
			}
			v.Asks = raw
			sawAsks = true
			i = next
		}
	}

	if !sawType || !sawBids || !sawAsks || v.FinalID < v.FirstID {
		return v, false
	}
	return v, true
}

// sliceLevelArray extracts the innards of a `[[...],[...]]` level array
// whose opening bracket sits at p[open]. Returns the inner bytes and the
// index of the closing bracket.
//
//go:nosplit
//go:inline
func sliceLevelArray(p []byte, open int) ([]byte, int, bool) {
	if open >= len(p) || p[open] != '[' {
		return nil, 0, false
	}
	depth := 1
	for j := open + 1; j < len(p); j++ {
		switch p[j] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return p[open+1 : j], j, true
			}
		}
	}
	return nil, 0, false
}

// ForEachLevel walks the `["price","qty"]` pairs of a raw level array,
// handing each to visit with both decimals scaled into integers. Reports
// whether the whole array parsed cleanly; parsing stops at the first
// malformed pair.
//
//go:nosplit
func ForEachLevel(raw []byte, priceDecimals, qtyDecimals int, visit func(price uint64, qty uint64)) bool {
	i := 0
	for i < len(raw) {
		// Seek the opening quote of the price string.
		for i < len(raw) && raw[i] != '"' {
			i++
		}
		if i == len(raw) {
			return true // trailing separators only
		}
		i++

		price, n := utils.ParseScaledDec(raw[i:], priceDecimals)
		if n == 0 {
			return false
		}
		i += n
		if i+2 >= len(raw) || raw[i] != '"' || raw[i+1] != ',' || raw[i+2] != '"' {
			return false
		}
		i += 3

		qty, n := utils.ParseScaledDec(raw[i:], qtyDecimals)
		if n == 0 {
			return false
		}
		i += n
		if i >= len(raw) || raw[i] != '"' {
			return false
		}
		i++

		visit(price, qty)
	}
	return true
}
