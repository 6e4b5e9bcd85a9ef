package book

import (
	"errors"
	"math/bits"

	"github.com/jaycampbellluo/binance-l3-est/glass"
	"github.com/jaycampbellluo/binance-l3-est/parser"
	"github.com/jaycampbellluo/binance-l3-est/snapshot"
	"github.com/jaycampbellluo/binance-l3-est/utils"
)

// ============================================================================
// TWO-SIDED ORDER BOOK - DIFF DEPTH STATE MACHINE
// ============================================================================
//
// Maintains bid and ask price ladders as two Glass indexes keyed by integer
// ticks. The ask side stores ticks directly so the minimum key is the best
// ask. The bid side stores the BITWISE COMPLEMENT of the tick, which flips
// the ordering: the best (highest) bid becomes the minimum key, and capacity
// eviction on both sides sheds the levels farthest from the touch.
//
// Sequencing follows the venue's diff-depth contract:
// - after a snapshot, events whose final ID precedes the snapshot are stale
//   and dropped
// - the first live event must straddle the snapshot ID
// - every later event must chain off the previous one via its prev-final ID
// Any violation surfaces as ErrGap and the caller resynchronizes from a
// fresh snapshot.
// ============================================================================

// ErrGap reports a hole in the update ID chain. The book contents are no
// longer trustworthy and must be rebuilt from a snapshot.
var ErrGap = errors.New("book: update id gap")

// Book is single-owner: one goroutine applies updates and reads state.
type Book struct {
	bids *glass.Glass // keyed by ^tick, min = best bid
	asks *glass.Glass // keyed by tick, min = best ask

	priceDecimals int
	qtyDecimals   int

	lastID uint64
	synced bool

	tape LambdaRing
}

// New builds an empty book for one symbol. The decimal scales come from the
// symbol configuration and fix how quote strings map onto integer ticks.
func New(priceDecimals, qtyDecimals int) *Book {
	return &Book{
		bids:          glass.New(),
		asks:          glass.New(),
		priceDecimals: priceDecimals,
		qtyDecimals:   qtyDecimals,
	}
}

// ApplySnapshot resets both sides from a REST snapshot and arms the
// sequencing state machine. Levels whose tick exceeds the representable
// range are dropped.
func (b *Book) ApplySnapshot(s *snapshot.Book) {
	b.bids = glass.New()
	b.asks = glass.New()
	for _, lvl := range s.Bids {
		price, qty, ok := b.parseLevel(lvl)
		if ok {
			b.setBid(price, qty)
		}
	}
	for _, lvl := range s.Asks {
		price, qty, ok := b.parseLevel(lvl)
		if ok {
			b.setAsk(price, qty)
		}
	}
	b.lastID = s.LastUpdateID
	b.synced = false
}

func (b *Book) parseLevel(lvl [2]string) (uint64, uint64, bool) {
	price, n := utils.ParseScaledDec([]byte(lvl[0]), b.priceDecimals)
	if n == 0 || n != len(lvl[0]) {
		return 0, 0, false
	}
	qty, n := utils.ParseScaledDec([]byte(lvl[1]), b.qtyDecimals)
	if n != len(lvl[1]) {
		return 0, 0, false
	}
	return price, qty, true
}

// ApplyDepth folds one diff-depth event into the book. Returns whether the
// event mutated state; ErrGap means the chain broke and a resync is needed.
func (b *Book) ApplyDepth(v *parser.DepthView) (bool, error) {
	if b.synced {
		if v.PrevID != b.lastID {
			return false, ErrGap
		}
	} else {
		if v.FinalID < b.lastID {
			return false, nil // predates the snapshot
		}
		if v.FirstID > b.lastID {
			return false, ErrGap // snapshot too old for the buffered stream
		}
		b.synced = true
	}

	if !parser.ForEachLevel(v.Bids, b.priceDecimals, b.qtyDecimals, b.setBid) {
		return false, ErrGap
	}
	if !parser.ForEachLevel(v.Asks, b.priceDecimals, b.qtyDecimals, b.setAsk) {
		return false, ErrGap
	}

	b.lastID = v.FinalID
	b.tape.Push(v.EventTime)
	return true, nil
}

// Synced reports whether the first post-snapshot event has been chained.
func (b *Book) Synced() bool { return b.synced }

// LastUpdateID returns the final ID of the last applied event or snapshot.
func (b *Book) LastUpdateID() uint64 { return b.lastID }

// Tape exposes the event-time ring for rate queries.
func (b *Book) Tape() *LambdaRing { return &b.tape }

//go:nosplit
func (b *Book) setBid(price, qty uint64) {
	if price == 0 || price > uint64(^uint32(0)) {
		return // outside the tick range
	}
	b.bids.Insert(^uint32(price), qty)
}

//go:nosplit
func (b *Book) setAsk(price, qty uint64) {
	if price == 0 || price > uint64(^uint32(0)) {
		return
	}
	b.asks.Insert(uint32(price), qty)
}

// Maintain repatriates parked levels on both sides. Call between bursts;
// the touch stays correct without it, only far-side queries degrade.
func (b *Book) Maintain() {
	b.bids.Restructure()
	b.asks.Restructure()
}

// BidLevels returns the number of live bid price levels.
func (b *Book) BidLevels() int { return b.bids.Size() }

// AskLevels returns the number of live ask price levels.
func (b *Book) AskLevels() int { return b.asks.Size() }

// BestBid returns the highest bid tick and its quantity.
func (b *Book) BestBid() (uint32, uint64, bool) {
	key, qty, ok := b.bids.Min()
	return ^key, qty, ok
}

// BestAsk returns the lowest ask tick and its quantity.
func (b *Book) BestAsk() (uint32, uint64, bool) {
	return b.asks.Min()
}

// Spread returns best ask minus best bid in ticks. A crossed transient book
// reports ok=false rather than a wrapped difference.
func (b *Book) Spread() (uint32, bool) {
	bid, _, ok1 := b.BestBid()
	ask, _, ok2 := b.BestAsk()
	if !ok1 || !ok2 || ask < bid {
		return 0, false
	}
	return ask - bid, true
}

// Mid returns the midpoint price in quote units.
func (b *Book) Mid() (float64, bool) {
	bid, _, ok1 := b.BestBid()
	ask, _, ok2 := b.BestAsk()
	if !ok1 || !ok2 {
		return 0, false
	}
	scale := pow10(b.priceDecimals)
	return (float64(bid) + float64(ask)) / 2 / scale, true
}

// OrderbookMetrics is a point-in-time summary of the touch and the top of
// the ladders, in quote units where priced.
type OrderbookMetrics struct {
	Mid       float64
	Spread    uint32 // ticks
	Imbalance float64
	BidVWAP   float64
	AskVWAP   float64
}

// Metrics summarizes the book over the top depth levels of each side.
// Missing components stay zero; ok reports a two-sided book.
func (b *Book) Metrics(depth int) (OrderbookMetrics, bool) {
	var m OrderbookMetrics
	mid, ok := b.Mid()
	if !ok {
		return m, false
	}
	m.Mid = mid
	m.Spread, _ = b.Spread()
	m.Imbalance, _ = b.Imbalance(depth)
	m.BidVWAP, _ = b.TopVWAP(true, depth)
	m.AskVWAP, _ = b.TopVWAP(false, depth)
	return m, true
}

// Imbalance returns bid volume over total volume across the top n levels a
// side, in [0,1]. 0.5 marks a balanced touch.
func (b *Book) Imbalance(n int) (float64, bool) {
	bq := b.topVolume(b.bids, n)
	aq := b.topVolume(b.asks, n)
	if bq == 0 && aq == 0 {
		return 0, false
	}
	return float64(bq) / (float64(bq) + float64(aq)), true
}

// TopVWAP returns the volume-weighted average price of the top n levels of
// one side, in quote units. Sell=false walks asks, sell=true walks bids.
func (b *Book) TopVWAP(sell bool, n int) (float64, bool) {
	side := b.asks
	if sell {
		side = b.bids
	}
	var notional, volume uint64
	i := 0
	side.AscendLevels(func(key uint32, qty uint64) bool {
		tick := key
		if sell {
			tick = ^key
		}
		notional = satAdd(notional, satMul(uint64(tick), qty))
		volume = satAdd(volume, qty)
		i++
		return i < n
	})
	if volume == 0 {
		return 0, false
	}
	return float64(notional) / float64(volume) / pow10(b.priceDecimals), true
}

func (b *Book) topVolume(side *glass.Glass, n int) uint64 {
	var total uint64
	i := 0
	side.AscendLevels(func(_ uint32, qty uint64) bool {
		total = satAdd(total, qty)
		i++
		return i < n
	})
	return total
}

// SimBuyCost computes the notional of lifting shares off the ask ladder
// without touching book state. A partial fill prices only what the ladder
// held.
func (b *Book) SimBuyCost(shares uint64) uint64 {
	return b.asks.ComputeBuyCost(shares)
}

// SimSellProceeds computes the notional of hitting shares into the bid
// ladder, best bid first, without mutating state.
func (b *Book) SimSellProceeds(shares uint64) uint64 {
	remaining := shares
	var proceeds uint64
	b.bids.AscendLevels(func(key uint32, qty uint64) bool {
		take := qty
		if take > remaining {
			take = remaining
		}
		proceeds = satAdd(proceeds, satMul(uint64(^key), take))
		remaining -= take
		return remaining > 0
	})
	return proceeds
}

// Buy consumes shares from the ask ladder and returns the notional spent.
// Partially filled levels keep their residue.
func (b *Book) Buy(shares uint64) uint64 {
	return b.asks.BuyShares(shares)
}

func pow10(n int) float64 {
	v := 1.0
	for ; n > 0; n-- {
		v *= 10
	}
	return v
}

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
