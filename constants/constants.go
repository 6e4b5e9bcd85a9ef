// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Global tunables and parsing probes
//
// Purpose:
//   - Defines endpoints, framing caps and memory guardrails for the ingestion
//     pipeline.
//   - Includes unsafe JSON field match probes for zero-alloc depth parsing.
//
// ⚠️ No runtime logic here — all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────── Exchange Endpoints ──────────────────────────────

const (
	// WsDialAddr is the Binance USDⓈ-M futures stream endpoint. Streams are
	// path-subscribed, so one TCP+TLS connection carries exactly one market.
	WsDialAddr = "fstream.binance.com:443"

	// WsHost is the SNI host presented during the TLS handshake and the
	// Host header of the upgrade request.
	WsHost = "fstream.binance.com"

	// WsStreamSuffix selects the raw diff-depth stream at the fastest
	// update cadence the venue offers. Full path: /ws/<symbol>@depth@0ms.
	WsStreamSuffix = "@depth@0ms"

	// RestBase is the REST endpoint serving the order book snapshot used to
	// seed the local book before diff replay.
	RestBase = "https://fapi.binance.com"

	// SnapshotPath fetches the deepest snapshot the venue serves in one
	// request.
	SnapshotPath = "/fapi/v1/depth?limit=1000&symbol="

	// DefaultSymbol is the market tracked when no argument is given.
	DefaultSymbol = "dogeusdt"

	// SymbolDB is the startup reference database carrying per-symbol price
	// and quantity scales.
	SymbolDB = "symbols.db"
)

// ─────────────────────────── Memory Guardrails ─────────────────────────────

const (
	// HeapSoftLimit is the target heap footprint after bootstrap. The double
	// GC before entering the hot loop consolidates below this.
	HeapSoftLimit = 128 << 20 // 128 MiB

	// HeapHardLimit aborts the process when exceeded; a leak in a GC-off hot
	// loop must die fast rather than take the host with it.
	HeapHardLimit = 512 << 20 // 512 MiB
)

// ──────────────────────── WebSocket Framing Caps ──────────────────────────

const (
	// MaxFrameSize caps a single raw WebSocket frame payload. Depth diffs on
	// the busiest futures markets stay well under 128 KiB; 512 KiB absorbs
	// snapshot-sized bursts after reconnect gaps.
	MaxFrameSize = 512 << 10 // 512 KiB

	// MaxSnapshotBody caps the REST snapshot response body.
	MaxSnapshotBody = 4 << 20 // 4 MiB
)

// ───────────────────────── Book Sizing ─────────────────────────────────────

const (
	// TickScale converts decimal price strings to integer ticks: prices are
	// parsed as value × 10^TickDecimals. DOGE-class symbols quote 5-7
	// decimals; 7 covers every USDⓈ-M market without overflowing 32 bits
	// below ~429 quote units.
	TickDecimals = 7

	// QtyDecimals scales decimal quantity strings into integer lots.
	QtyDecimals = 3
)

// ────────────────────── JSON Key Probes for Parsing ───────────────────────

var (
	// 4-byte probes for unsafe field detection inside depth event frames.
	// Binance uses one- and two-char keys, so the opening quote, key bytes
	// and the colon (or closing quote) fit a single aligned 32-bit load; one
	// compare identifies the field without per-byte scanning. All probes
	// must stay ASCII-safe.

	// KeyEventType probes `"e":` — the event type tag, "depthUpdate" for
	// diff frames.
	KeyEventType = [4]byte{'"', 'e', '"', ':'}

	// KeyEventTime probes `"E":` — wall-clock event time in ms.
	KeyEventTime = [4]byte{'"', 'E', '"', ':'}

	// KeyTradeTime probes `"T":` — matching-engine transaction time in ms.
	KeyTradeTime = [4]byte{'"', 'T', '"', ':'}

	// KeySymbol probes `"s":` — market symbol.
	KeySymbol = [4]byte{'"', 's', '"', ':'}

	// KeyFirstID probes `"U":` — first update ID covered by the event.
	KeyFirstID = [4]byte{'"', 'U', '"', ':'}

	// KeyFinalID probes `"u":` — final update ID covered by the event.
	KeyFinalID = [4]byte{'"', 'u', '"', ':'}

	// KeyPrevID probes `"pu"` — final update ID of the previous event.
	KeyPrevID = [4]byte{'"', 'p', 'u', '"'}

	// KeyBids probes `"b":` — bid-side level array.
	KeyBids = [4]byte{'"', 'b', '"', ':'}

	// KeyAsks probes `"a":` — ask-side level array.
	KeyAsks = [4]byte{'"', 'a', '"', ':'}
)
