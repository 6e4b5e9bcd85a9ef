// ════════════════════════════════════════════════════════════════════════════════════════════════
// Depth Feed Liquidity Estimator - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Futures Depth Liquidity Estimator
// Component: Main Entry Point & System Orchestration
//
// Description:
//   System orchestration with phased initialization and clean separation of concerns.
//   Bootstrap → Memory Optimization → Production Event Processing
//
// Architecture:
//   - Phase 0: Symbol configuration load and book construction
//   - Phase 1: Bootstrap synchronization with the venue's REST snapshot
//   - Phase 2: Memory cleanup and optimization for production
//   - Phase 3: Real-time diff-depth processing with GC disabled
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"crypto/tls"
	"database/sql"
	"net"
	"os"
	"os/signal"
	"runtime"
	rtdebug "runtime/debug"
	"syscall"

	"github.com/jaycampbellluo/binance-l3-est/book"
	"github.com/jaycampbellluo/binance-l3-est/constants"
	"github.com/jaycampbellluo/binance-l3-est/control"
	"github.com/jaycampbellluo/binance-l3-est/debug"
	"github.com/jaycampbellluo/binance-l3-est/parser"
	"github.com/jaycampbellluo/binance-l3-est/snapshot"
	"github.com/jaycampbellluo/binance-l3-est/utils"
	"github.com/jaycampbellluo/binance-l3-est/ws"

	_ "github.com/mattn/go-sqlite3"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CORE DATA STRUCTURES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// SymbolConfig fixes how one instrument's quote strings map onto integer
// ticks. Scales come from the symbol database; the constants provide the
// fallback for the default instrument.
type SymbolConfig struct {
	Symbol     string // lowercase stream symbol
	PriceScale int    // decimal digits folded into the price tick
	QtyScale   int    // decimal digits folded into the quantity
}

// memstats tracks heap pressure between stream sessions.
var memstats runtime.MemStats

// maintainInterval is the applied-event cadence for repatriating parked
// levels on both book sides.
const maintainInterval = 4096

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MAIN ORCHESTRATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// main orchestrates the complete system lifecycle in distinct phases.
// Each phase has specific responsibilities and optimization characteristics.
func main() {
	// PHASE 0: Configuration load and book construction
	debug.DropMessage("INIT", "Loading symbol configuration")

	symbol := constants.DefaultSymbol
	if len(os.Args) > 1 {
		symbol = os.Args[1]
	}

	cfg := loadSymbolConfig(constants.SymbolDB, symbol)
	debug.DropMessage("SYMBOL", cfg.Symbol+" scales "+utils.Itoa(cfg.PriceScale)+"/"+utils.Itoa(cfg.QtyScale))

	bk := book.New(cfg.PriceScale, cfg.QtyScale)
	ws.Init(cfg.Symbol)

	debug.DropMessage("READY", "System initialized")

	setupSignalHandling()

	// PHASE 1: Bootstrap synchronization with the venue snapshot
	// Seeds both ladders so the first live event has state to chain onto.
	syncFromSnapshot(bk, cfg.Symbol)

	// PHASE 2: Memory optimization for deterministic runtime behavior
	// Performs garbage collection and memory consolidation before production mode
	runtime.GC()
	runtime.GC() // Double GC to ensure thorough cleanup
	rtdebug.FreeOSMemory()

	// PHASE 3: Production mode with optimized runtime characteristics
	// Disables garbage collection and locks to current thread for consistent performance
	rtdebug.SetGCPercent(-1) // Disable garbage collection
	runtime.LockOSThread()   // Lock to current OS thread
	control.ForceHot()       // Signal control system to enter active mode

	// Infinite reconnection loop for continuous event processing
	// Handles network disconnections and protocol errors gracefully
	for {
		if err := processEventStream(bk, cfg.Symbol); err != nil {
			debug.DropError("stream", err)
		}

		// Track heap memory usage and trigger GC when limits are exceeded
		runtime.ReadMemStats(&memstats)
		if memstats.HeapAlloc > constants.HeapSoftLimit {
			rtdebug.SetGCPercent(100)
			runtime.GC()
			rtdebug.SetGCPercent(-1)
			debug.DropMessage("GC", "heap trimmed")
		}
		if memstats.HeapAlloc > constants.HeapHardLimit {
			panic("heap usage exceeded hard cap")
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONFIGURATION LOADING
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// loadSymbolConfig reads one instrument's tick scales from the symbol
// database. A missing database or unknown symbol falls back to the built-in
// defaults so the default instrument runs without setup.
func loadSymbolConfig(dbPath, symbol string) SymbolConfig {
	cfg := SymbolConfig{
		Symbol:     symbol,
		PriceScale: constants.TickDecimals,
		QtyScale:   constants.QtyDecimals,
	}

	if _, err := os.Stat(dbPath); err != nil {
		debug.DropMessage("CONFIG", "no symbol database, using defaults")
		return cfg
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		panic("Failed to open database " + dbPath + ": " + err.Error())
	}
	defer db.Close()

	// Sanity pass over the table before the point query.
	var symbolCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM symbols").Scan(&symbolCount); err != nil {
		panic("Failed to count symbols: " + err.Error())
	}
	if symbolCount == 0 {
		panic("No symbols found in database")
	}

	err = db.QueryRow(`
		SELECT s.price_scale, s.qty_scale
		FROM symbols s
		WHERE s.symbol = ?`, symbol).Scan(&cfg.PriceScale, &cfg.QtyScale)
	switch {
	case err == sql.ErrNoRows:
		debug.DropMessage("CONFIG", symbol+" not in database, using defaults")
	case err != nil:
		panic("Failed to query symbol: " + err.Error())
	}

	if cfg.PriceScale < 0 || cfg.PriceScale > 18 || cfg.QtyScale < 0 || cfg.QtyScale > 18 {
		panic("Symbol scales out of range")
	}
	return cfg
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SNAPSHOT SYNCHRONIZATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// syncFromSnapshot rebuilds both ladders from the REST snapshot, retrying
// until the venue serves one. The sequencing state machine re-arms so the
// next stream event must straddle the snapshot ID.
func syncFromSnapshot(bk *book.Book, symbol string) {
	for {
		snap, err := snapshot.Fetch(symbol)
		if err != nil {
			debug.DropError("snapshot", err)
			if control.Stopping() {
				return
			}
			continue
		}
		bk.ApplySnapshot(snap)
		debug.DropMessage("SNAPSHOT", "id "+utils.Utoa64(snap.LastUpdateID)+
			" levels "+utils.Itoa(bk.BidLevels())+"/"+utils.Itoa(bk.AskLevels()))
		return
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PRODUCTION EVENT PROCESSING
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// processEventStream establishes the WebSocket connection and folds depth
// events into the book until failure. A broken update chain refetches the
// snapshot over the live stream rather than reconnecting.
func processEventStream(bk *book.Book, symbol string) error {
	// Establish raw TCP connection with optimal parameters
	raw, err := net.Dial("tcp", constants.WsDialAddr)
	if err != nil {
		return err
	}
	tcpConn := raw.(*net.TCPConn)

	// Configure TCP-level optimizations
	tcpConn.SetNoDelay(true)                       // Disable Nagle's algorithm
	tcpConn.SetReadBuffer(constants.MaxFrameSize)  // Optimize read buffer size
	tcpConn.SetWriteBuffer(constants.MaxFrameSize) // Optimize write buffer size

	// Apply low-level socket optimizations using syscalls
	if rawFile, ferr := tcpConn.File(); ferr == nil {
		fd := int(rawFile.Fd())

		syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)
		syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, constants.MaxFrameSize)
		syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_SNDBUF, constants.MaxFrameSize)

		// Platform-specific optimizations for improved performance
		switch runtime.GOOS {
		case "linux":
			syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, 46, 1)         // SO_REUSEPORT
			syscall.SetsockoptString(fd, syscall.IPPROTO_TCP, 13, "bbr") // TCP_CONGESTION=bbr
		case "darwin":
			syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, 0x1006, 1) // SO_REUSEPORT
		}
		rawFile.Close() // Close file descriptor wrapper
	}

	// Establish TLS connection over the optimized TCP connection
	conn := tls.Client(raw, &tls.Config{ServerName: constants.WsHost})
	defer conn.Close()

	// Perform WebSocket upgrade before any frames flow
	if err := ws.Handshake(conn); err != nil {
		return err
	}

	applied := 0
	for {
		if control.Stopping() {
			return nil
		}

		// Wait for complete WebSocket message frame
		payload, err := ws.SpinUntilCompleteMessage(conn)
		if err != nil {
			return err // Trigger reconnection
		}

		view, ok := parser.ParseDepth(payload)
		if !ok {
			debug.DropMessage("PARSE", "skipped non-depth frame")
			continue
		}

		mutated, err := bk.ApplyDepth(&view)
		if err != nil {
			// Update chain broke; rebuild state, keep the stream.
			debug.DropMessage("RESYNC", "update gap at "+utils.Utoa64(view.FinalID))
			syncFromSnapshot(bk, symbol)
			continue
		}
		if !mutated {
			continue // stale pre-snapshot event
		}

		control.SignalActivity()
		applied++
		if applied%maintainInterval == 0 {
			bk.Maintain()
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SYSTEM LIFECYCLE MANAGEMENT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// setupSignalHandling configures graceful shutdown coordination.
// Uses control package's ShutdownWG for proper subsystem coordination.
func setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Background signal handler for coordinated shutdown
	go func() {
		<-sigChan
		debug.DropMessage("SIGNAL", "Received interrupt, shutting down...")

		// Signal shutdown to all subsystems
		control.Shutdown()

		// Wait for all subsystems to complete graceful shutdown
		control.ShutdownWG.Wait()

		debug.DropMessage("SIGNAL", "All subsystems shutdown complete")
		os.Exit(0)
	}()
}
