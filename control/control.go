// control.go — Global control flags and activity tracking for the book loop
// ============================================================================
// SYSTEM CONTROL ORCHESTRATION
// ============================================================================
//
// Lightweight global signaling shared by the stream reader and any auxiliary
// goroutines: an activity flag that tracks whether depth traffic is flowing,
// and a stop flag driving graceful shutdown.
//
// Threading model:
//   • The WebSocket ingress marks activity via SignalActivity()
//   • Auxiliary loops poll Flags() and back off when the feed goes quiet
//   • Shutdown() broadcasts termination; ShutdownWG gates process exit

package control

import (
	"sync"
	"time"
)

// ============================================================================
// GLOBAL STATE
// ============================================================================

var (
	hot  uint32 // 1 = depth traffic within the cooldown window
	stop uint32 // 1 = graceful shutdown requested

	lastHot    int64                    // ns timestamp of last frame
	cooldownNs = int64(1 * time.Second) // idle period before hot clears

	// ShutdownWG is awaited by the signal handler before exit so in-flight
	// book mutations and final diagnostics can complete.
	ShutdownWG sync.WaitGroup
)

// ============================================================================
// ACTIVITY SIGNALING
// ============================================================================

// SignalActivity marks the feed as live and stamps the moment. Called once
// per ingested frame.
//
//go:norace
//go:nosplit
//go:inline
func SignalActivity() {
	hot = 1
	lastHot = time.Now().UnixNano()
}

// ForceHot pins the activity flag high, used when entering the hot loop so
// consumers do not start in the idle state.
//
//go:norace
//go:nosplit
//go:inline
func ForceHot() {
	hot = 1
	lastHot = time.Now().UnixNano()
}

// PollCooldown clears the hot flag after a quiet second. Cheap enough to
// call inline from spin loops.
//
//go:norace
//go:nosplit
//go:inline
func PollCooldown() {
	if hot == 1 && time.Now().UnixNano()-lastHot > cooldownNs {
		hot = 0
	}
}

// ============================================================================
// SHUTDOWN COORDINATION
// ============================================================================

// Shutdown requests graceful termination. Loops watching the stop flag exit
// at their next poll point.
//
//go:norace
//go:nosplit
//go:inline
func Shutdown() {
	stop = 1
}

// Stopping reports whether shutdown has been requested.
//
//go:norace
//go:nosplit
//go:inline
func Stopping() bool {
	return stop == 1
}

// Flags exposes direct pointers to the coordination flags for poll loops
// that want to avoid even a call per iteration.
//
//go:norace
//go:nosplit
//go:inline
func Flags() (*uint32, *uint32) {
	return &stop, &hot
}
