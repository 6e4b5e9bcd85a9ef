// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — cold-path diagnostics without heap pressure
//
// Purpose:
//   - Logs infrequent error and state-change paths straight to stderr.
//   - Used for: dial/handshake failures, resync notices, shutdown traces.
//
// Notes:
//   - Avoids fmt to keep the footprint flat; messages are plain concats.
//
// ⚠️ Never invoke in hot loops — use only in failure diagnostics.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import "github.com/jaycampbellluo/binance-l3-est/utils"

// DropError logs an error under a short subsystem prefix. A nil error prints
// the prefix alone, which doubles as a cheap trace marker.
//
//go:nosplit
//go:inline
func DropError(prefix string, err error) {
	if err != nil {
		utils.PrintWarning(prefix + ": " + err.Error() + "\n")
		return
	}
	utils.PrintWarning(prefix + "\n")
}

// DropMessage logs a prefixed status line. Connection state changes, sync
// progress and similar cold events go through here.
//
//go:nosplit
//go:inline
func DropMessage(prefix, message string) {
	utils.PrintWarning(prefix + ": " + message + "\n")
}
