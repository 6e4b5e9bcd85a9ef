// ============================================================================
// ZERO-ALLOCATION WEBSOCKET STREAM CLIENT
// ============================================================================
//
// Minimal RFC 6455 client tuned for exchange market-data streams: one
// connection, one path-subscribed stream, server-to-client traffic only
// apart from pong replies. All buffers live in a single package-level
// processor, so the steady-state read loop performs zero heap allocations.
//
// Layout keeps the per-frame state and header staging apart from the large
// assembly buffer, with the cold pre-built handshake material at the end.
//
// ⚠️ Single-connection, single-goroutine design. Init must run before the
// first Handshake, and never concurrently with the read loop.

package ws

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net"

	"github.com/jaycampbellluo/binance-l3-est/constants"
)

// BufferSize bounds a complete (possibly fragmented) message. Depth diffs
// are small; the headroom absorbs fragment coalescing after stalls.
const BufferSize = 2 << 20 // 2 MiB

const maxControlPayload = 125 // RFC 6455 §5.5

type wsProcessor struct {
	// Hot per-frame state.
	msgEnd     int
	payloadLen uint64
	opcode     uint8

	// Frame header staging.
	headerBuf [16]byte

	// Control frame scratch: ping payloads land here and are echoed back
	// masked, per the client masking rule.
	ctrlBuf [maxControlPayload]byte
	pongBuf [6 + maxControlPayload]byte

	// Message assembly buffer.
	buffer [BufferSize]byte

	// Cold pre-built handshake material.
	upgradeRequest    [512]byte
	upgradeRequestLen int
	maskKey           [4]byte
}

var processor wsProcessor

// predefined cold-path errors, no formatting at failure time
var (
	errUpgradeFailed  = fmt.Errorf("websocket upgrade rejected")
	errHandshakeLimit = fmt.Errorf("handshake response overflow")
	errFrameTooLarge  = fmt.Errorf("frame exceeds buffer capacity")
)

// Init prepares the upgrade request for one market stream. The stream is
// selected by URL path, so the request embeds the symbol directly and no
// subscribe message is needed after the upgrade.
func Init(symbol string) {
	var keyBytes [16]byte
	_, _ = rand.Read(keyBytes[:])
	var keyB64 [24]byte
	base64.StdEncoding.Encode(keyB64[:], keyBytes[:])

	req := "GET /ws/" + symbol + constants.WsStreamSuffix + " HTTP/1.1\r\n" +
		"Host: " + constants.WsHost + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: " + string(keyB64[:]) + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	processor.upgradeRequestLen = copy(processor.upgradeRequest[:], req)

	_, _ = rand.Read(processor.maskKey[:])
}

// readFull keeps reading until buf is filled. TCP segmentation happily
// splits even 2-byte headers.
//
//go:nosplit
func readFull(conn net.Conn, buf []byte) error {
	for n := 0; n < len(buf); {
		m, err := conn.Read(buf[n:])
		if err != nil {
			return err
		}
		n += m
	}
	return nil
}

// Handshake sends the pre-built upgrade request and validates the 101
// response. Trailing bytes past the header terminator are not expected on a
// freshly upgraded stream and are ignored.
func Handshake(conn net.Conn) error {
	if _, err := conn.Write(processor.upgradeRequest[:processor.upgradeRequestLen]); err != nil {
		return err
	}

	var buf [1024]byte
	total := 0
	for {
		if total == len(buf) {
			return errHandshakeLimit
		}
		n, err := conn.Read(buf[total:])
		if err != nil {
			return err
		}
		total += n

		// Scan for CRLF-CRLF terminator.
		for i := 0; i+3 < total; i++ {
			if buf[i] == '\r' && buf[i+1] == '\n' && buf[i+2] == '\r' && buf[i+3] == '\n' {
				if total >= 12 &&
					string(buf[:9]) == "HTTP/1.1 " &&
					buf[9] == '1' && buf[10] == '0' && buf[11] == '1' {
					return nil
				}
				return errUpgradeFailed
			}
		}
	}
}

// sendPong echoes a ping payload back as a masked pong frame.
func sendPong(conn net.Conn, payload []byte) error {
	n := len(payload)
	processor.pongBuf[0] = 0x8A // FIN | PONG
	processor.pongBuf[1] = 0x80 | byte(n)
	copy(processor.pongBuf[2:6], processor.maskKey[:])
	for i := 0; i < n; i++ {
		processor.pongBuf[6+i] = payload[i] ^ processor.maskKey[i&3]
	}
	_, err := conn.Write(processor.pongBuf[:6+n])
	return err
}

// SpinUntilCompleteMessage blocks until one complete data message is
// assembled and returns a zero-copy view into the shared buffer. Control
// frames are absorbed inline: pings are answered, pongs discarded, close
// surfaces as io.EOF. The returned slice is valid until the next call.
func SpinUntilCompleteMessage(conn net.Conn) ([]byte, error) {
	processor.msgEnd = 0

	for {
		if err := readFull(conn, processor.headerBuf[:2]); err != nil {
			return nil, err
		}

		fin := processor.headerBuf[0] & 0x80
		processor.opcode = processor.headerBuf[0] & 0x0F
		processor.payloadLen = uint64(processor.headerBuf[1] & 0x7F)

		switch processor.payloadLen {
		case 126:
			if err := readFull(conn, processor.headerBuf[2:4]); err != nil {
				return nil, err
			}
			processor.payloadLen = uint64(processor.headerBuf[2])<<8 | uint64(processor.headerBuf[3])
		case 127:
			if err := readFull(conn, processor.headerBuf[2:10]); err != nil {
				return nil, err
			}
			var v uint64
			for i := 2; i < 10; i++ {
				v = v<<8 | uint64(processor.headerBuf[i])
			}
			processor.payloadLen = v
		}

		// Control frames: opcode high bit set. They may interleave with
		// fragmented data frames, so handle and continue.
		if processor.opcode&0x8 != 0 {
			if processor.payloadLen > maxControlPayload {
				return nil, errFrameTooLarge
			}
			ctrl := processor.ctrlBuf[:processor.payloadLen]
			if err := readFull(conn, ctrl); err != nil {
				return nil, err
			}
			switch processor.opcode {
			case 0x8: // CLOSE
				return nil, io.EOF
			case 0x9: // PING — reply with the payload echoed
				if err := sendPong(conn, ctrl); err != nil {
					return nil, err
				}
			}
			// PONG (0xA) falls through silently.
			continue
		}

		if uint64(processor.msgEnd)+processor.payloadLen > uint64(BufferSize) {
			return nil, errFrameTooLarge
		}

		end := processor.msgEnd + int(processor.payloadLen)
		if err := readFull(conn, processor.buffer[processor.msgEnd:end]); err != nil {
			return nil, err
		}
		processor.msgEnd = end

		if fin != 0 {
			return processor.buffer[:processor.msgEnd], nil
		}
	}
}
