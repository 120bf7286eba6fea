// Package transport defines the byte-level port the uploader drives plus
// the serial adapter implementing it against real hardware. The transfer
// session owns the port lifetime: it is handed an Opener, opens exactly
// one Port, and closes it on every exit path.
package transport

import (
	"errors"
	"time"
)

// ErrReadTimeout reports that nothing arrived within the read window.
var ErrReadTimeout = errors.New("transport: read timed out")

// Port is one open byte-oriented link to the target console.
type Port interface {
	// WriteByte sends a single byte.
	WriteByte(b byte) error
	// Write sends p whole.
	Write(p []byte) (int, error)
	// ReadByte returns the next byte, waiting at most timeout. An empty
	// window is ErrReadTimeout.
	ReadByte(timeout time.Duration) (byte, error)
	Close() error
}

// Opener produces a Port. The caller owns the result.
type Opener interface {
	Open() (Port, error)
}

// ByteDuration is the wire time of one byte at the given baud rate: a
// start bit, eight data bits and a stop bit.
func ByteDuration(baud int) time.Duration {
	return time.Duration(10 * int64(time.Second) / int64(baud))
}
