package qflash

import "errors"

var (
	// ErrWidthUnsupported is returned by transports that cannot shift a
	// phase at the requested wire width (e.g. quad on a plain SPI link).
	ErrWidthUnsupported = errors.New("transport does not support requested wire width")

	// ErrNoMemoryMap is returned by transports without a memory-mapped
	// read window.
	ErrNoMemoryMap = errors.New("transport does not support memory mapping")
)

// Transport shifts bits over the physical bus. All calls are synchronous:
// they return once the transaction has completed on the wire.
//
// A Transport instance is exclusively owned by one Flash; implementations
// need no internal locking.
type Transport interface {
	// Command issues an instruction with no data phase.
	Command(c Command) error

	// Write issues an instruction followed by a data payload shifted
	// out at c.DWidth.
	Write(c Command, data []byte) error

	// Read issues an instruction and shifts len(buf) bytes back in at
	// c.DWidth.
	Read(c Command, buf []byte) error

	// MapMemory arms a persistent read window using c as the command
	// template: after a successful call, ordinary loads in the window
	// are translated into flash reads by hardware and the transport
	// carries no further discrete transactions.
	MapMemory(c Command) error
}
