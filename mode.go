package qflash

import "fmt"

// Mode tracks how the device is currently addressed. It only moves forward:
//
//	ModeSingle → ModeQuadEnabled → ModeQPI → ModeMemoryMapped
//
// Reset is the one exception, returning the device (and the tracked mode)
// to ModeSingle.
type Mode uint8

const (
	// ModeSingle is the power-up state: single-wire instruction phase.
	ModeSingle Mode = iota

	// ModeQuadEnabled means the QE bit is set in the configuration
	// register; data phases may be quad, instructions are still
	// single-wire.
	ModeQuadEnabled

	// ModeQPI means instruction phases are quad too.
	ModeQPI

	// ModeMemoryMapped is terminal: the transport has been repurposed
	// for address-mapped reads.
	ModeMemoryMapped
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeQuadEnabled:
		return "quad-enabled"
	case ModeQPI:
		return "QPI"
	case ModeMemoryMapped:
		return "memory-mapped"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// quadInterface reports whether instructions must be encoded quad-wide.
func (m Mode) quadInterface() bool { return m >= ModeQPI }
