package qflash

import "fmt"

// Width is the number of signal lines carrying one phase of a transaction.
type Width uint8

const (
	WidthNone Width = iota // phase absent
	WidthSingle
	WidthQuad
)

func (w Width) String() string {
	switch w {
	case WidthNone:
		return "none"
	case WidthSingle:
		return "single"
	case WidthQuad:
		return "quad"
	}
	return fmt.Sprintf("Width(%d)", uint8(w))
}

// Lines returns the line count of the width, 0 for an absent phase.
func (w Width) Lines() int {
	switch w {
	case WidthSingle:
		return 1
	case WidthQuad:
		return 4
	}
	return 0
}

// Command describes one bus transaction: the instruction opcode, the wire
// width of each phase, an optional 24-bit address, and the dummy clock
// cycles inserted between the address and data phases. A Command is built
// fresh for every transaction and never mutated.
//
// AWidth must be WidthNone exactly when HasAddr is false.
type Command struct {
	Opcode byte
	IWidth Width
	AWidth Width
	DWidth Width

	Addr    uint32 // 24-bit flash address, valid only if HasAddr
	HasAddr bool

	Dummy uint8 // dummy cycles, carry no data
}

// Validate reports a malformed descriptor. Transports call it before
// encoding; a failure is a driver defect, not a device condition.
func (c Command) Validate() error {
	if c.IWidth == WidthNone {
		return fmt.Errorf("command %#02x: no instruction phase", c.Opcode)
	}
	if c.HasAddr != (c.AWidth != WidthNone) {
		return fmt.Errorf("command %#02x: address/width mismatch", c.Opcode)
	}
	if c.HasAddr && c.Addr > max24 {
		return fmt.Errorf("command %#02x: address 0x%X out of 24-bit range", c.Opcode, c.Addr)
	}
	return nil
}

const max24 = 1<<24 - 1 // 0xFFFFFF

// addrBytes returns the address phase in wire order (MSB first).
func (c Command) addrBytes() [3]byte {
	return [3]byte{byte(c.Addr >> 16), byte(c.Addr >> 8), byte(c.Addr)}
}

// dummyBytes returns how many all-zero filler bytes realize the dummy
// cycles on a transport that shifts whole bytes. Each cycle moves
// Lines() bits on the wire.
func (c Command) dummyBytes() int {
	return int(c.Dummy) * c.AWidth.Lines() / 8
}
