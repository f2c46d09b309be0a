package qflash

import (
	"fmt"
	"testing"
)

const (
	simPageSize = 8
	simMemSize  = 128 * 1024
)

// simFlash is an in-memory quad flash chip wired directly under the driver.
// It models the command set, the write-enable latch, the busy bit, the QE
// bit and QPI switching, and the memory-mapped window, and fails the test
// on any protocol violation. Every accepted transaction is appended to log
// so tests can assert ordering.
type simFlash struct {
	t *testing.T

	mem  []byte
	id   [3]byte
	sfdp []byte

	sr byte // status register 1
	cr byte // configuration register / status register 2

	resetArmed bool
	qpi        bool
	mapped     bool

	// busyPolls is how many status reads report busy after each
	// program/erase; pending counts down.
	busyPolls int
	pending   int

	log []string
}

func newSimFlash(t *testing.T) *simFlash {
	s := &simFlash{
		t:    t,
		mem:  make([]byte, simMemSize),
		id:   [3]byte{0xEF, 0x40, 0x20}, // not in knownFlash: default page size applies
		sfdp: []byte{'S', 'F', 'D', 'P', 0x06, 0x01, 0x00, 0xFF},
	}
	for i := range s.mem {
		s.mem[i] = 0xFF
	}
	return s
}

func (s *simFlash) logf(format string, a ...any) {
	s.log = append(s.log, fmt.Sprintf(format, a...))
}

func (s *simFlash) checkCommon(c Command) {
	s.t.Helper()
	if err := c.Validate(); err != nil {
		s.t.Fatalf("malformed command: %v", err)
	}
	if s.mapped {
		s.t.Fatalf("discrete command %#02x after memory map was armed", c.Opcode)
	}
}

// iwidthOK reports whether the instruction phase width matches the mode the
// device is actually in. A mismatched instruction shifts garbage on real
// hardware and is ignored.
func (s *simFlash) iwidthOK(c Command) bool {
	if s.qpi {
		return c.IWidth == WidthQuad
	}
	return c.IWidth == WidthSingle
}

// checkRegWidth verifies a register access data phase is quad exactly in
// QPI mode.
func (s *simFlash) checkRegWidth(c Command) {
	s.t.Helper()
	if s.qpi != (c.DWidth == WidthQuad) {
		s.t.Fatalf("register %#02x data width %v with qpi=%v", c.Opcode, c.DWidth, s.qpi)
	}
}

// mutate runs op if the write-enable latch is set, then clears the latch
// and starts the busy countdown.
func (s *simFlash) mutate(op func()) {
	s.t.Helper()
	if s.sr&0x02 == 0 {
		s.t.Fatalf("state-mutating operation without preceding write enable")
	}
	op()
	s.sr &^= 0x02
	s.pending = s.busyPolls
}

func (s *simFlash) Command(c Command) error {
	s.t.Helper()
	s.checkCommon(c)
	if !s.iwidthOK(c) {
		return nil
	}
	switch c.Opcode {
	case cmdEnableReset:
		s.resetArmed = true
	case cmdReset:
		if s.resetArmed {
			s.qpi = false
			s.resetArmed = false
			s.logf("reset")
		}
	case cmdWriteEnable:
		s.sr |= 0x02
		s.logf("wren")
	case cmdReleasePowerDown, cmdPowerDown:
		s.logf("power %#02x", c.Opcode)
	case cmdEnterQPI:
		if s.cr&quadEnableBit == 0 {
			s.t.Fatalf("enter QPI without quad-enable bit set")
		}
		s.qpi = true
		s.logf("enter-qpi")
	case cmdChipErase:
		s.mutate(func() {
			for i := range s.mem {
				s.mem[i] = 0xFF
			}
		})
		s.logf("erase chip")
	case cmdSectorErase, cmdBlockErase32K, cmdBlockErase64K:
		if !c.HasAddr {
			s.t.Fatalf("erase %#02x without address", c.Opcode)
		}
		size := map[byte]int{
			cmdSectorErase:   4 << 10,
			cmdBlockErase32K: 32 << 10,
			cmdBlockErase64K: 64 << 10,
		}[c.Opcode]
		s.mutate(func() {
			base := int(c.Addr) / size * size
			for i := base; i < base+size && i < len(s.mem); i++ {
				s.mem[i] = 0xFF
			}
		})
		s.logf("erase %d %d", c.Addr, size)
	default:
		s.t.Fatalf("unexpected command %#02x", c.Opcode)
	}
	return nil
}

func (s *simFlash) Write(c Command, data []byte) error {
	s.t.Helper()
	s.checkCommon(c)
	if !s.iwidthOK(c) {
		return nil
	}
	switch c.Opcode {
	case cmdWriteStatusReg1:
		s.checkRegWidth(c)
		s.sr = data[0]
		s.logf("wrsr")
	case cmdWriteStatusReg2:
		s.checkRegWidth(c)
		s.cr = data[0]
		s.logf("wrcr")
	case cmdSetReadParams:
		if !s.qpi || c.DWidth != WidthQuad {
			s.t.Fatalf("set read parameters outside QPI")
		}
		if s.sr&0x02 == 0 {
			s.t.Fatalf("set read parameters without write enable")
		}
		s.sr &^= 0x02
		s.logf("params %#02x", data[0])
	case cmdQuadPageProgram, cmdPageProgram:
		want := WidthQuad
		if c.Opcode == cmdPageProgram {
			want = WidthSingle
		}
		if c.DWidth != want {
			s.t.Fatalf("program %#02x data width %v", c.Opcode, c.DWidth)
		}
		if !c.HasAddr {
			s.t.Fatalf("program without address")
		}
		base := int(c.Addr)
		if base%simPageSize+len(data) > simPageSize {
			s.t.Fatalf("program crosses page boundary: addr=%#x len=%d", c.Addr, len(data))
		}
		s.mutate(func() {
			for i, b := range data {
				s.mem[base+i] &= b // NOR programming only clears bits
			}
		})
		s.logf("prog %d %d", c.Addr, len(data))
	default:
		s.t.Fatalf("unexpected write command %#02x", c.Opcode)
	}
	return nil
}

func (s *simFlash) Read(c Command, buf []byte) error {
	s.t.Helper()
	s.checkCommon(c)
	if !s.iwidthOK(c) {
		s.t.Fatalf("read %#02x at wrong instruction width", c.Opcode)
	}
	switch c.Opcode {
	case cmdReadID:
		copy(buf, s.id[:])
		s.logf("rdid")
	case cmdReadStatusReg1:
		s.checkRegWidth(c)
		v := s.sr
		if s.pending > 0 {
			v |= 0x01
			s.pending--
		}
		buf[0] = v
		s.logf("rdsr")
	case cmdReadStatusReg2:
		s.checkRegWidth(c)
		buf[0] = s.cr
		s.logf("rdcr")
	case cmdQuadRead:
		if c.DWidth != WidthQuad || c.Dummy != 8 {
			s.t.Fatalf("quad read with width %v dummy %d", c.DWidth, c.Dummy)
		}
		copy(buf, s.mem[c.Addr:])
		s.logf("read %d %d", c.Addr, len(buf))
	case cmdReadData:
		if c.DWidth != WidthSingle || c.Dummy != 0 {
			s.t.Fatalf("read data with width %v dummy %d", c.DWidth, c.Dummy)
		}
		copy(buf, s.mem[c.Addr:])
		s.logf("read %d %d", c.Addr, len(buf))
	case cmdReadSFDP:
		if int(c.Addr) < len(s.sfdp) {
			copy(buf, s.sfdp[c.Addr:])
		}
		s.logf("sfdp %d", c.Addr)
	default:
		s.t.Fatalf("unexpected read command %#02x", c.Opcode)
	}
	return nil
}

func (s *simFlash) MapMemory(c Command) error {
	s.t.Helper()
	s.checkCommon(c)
	if !s.qpi {
		s.t.Fatalf("memory map armed outside QPI")
	}
	if c.Opcode != cmdFastReadQuadIO || c.IWidth != WidthQuad ||
		c.AWidth != WidthQuad || c.DWidth != WidthQuad || c.Dummy != 8 {
		s.t.Fatalf("wrong memory map template: %+v", c)
	}
	s.mapped = true
	s.logf("map")
	return nil
}

// Window returns the memory-mapped view of the chip; valid only once the
// window has been armed.
func (s *simFlash) Window() []byte {
	s.t.Helper()
	if !s.mapped {
		s.t.Fatalf("window access before memory map was armed")
	}
	return s.mem
}
