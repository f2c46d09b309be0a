package qflash

import (
	"fmt"
	"strings"
)

// Register opcodes [W25Q128|8.1.2 Instruction Set Table 1].
const (
	cmdReadStatusReg1  = 0x05
	cmdWriteStatusReg1 = 0x01
	cmdReadStatusReg2  = 0x35 // configuration register
	cmdWriteStatusReg2 = 0x31
)

// StatusRegister is Status Register 1 of the flash chip.
//
//	Bits| [W25Q128|7.1 Status Registers]
//	----+-------------------------------
//	7   | SRP: Status Register Protect
//	6   | SEC: Sector protect
//	5   | TB: Top/Bottom protect
//	4:2 | BP2-0: Block Protect bit 2-0
//	1   | WEL: Write Enable Latch
//	0   | BUSY: Erase/Write in progress
type StatusRegister byte

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) SectorProtect() bool         { return sr&(1<<6) != 0 }
func (sr StatusRegister) TopBottom() bool             { return sr&(1<<5) != 0 }
func (sr StatusRegister) BlockProtect2() bool         { return sr&(1<<4) != 0 }
func (sr StatusRegister) BlockProtect1() bool         { return sr&(1<<3) != 0 }
func (sr StatusRegister) BlockProtect0() bool         { return sr&(1<<2) != 0 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&(1<<0) != 0 }

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	if sr.StatusRegisterProtect() {
		s = append(s, "SRP")
	}
	if sr.SectorProtect() {
		s = append(s, "SEC")
	}
	if sr.TopBottom() {
		s = append(s, "TB")
	}
	if sr.BlockProtect2() {
		s = append(s, "BP2")
	}
	if sr.BlockProtect1() {
		s = append(s, "BP1")
	}
	if sr.BlockProtect0() {
		s = append(s, "BP0")
	}
	if sr.WriteEnabled() {
		s = append(s, "WEL")
	}
	if sr.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

// quadEnableBit is the QE bit of the configuration register, mirrored into
// Status Register 1 on the W25Q/GD25Q part family.
const quadEnableBit = 0x02

// ConfigRegister is Status Register 2 (configuration register). Bit 1 is
// Quad-Enable, permitting quad-wire data phases.
type ConfigRegister byte

func (cr ConfigRegister) QuadEnabled() bool { return cr&quadEnableBit != 0 }

func (cr ConfigRegister) String() string {
	b := fmt.Sprintf("%08b", byte(cr))
	if cr.QuadEnabled() {
		return b + " QE"
	}
	return b
}

// registerCommand encodes a register access at the width the current
// interface mode demands: quad instruction and data once QPI is entered,
// single-wire before.
func (f *Flash) registerCommand(opcode byte) Command {
	w := WidthSingle
	if f.mode.quadInterface() {
		w = WidthQuad
	}
	return Command{Opcode: opcode, IWidth: w, DWidth: w}
}

// readRegister issues a fresh bus transaction for every call; register
// values are never cached.
func (f *Flash) readRegister(opcode byte) (byte, error) {
	var data [1]byte
	if err := f.tr.Read(f.registerCommand(opcode), data[:]); err != nil {
		return 0, fmt.Errorf("read register %#02x: %w", opcode, err)
	}
	return data[0], nil
}

// writeRegister carries one byte. No read-back verification is done here.
func (f *Flash) writeRegister(opcode byte, value byte) error {
	if err := f.tr.Write(f.registerCommand(opcode), []byte{value}); err != nil {
		return fmt.Errorf("write register %#02x: %w", opcode, err)
	}
	return nil
}

func (f *Flash) ReadStatusRegister() (StatusRegister, error) {
	v, err := f.readRegister(cmdReadStatusReg1)
	return StatusRegister(v), err
}

func (f *Flash) WriteStatusRegister(v StatusRegister) error {
	return f.writeRegister(cmdWriteStatusReg1, byte(v))
}

func (f *Flash) ReadConfigRegister() (ConfigRegister, error) {
	v, err := f.readRegister(cmdReadStatusReg2)
	return ConfigRegister(v), err
}

func (f *Flash) WriteConfigRegister(v ConfigRegister) error {
	return f.writeRegister(cmdWriteStatusReg2, byte(v))
}
