package qflash

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Flash commands:
//   - [W25Q128|8.1.2 Instruction Set Table 1]
//   - [GD25Q64|Commands Description]
const (
	cmdReleasePowerDown = 0xAB
	cmdPowerDown        = 0xB9
	cmdReadID           = 0x9F
	cmdReadSFDP         = 0x5A
	cmdEnableReset      = 0x66
	cmdReset            = 0x99
	cmdWriteEnable      = 0x06
	cmdChipErase        = 0xC7
	cmdSectorErase      = 0x20 // 4KB
	cmdBlockErase32K    = 0x52
	cmdBlockErase64K    = 0xD8
	cmdReadData         = 0x03
	cmdQuadRead         = 0x6B // Fast Read Quad Output
	cmdPageProgram      = 0x02
	cmdQuadPageProgram  = 0x32
	cmdFastReadQuadIO   = 0xEB
	cmdEnterQPI         = 0x38
	cmdSetReadParams    = 0xC0
)

// ErrBusyTimeout means the busy bit did not clear within the chip's
// documented operation time. The device is likely absent or wedged.
var ErrBusyTimeout = errors.New("timeout waiting for flash idle")

const defaultPollInterval = 100 * time.Microsecond

// Flash drives one quad-I/O NOR flash chip. It owns its Transport
// exclusively and tracks the interface mode of the device; it is not safe
// for concurrent use and operations must not be interleaved.
type Flash struct {
	tr   Transport
	mode Mode

	id [3]byte // JEDEC ID of the flash chip
	pr *flashParams

	pollInterval time.Duration
}

// New resets the device and enables its quad mode. The transport is owned
// by the returned Flash from here on.
func New(tr Transport) (*Flash, error) {
	f := &Flash{tr: tr, pollInterval: defaultPollInterval}
	if err := f.Reset(); err != nil {
		return nil, fmt.Errorf("flash reset: %w", err)
	}
	if err := f.EnableQuad(); err != nil {
		return nil, fmt.Errorf("flash quad enable: %w", err)
	}
	return f, nil
}

// Mode returns the tracked interface mode.
func (f *Flash) Mode() Mode { return f.mode }

// ID returns the JEDEC ID captured by the last ReadID, zero before that.
func (f *Flash) ID() [3]byte { return f.id }

// Capacity returns the chip size in bytes, 0 for unidentified chips.
func (f *Flash) Capacity() int {
	if f.pr != nil {
		return f.pr.capacity
	}
	return 0
}

// SetPollInterval adjusts how often busy-waits sample the status register.
func (f *Flash) SetPollInterval(d time.Duration) { f.pollInterval = d }

func (f *Flash) exec(opcode byte) error {
	return f.tr.Command(Command{Opcode: opcode, IWidth: WidthSingle})
}

func (f *Flash) exec4(opcode byte) error {
	return f.tr.Command(Command{Opcode: opcode, IWidth: WidthQuad})
}

// writeEnable must immediately precede every state-mutating operation. It
// follows the tracked interface mode: once QPI is entered the opcode has to
// be shifted quad-wide or the device ignores it.
func (f *Flash) writeEnable() error {
	w := WidthSingle
	if f.mode.quadInterface() {
		w = WidthQuad
	}
	return f.tr.Command(Command{Opcode: cmdWriteEnable, IWidth: w})
}

// Reset recovers the device no matter which interface mode it powered up
// in or was left in by a prior run: the enable-reset/reset pair is issued
// quad-encoded first, then single-wire, followed by a busy-wait. The
// tracked mode returns to single-wire, matching the device.
//
// Transports that cannot shift quad-wide skip the quad-encoded pair; a
// single-wire-only bus cannot have left the chip in QPI.
func (f *Flash) Reset() error {
	for _, exec := range []func(byte) error{f.exec4, f.exec} {
		if err := exec(cmdEnableReset); err != nil {
			if errors.Is(err, ErrWidthUnsupported) {
				continue
			}
			return err
		}
		if err := exec(cmdReset); err != nil {
			return err
		}
	}
	f.mode = ModeSingle
	return f.BusyWait(f.pollInterval, 100*time.Millisecond)
}

// ReadID returns the JEDEC ID of the flash chip and configures its
// parameters. It returns a non-empty name for known IDs. The extended
// device string is ignored.
func (f *Flash) ReadID() (id [3]byte, name string, err error) {
	c := Command{Opcode: cmdReadID, IWidth: WidthSingle, DWidth: WidthSingle}
	if err = f.tr.Read(c, f.id[:]); err != nil {
		return f.id, "", fmt.Errorf("read JEDEC ID: %w", err)
	}
	if params, ok := knownFlash[f.id]; ok {
		f.pr = &params
		name = params.name
	}
	return f.id, name, nil
}

// EnableQuad sets the Quad-Enable bit in the configuration register and
// mirrors it into Status Register 1; the part family requires both aligned.
// A chip with the bit already set is left untouched.
func (f *Flash) EnableQuad() error {
	cr, err := f.ReadConfigRegister()
	if err != nil {
		return err
	}
	if !cr.QuadEnabled() {
		if err := f.WriteConfigRegister(cr | quadEnableBit); err != nil {
			return err
		}
		sr, err := f.ReadStatusRegister()
		if err != nil {
			return err
		}
		if err := f.WriteStatusRegister(sr | quadEnableBit); err != nil {
			return err
		}
	}
	if f.mode < ModeQuadEnabled {
		f.mode = ModeQuadEnabled
	}
	return nil
}

// DisableQuad clears the Quad-Enable bit in the configuration register.
func (f *Flash) DisableQuad() error {
	cr, err := f.ReadConfigRegister()
	if err != nil {
		return err
	}
	return f.WriteConfigRegister(cr &^ quadEnableBit)
}

// EnterQPI switches the device's instruction phase to quad. The quad-enable
// bit is verified first, then the enter-QPI opcode goes out single-wire.
// The tracked mode flips before the read-parameter write because the device
// is already listening quad-wide by then. Calling EnterQPI again once in
// QPI is a no-op.
func (f *Flash) EnterQPI() error {
	if f.mode >= ModeQPI {
		return nil
	}
	if err := f.EnableQuad(); err != nil {
		return err
	}
	if err := f.exec(cmdEnterQPI); err != nil {
		return fmt.Errorf("enter QPI: %w", err)
	}
	f.mode = ModeQPI

	if err := f.writeEnable(); err != nil {
		return err
	}
	// 8 dummy clocks for fast reads [GD25Q64|SET READ PARAMETERS]
	c := Command{Opcode: cmdSetReadParams, IWidth: WidthQuad, DWidth: WidthQuad}
	if err := f.tr.Write(c, []byte{0x03 << 4}); err != nil {
		return fmt.Errorf("set read parameters: %w", err)
	}
	return nil
}

// EnableMemoryMap enters QPI if needed and arms the transport's persistent
// read window with the fast-read-quad-I/O command template; afterwards
// ordinary loads in the window are translated into flash reads by hardware.
// The transition is one-way: issuing further discrete commands through this
// driver afterwards is undefined behavior.
func (f *Flash) EnableMemoryMap() error {
	if err := f.EnterQPI(); err != nil {
		return err
	}
	c := Command{
		Opcode:  cmdFastReadQuadIO,
		IWidth:  WidthQuad,
		AWidth:  WidthQuad,
		DWidth:  WidthQuad,
		HasAddr: true,
		Dummy:   8,
	}
	if err := f.tr.MapMemory(c); err != nil {
		return fmt.Errorf("enable memory map: %w", err)
	}
	f.mode = ModeMemoryMapped
	return nil
}

// PowerUp releases the chip from deep power-down.
func (f *Flash) PowerUp() error {
	if err := f.exec(cmdReleasePowerDown); err != nil {
		return err
	}
	time.Sleep(f.tRES1())
	return nil
}

// PowerDown puts the chip into deep power-down.
func (f *Flash) PowerDown() error {
	if err := f.exec(cmdPowerDown); err != nil {
		return err
	}
	time.Sleep(f.tDP())
	return nil
}

// Read fills buf starting at addr using the quad-output fast read. Reads
// may span pages and sectors freely.
func (f *Flash) Read(addr uint32, buf []byte) error {
	c := Command{
		Opcode:  cmdQuadRead,
		IWidth:  WidthSingle,
		AWidth:  WidthSingle,
		DWidth:  WidthQuad,
		Addr:    addr,
		HasAddr: true,
		Dummy:   8,
	}
	if err := f.tr.Read(c, buf); err != nil {
		return fmt.Errorf("quad read at 0x%06X: %w", addr, err)
	}
	return nil
}

// ReadData fills buf starting at addr using the plain single-wire read
// (0x03). Slower than Read, but works on transports that cannot shift quad
// data.
func (f *Flash) ReadData(addr uint32, buf []byte) error {
	c := Command{
		Opcode:  cmdReadData,
		IWidth:  WidthSingle,
		AWidth:  WidthSingle,
		DWidth:  WidthSingle,
		Addr:    addr,
		HasAddr: true,
	}
	if err := f.tr.Read(c, buf); err != nil {
		return fmt.Errorf("read at 0x%06X: %w", addr, err)
	}
	return nil
}

// ReadSFDP reads from the Serial Flash Discoverable Parameters address
// space [JESD216]. The most significant byte of offset is ignored.
func (f *Flash) ReadSFDP(offset uint32, buf []byte) error {
	c := Command{
		Opcode:  cmdReadSFDP,
		IWidth:  WidthSingle,
		AWidth:  WidthSingle,
		DWidth:  WidthSingle,
		Addr:    offset & max24,
		HasAddr: true,
		Dummy:   8,
	}
	return f.tr.Read(c, buf)
}

func (f *Flash) performErase(opcode byte, addr uint32, timeout time.Duration) error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	c := Command{
		Opcode:  opcode,
		IWidth:  WidthSingle,
		AWidth:  WidthSingle,
		Addr:    addr,
		HasAddr: true,
	}
	if err := f.tr.Command(c); err != nil {
		return fmt.Errorf("erase %#02x at 0x%06X: %w", opcode, addr, err)
	}
	return f.BusyWait(f.pollInterval, timeout)
}

// EraseSector erases the 4KB sector containing addr.
func (f *Flash) EraseSector(addr uint32) error {
	return f.performErase(cmdSectorErase, addr, f.tErase4KB())
}

// EraseBlock32K erases the 32KB block containing addr.
func (f *Flash) EraseBlock32K(addr uint32) error {
	return f.performErase(cmdBlockErase32K, addr, f.tErase32KB())
}

// EraseBlock64K erases the 64KB block containing addr.
func (f *Flash) EraseBlock64K(addr uint32) error {
	return f.performErase(cmdBlockErase64K, addr, f.tErase64KB())
}

// EraseChip erases the entire device.
func (f *Flash) EraseChip() error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	if err := f.exec(cmdChipErase); err != nil {
		return fmt.Errorf("chip erase: %w", err)
	}
	return f.BusyWait(f.pollInterval, f.tEraseChip())
}

// Erase erases size bytes starting from addr by repeatedly calling
// EraseBlock64K and EraseSector. The device always erases whole
// sector/block-aligned regions regardless of the requested length.
func (f *Flash) Erase(addr uint32, size int) error {
	const (
		blockSize  = 64 << 10
		sectorSize = 4 << 10
	)

	remaining := size

	// Use 64KB blocks for as much as possible
	for remaining >= blockSize {
		if err := f.EraseBlock64K(addr); err != nil {
			return err
		}
		addr += blockSize
		remaining -= blockSize
	}

	// Use 4KB sectors for the rest
	for remaining > 0 {
		if err := f.EraseSector(addr); err != nil {
			return err
		}
		addr += sectorSize
		remaining -= sectorSize
	}

	return nil
}

// writePage programs at most one page: single-wire instruction and address
// phase, data phase at dw. A chunk running past the end of its page is a
// chunker defect and panics.
func (f *Flash) writePage(opcode byte, dw Width, addr uint32, data []byte) error {
	page := f.pageSize()
	if int(addr)%page+len(data) > page {
		panic(fmt.Sprintf("writePage: length exceeds page boundary (len=%d, addr=0x%06X, page=%d)",
			len(data), addr, page))
	}

	if err := f.writeEnable(); err != nil {
		return err
	}
	c := Command{
		Opcode:  opcode,
		IWidth:  WidthSingle,
		AWidth:  WidthSingle,
		DWidth:  dw,
		Addr:    addr,
		HasAddr: true,
	}
	if err := f.tr.Write(c, data); err != nil {
		return fmt.Errorf("page program at 0x%06X: %w", addr, err)
	}
	return f.BusyWait(f.pollInterval, f.tPP())
}

// writeChunks splits data into page program operations that never cross a
// page boundary, advancing a cursor from addr.
func (f *Flash) writeChunks(opcode byte, dw Width, addr uint32, data []byte) error {
	page := f.pageSize()
	for len(data) > 0 {
		chunk := page - int(addr)%page
		if chunk > len(data) {
			chunk = len(data)
		}
		if err := f.writePage(opcode, dw, addr, data[:chunk]); err != nil {
			return err
		}
		addr += uint32(chunk)
		data = data[chunk:]
	}
	return nil
}

// Write programs data starting at addr via quad page program, split into
// chunks that never cross a page boundary. Callers need not pre-align
// writes.
func (f *Flash) Write(addr uint32, data []byte) error {
	return f.writeChunks(cmdQuadPageProgram, WidthQuad, addr, data)
}

// WriteData programs data via the classic single-wire page program (0x02),
// for transports that cannot shift quad data.
func (f *Flash) WriteData(addr uint32, data []byte) error {
	return f.writeChunks(cmdPageProgram, WidthSingle, addr, data)
}

// WriteFrom streams r into flash starting at addr, one page-sized buffer
// at a time.
func (f *Flash) WriteFrom(addr uint32, r io.Reader) error {
	buf := make([]byte, f.pageSize())
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := f.Write(addr, buf[:n]); werr != nil {
				return werr
			}
			addr += uint32(n)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// BusyWait waits for the flash to become ready by polling the status
// register's busy bit with the specified interval. It returns
// ErrBusyTimeout when the timeout expires first; timeout 0 waits
// indefinitely.
func (f *Flash) BusyWait(interval, timeout time.Duration) error {
	// Fast path
	if sr, err := f.ReadStatusRegister(); err == nil && !sr.Busy() {
		return nil
	}

	timer := time.NewTimer(timeout)
	if timeout == 0 {
		timer.Stop() // disable timer for unconfigured timeout
	}
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return ErrBusyTimeout
		case <-ticker.C:
			sr, err := f.ReadStatusRegister()
			if err != nil {
				return err
			}
			if !sr.Busy() {
				return nil
			}
		}
	}
}
