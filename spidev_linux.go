//go:build linux

package qflash

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// See Linux "include/uapi/linux/spi/spidev.h" and
// "Documentation/spi/spidev.rst". Controllers advertising SPI_TX_QUAD /
// SPI_RX_QUAD carry wide phases through the per-transfer nbits fields.

const (
	iocWrMode32     = 0x40046b05
	iocWrMaxSpeedHz = 0x40046b04
)

// iocMessage is the ioctl number for n chained transfers.
func iocMessage(n int) uint32 {
	const (
		sizeBits  = 14
		sizeShift = 16
	)
	size := uint32(n) * uint32(unsafe.Sizeof(spidevTransfer{}))
	if n < 0 || size > (1<<sizeBits) {
		return iocMessage(0)
	}
	return 0x40006b00 | (size << sizeShift)
}

// spidevTransfer mirrors struct spi_ioc_transfer.
type spidevTransfer struct {
	txBuf          uint64
	rxBuf          uint64
	length         uint32
	speedHz        uint32
	delayUsecs     uint16
	bitsPerWord    uint8
	csChange       uint8
	txNBits        uint8
	rxNBits        uint8
	wordDelayUsecs uint8
	pad            uint8
}

// phase is one chip-select-held segment of a transaction: either tx or rx,
// shifted at the given line count.
type phase struct {
	tx    []byte
	rx    []byte
	nbits uint8
}

// Spidev is a Transport over a Linux spidev character device. Quad phases
// work on controllers that support SPI_TX_QUAD/SPI_RX_QUAD; spidev exposes
// no memory-mapped window, so MapMemory always fails.
type Spidev struct {
	f       *os.File
	speedHz uint32
}

// OpenSpidev opens a spidev device such as "/dev/spidev0.0" in SPI mode 0.
// speedHz 0 leaves the bus at its configured default. Remember to call
// Close.
func OpenSpidev(dev string, speedHz uint32) (*Spidev, error) {
	f, err := os.OpenFile(dev, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	s := &Spidev{f: f, speedHz: speedHz}

	var mode uint32 // mode 0
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), iocWrMode32,
		uintptr(unsafe.Pointer(&mode))); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("spidev set mode: %w", errno)
	}
	if speedHz != 0 {
		if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), iocWrMaxSpeedHz,
			uintptr(unsafe.Pointer(&speedHz))); errno != 0 {
			f.Close()
			return nil, fmt.Errorf("spidev set speed: %w", errno)
		}
	}
	return s, nil
}

func (s *Spidev) Close() error {
	return s.f.Close()
}

// header builds the instruction, address and dummy phases.
func (s *Spidev) header(c Command) ([]phase, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	ph := []phase{{tx: []byte{c.Opcode}, nbits: uint8(c.IWidth.Lines())}}
	if c.HasAddr {
		a := c.addrBytes()
		// dummy cycles ride at the address width as zero filler bytes
		ph = append(ph, phase{
			tx:    append(a[:], make([]byte, c.dummyBytes())...),
			nbits: uint8(c.AWidth.Lines()),
		})
	}
	return ph, nil
}

func (s *Spidev) Command(c Command) error {
	ph, err := s.header(c)
	if err != nil {
		return err
	}
	return s.transfer(ph)
}

func (s *Spidev) Write(c Command, data []byte) error {
	ph, err := s.header(c)
	if err != nil {
		return err
	}
	ph = append(ph, phase{tx: data, nbits: uint8(c.DWidth.Lines())})
	return s.transfer(ph)
}

func (s *Spidev) Read(c Command, buf []byte) error {
	ph, err := s.header(c)
	if err != nil {
		return err
	}
	ph = append(ph, phase{rx: buf, nbits: uint8(c.DWidth.Lines())})
	return s.transfer(ph)
}

func (s *Spidev) MapMemory(Command) error {
	return ErrNoMemoryMap
}

// transfer chains the phases in one ioctl, holding chip select until the
// last phase completes.
func (s *Spidev) transfer(phases []phase) error {
	// Copy data into an unmanaged buffer because the garbage collector may
	// move pointers at any time.
	bufSize := 0
	for _, p := range phases {
		bufSize += len(p.tx) + len(p.rx)
	}
	buf, err := unix.Mmap(-1, 0, bufSize, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return err
	}
	defer unix.Munmap(buf)

	it := make([]spidevTransfer, 0, len(phases))
	off := 0
	for i, p := range phases {
		t := spidevTransfer{
			length:  uint32(len(p.tx) + len(p.rx)),
			speedHz: s.speedHz,
		}
		if len(p.tx) > 0 {
			copy(buf[off:], p.tx)
			t.txBuf = uint64(uintptr(unsafe.Pointer(&buf[off])))
			t.txNBits = p.nbits
		}
		if len(p.rx) > 0 {
			t.rxBuf = uint64(uintptr(unsafe.Pointer(&buf[off+len(p.tx)])))
			t.rxNBits = p.nbits
		}
		if i == len(phases)-1 {
			t.csChange = 1 // deassert CS after the final phase
		}
		it = append(it, t)
		off += len(p.tx) + len(p.rx)
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(),
		uintptr(iocMessage(len(it))),
		uintptr(unsafe.Pointer(&it[0]))); errno != 0 {
		return fmt.Errorf("spidev transfer: %w", errno)
	}

	// Copy out rx.
	off = 0
	for _, p := range phases {
		copy(p.rx, buf[off+len(p.tx):])
		off += len(p.tx) + len(p.rx)
	}
	return nil
}
