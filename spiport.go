package qflash

import (
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// SPIPort is a Transport over a plain SPI connection with a GPIO chip
// select, such as an FT2232H MPSSE link. It shifts single-wire phases only:
// commands with a quad phase fail with ErrWidthUnsupported, and there is no
// memory-mapped window.
type SPIPort struct {
	conn spi.Conn
	cs   gpio.PinIO
}

func NewSPIPort(conn spi.Conn, cs gpio.PinIO) *SPIPort {
	return &SPIPort{conn: conn, cs: cs}
}

// tx wraps one full-duplex SPI transaction with CS assertion.
func (p *SPIPort) tx(buf []byte) (err error) {
	if err = p.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := p.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	err = p.conn.Tx(buf, buf)
	return
}

// frame lays out opcode, address and dummy filler in a single full-duplex
// buffer with room for dataLen payload bytes, and returns the payload
// offset.
func (p *SPIPort) frame(c Command, dataLen int) ([]byte, int, error) {
	if err := c.Validate(); err != nil {
		return nil, 0, err
	}
	if c.IWidth == WidthQuad || c.AWidth == WidthQuad || c.DWidth == WidthQuad {
		return nil, 0, ErrWidthUnsupported
	}

	n := 1
	if c.HasAddr {
		n += 3
	}
	n += c.dummyBytes()

	buf := make([]byte, n+dataLen)
	buf[0] = c.Opcode
	if c.HasAddr {
		a := c.addrBytes()
		copy(buf[1:], a[:])
	}
	// trailing zero bytes before the payload clock the dummy cycles
	return buf, n, nil
}

func (p *SPIPort) Command(c Command) error {
	buf, _, err := p.frame(c, 0)
	if err != nil {
		return err
	}
	return p.tx(buf)
}

func (p *SPIPort) Write(c Command, data []byte) error {
	buf, n, err := p.frame(c, len(data))
	if err != nil {
		return err
	}
	copy(buf[n:], data)
	return p.tx(buf)
}

// Read splits large reads into multiple transactions to stay within the
// controller's maximum transfer size.
func (p *SPIPort) Read(c Command, out []byte) error {
	const maxTx = 65536 // [FTDI-AN_108]

	if !c.HasAddr {
		buf, n, err := p.frame(c, len(out))
		if err != nil {
			return err
		}
		if err := p.tx(buf); err != nil {
			return err
		}
		copy(out, buf[n:])
		return nil
	}

	for off := 0; off < len(out); {
		cc := c
		cc.Addr = c.Addr + uint32(off)

		chunk := min(len(out)-off, maxTx-8)
		buf, n, err := p.frame(cc, chunk)
		if err != nil {
			return err
		}
		if err := p.tx(buf); err != nil {
			return err
		}
		copy(out[off:], buf[n:])
		off += chunk
	}
	return nil
}

func (p *SPIPort) MapMemory(Command) error {
	return ErrNoMemoryMap
}
