package qflash

import (
	"bytes"
	"errors"
	"testing"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"
)

// fakeConn records full-duplex transactions and lets a test script the
// bytes shifted back in.
type fakeConn struct {
	txs  [][]byte
	fill func(w, r []byte)
}

func (c *fakeConn) String() string      { return "fake" }
func (c *fakeConn) Duplex() conn.Duplex { return conn.Full }

func (c *fakeConn) Tx(w, r []byte) error {
	c.txs = append(c.txs, append([]byte(nil), w...))
	if c.fill != nil {
		c.fill(w, r)
	}
	return nil
}

func (c *fakeConn) TxPackets([]spi.Packet) error {
	return errors.New("not used")
}

func newTestPort() (*SPIPort, *fakeConn) {
	fc := &fakeConn{}
	return NewSPIPort(fc, &gpiotest.Pin{N: "CS", Num: 4}), fc
}

func TestSPIPortCommandFrame(t *testing.T) {
	p, fc := newTestPort()

	c := Command{Opcode: 0x20, IWidth: WidthSingle, AWidth: WidthSingle, Addr: 0x123456, HasAddr: true}
	if err := p.Command(c); err != nil {
		t.Fatalf("Command: %v", err)
	}

	want := []byte{0x20, 0x12, 0x34, 0x56}
	if len(fc.txs) != 1 || !bytes.Equal(fc.txs[0], want) {
		t.Errorf("wire bytes = %x, want %x", fc.txs, want)
	}
}

func TestSPIPortReadFrame(t *testing.T) {
	p, fc := newTestPort()
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	fc.fill = func(w, r []byte) {
		copy(r[4:], data) // opcode + 3 address bytes, then payload
	}

	out := make([]byte, 4)
	c := Command{Opcode: 0x03, IWidth: WidthSingle, AWidth: WidthSingle, DWidth: WidthSingle, Addr: 0x10, HasAddr: true}
	if err := p.Read(c, out); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if !bytes.Equal(out, data) {
		t.Errorf("payload = %x, want %x", out, data)
	}
	hdr := []byte{0x03, 0x00, 0x00, 0x10}
	if !bytes.Equal(fc.txs[0][:4], hdr) {
		t.Errorf("header = %x, want %x", fc.txs[0][:4], hdr)
	}
}

func TestSPIPortDummyFiller(t *testing.T) {
	p, fc := newTestPort()

	// 8 dummy cycles on a single line occupy one filler byte
	out := make([]byte, 2)
	c := Command{Opcode: 0x5A, IWidth: WidthSingle, AWidth: WidthSingle, DWidth: WidthSingle, HasAddr: true, Dummy: 8}
	if err := p.Read(c, out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := len(fc.txs[0]); got != 1+3+1+2 {
		t.Errorf("frame length = %d, want 7", got)
	}
}

func TestSPIPortRejectsQuad(t *testing.T) {
	p, _ := newTestPort()

	c := Command{Opcode: 0x32, IWidth: WidthSingle, AWidth: WidthSingle, DWidth: WidthQuad, HasAddr: true}
	if err := p.Write(c, []byte{1}); !errors.Is(err, ErrWidthUnsupported) {
		t.Errorf("Write error = %v, want ErrWidthUnsupported", err)
	}
	if err := p.MapMemory(Command{}); !errors.Is(err, ErrNoMemoryMap) {
		t.Errorf("MapMemory error = %v, want ErrNoMemoryMap", err)
	}
}

func TestSPIPortChunkedRead(t *testing.T) {
	p, fc := newTestPort()

	// larger than one FTDI transfer: must split with advancing addresses
	out := make([]byte, 70000)
	c := Command{Opcode: 0x03, IWidth: WidthSingle, AWidth: WidthSingle, DWidth: WidthSingle, HasAddr: true}
	if err := p.Read(c, out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(fc.txs) != 2 {
		t.Fatalf("transactions = %d, want 2", len(fc.txs))
	}
	second := fc.txs[1]
	wantAddr := 65536 - 8
	got := int(second[1])<<16 | int(second[2])<<8 | int(second[3])
	if got != wantAddr {
		t.Errorf("second chunk address = %d, want %d", got, wantAddr)
	}
}
