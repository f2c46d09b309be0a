package main

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gentam/qflash"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// openTransport opens the flash bus: a Linux spidev device when dev is set
// (quad-capable if the controller is), otherwise the first FT2232H found
// (single-wire only). quad reports whether quad-width commands can be used.
func openTransport(dev string) (tr qflash.Transport, quad bool, err error) {
	if dev != "" {
		tr, err = openSpidev(dev)
		return tr, true, err
	}

	ft, err := openFT2232H()
	if err != nil {
		return nil, false, err
	}
	tr, err = connectSPI(ft)
	return tr, false, err
}

var hostInitialized atomic.Bool

func openFT2232H() (*ftdi.FT232H, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			return ft, nil
		}
	}

	return nil, errors.New("FT2232H device not found")
}

func connectSPI(ft *ftdi.FT232H) (qflash.Transport, error) {
	port, err := ft.SPI()
	if err != nil {
		return nil, fmt.Errorf("failed to get SPI port: %w", err)
	}

	// [FTDI AN_114|1.2] > FTDI device can only support mode 0 and mode 2
	// due to the limitation of MPSSE engine; the W25Q family accepts
	// mode 0 and mode 3.
	const clk = 30 * physic.MegaHertz // [AN_135 3.2.1 Divisors]
	conn, err := port.Connect(clk, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}

	// ADBUS0 | SCK
	// ADBUS1 | MOSI
	// ADBUS2 | MISO
	// ADBUS4 | CS
	return qflash.NewSPIPort(conn, ft.D4), nil
}
