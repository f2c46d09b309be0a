//go:build linux

package main

import "github.com/gentam/qflash"

const spidevSpeedHz = 10_000_000

func openSpidev(dev string) (qflash.Transport, error) {
	return qflash.OpenSpidev(dev, spidevSpeedHz)
}
