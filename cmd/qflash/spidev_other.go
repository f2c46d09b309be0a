//go:build !linux

package main

import (
	"errors"

	"github.com/gentam/qflash"
)

func openSpidev(dev string) (qflash.Transport, error) {
	return nil, errors.New("spidev devices are only available on linux")
}
