package main

import (
	"flag"

	"github.com/gentam/qflash"
)

func eraseCommand(args []string) {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	var (
		dev  string
		addr int
		size int
		chip bool
	)
	fs.StringVar(&dev, "dev", "", "spidev device path (default: first FT2232H)")
	fs.IntVar(&addr, "addr", 0, "start address")
	fs.IntVar(&size, "n", 4096, "number of bytes to erase")
	fs.BoolVar(&chip, "chip", false, "erase entire chip")
	fs.Parse(args)

	tr, _, err := openTransport(dev)
	if err != nil {
		fatalf("%v", err)
	}
	f, err := qflash.New(tr)
	if err != nil {
		fatalf("%v", err)
	}

	if err := f.PowerUp(); err != nil {
		fatalf("flash power up failed: %v", err)
	}
	defer f.PowerDown()

	if _, _, err := f.ReadID(); err != nil {
		fatalf("read flash ID failed: %v", err)
	}

	if chip {
		if err := f.EraseChip(); err != nil {
			fatalf("chip erase failed: %v", err)
		}
		return
	}
	if err := f.Erase(uint32(addr), size); err != nil {
		fatalf("erase failed: %v", err)
	}
}
