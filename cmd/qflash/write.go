package main

import (
	"flag"
	"io"
	"os"

	"github.com/gentam/qflash"
)

func writeCommand(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	var (
		dev       string
		addr      int
		filename  string
		bulkErase bool
	)
	fs.StringVar(&dev, "dev", "", "spidev device path (default: first FT2232H)")
	fs.IntVar(&addr, "addr", 0, "start address")
	fs.StringVar(&filename, "f", "", "input file")
	fs.BoolVar(&bulkErase, "e", false, "bulk erase entire flash")
	fs.Parse(args)

	if filename == "" && !bulkErase {
		fatalUsage("input file is required")
	}

	var input *os.File
	var size int64
	if filename != "" {
		var err error
		input, err = os.Open(filename)
		if err != nil {
			fatalf("failed to open file: %v", err)
		}
		defer input.Close()
		st, err := input.Stat()
		if err != nil {
			fatalf("failed to stat file: %v", err)
		}
		size = st.Size()
	}

	tr, quad, err := openTransport(dev)
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

	// identify the chip so page size and timing limits are configured
	if _, _, err := f.ReadID(); err != nil {
		fatalf("read flash ID failed: %v", err)
	}

	if bulkErase {
		if err := f.EraseChip(); err != nil {
			fatalf("bulk erase flash failed: %v", err)
		}
	} else if size > 0 {
		if err := f.Erase(uint32(addr), int(size)); err != nil {
			fatalf("erase flash failed: %v", err)
		}
	}

	if input == nil {
		return
	}
	if quad {
		err = f.WriteFrom(uint32(addr), input)
	} else {
		var data []byte
		if data, err = io.ReadAll(input); err == nil {
			err = f.WriteData(uint32(addr), data)
		}
	}
	if err != nil {
		fatalf("write flash failed: %v", err)
	}
}
