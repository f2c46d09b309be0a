package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/gentam/qflash"
)

func readCommand(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var (
		dev        string
		addr       int
		nread      int
		idOnly     bool
		statusOnly bool
		outFile    string
	)
	fs.StringVar(&dev, "dev", "", "spidev device path (default: first FT2232H)")
	fs.IntVar(&addr, "addr", 0, "start address")
	fs.IntVar(&nread, "n", 256, "number of bytes to read")
	fs.BoolVar(&idOnly, "id", false, "just print flash ID")
	fs.BoolVar(&statusOnly, "s", false, "just print flash status register")
	fs.StringVar(&outFile, "o", "", "output file (default: hexdump)")
	fs.Parse(args)

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

	if statusOnly {
		sr, err := f.ReadStatusRegister()
		if err != nil {
			fatalf("read flash status register failed: %v", err)
		}
		fmt.Println(sr)
		return
	}

	flashID, name, err := f.ReadID()
	if err != nil {
		fatalf("read flash ID failed: %v", err)
	}
	if idOnly {
		fmt.Printf("%X\t%s\n", flashID, name)
		return
	}
	if name == "" {
		fmt.Fprintf(os.Stderr, "unknown flash ID (%X)\n", flashID)
	}

	data := make([]byte, nread)
	if quad {
		err = f.Read(uint32(addr), data)
	} else {
		err = f.ReadData(uint32(addr), data)
	}
	if err != nil {
		fatalf("read flash failed: %v", err)
	}
	if outFile == "" {
		fmt.Println(hex.Dump(data))
		return
	}
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		fmt.Fprintln(os.Stderr, "write file failed:", err)
	}
}
