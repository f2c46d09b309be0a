package qflash

import "time"

// DefaultPageSize is the program-page granularity assumed for chips not in
// the knownFlash table. A page this small is always safe: program chunks
// clipped to it can never straddle a real page boundary.
const DefaultPageSize = 8

type flashParams struct {
	name     string
	pageSize int
	capacity int // bytes

	tRES1      time.Duration
	tDP        time.Duration
	tPP        time.Duration
	tErase4KB  time.Duration
	tErase32KB time.Duration
	tErase64KB time.Duration
	tEraseChip time.Duration
}

var (
	flashIDWinbondW25Q64  = [3]byte{0xEF, 0x40, 0x17}
	flashIDWinbondW25Q128 = [3]byte{0xEF, 0x70, 0x18}
	flashIDGigaDeviceQ64  = [3]byte{0xC8, 0x40, 0x17}
)

var knownFlash = map[[3]byte]flashParams{
	flashIDWinbondW25Q64: {
		name:     "Winbond W25Q 64Mb",
		pageSize: 256,
		capacity: 8 << 20,

		// [W25Q128|9.6 AC Electrical Characteristics] (shared family limits)
		tRES1:      3 * time.Microsecond,
		tDP:        3 * time.Microsecond,
		tPP:        3 * time.Millisecond,
		tErase4KB:  400 * time.Millisecond,
		tErase32KB: 1600 * time.Millisecond,
		tErase64KB: 2000 * time.Millisecond,
		tEraseChip: 100 * time.Second,
	},

	flashIDWinbondW25Q128: {
		name:     "Winbond W25Q 128Mb",
		pageSize: 256,
		capacity: 16 << 20,

		// [W25Q128|9.6 AC Electrical Characteristics]:
		// tRES1: /CS High to Standby Mode without ID Read
		tRES1: 3 * time.Microsecond,
		// tDP: /CS High to Power-down Mode
		tDP: 3 * time.Microsecond,
		// tPP: Page Program Time
		tPP: 3 * time.Millisecond,
		// tSE: Sector Erase Time (4KB)
		tErase4KB: 400 * time.Millisecond,
		// tBE1: Block Erase Time (32KB)
		tErase32KB: 1600 * time.Millisecond,
		// tBE2: Block Erase Time (64KB)
		tErase64KB: 2000 * time.Millisecond,
		// tCE: Chip Erase Time
		tEraseChip: 200 * time.Second,
	},

	flashIDGigaDeviceQ64: {
		name:     "GigaDevice GD25Q 64Mb",
		pageSize: 256,
		capacity: 8 << 20,

		// [GD25Q64|AC Characteristics]
		tRES1:      20 * time.Microsecond,
		tDP:        20 * time.Microsecond,
		tPP:        2400 * time.Microsecond,
		tErase4KB:  300 * time.Millisecond,
		tErase32KB: 800 * time.Millisecond,
		tErase64KB: 1200 * time.Millisecond,
		tEraseChip: 30 * time.Second,
	},
}

func (f *Flash) paramOrMax(get func(*flashParams) time.Duration) time.Duration {
	// get parameter if configured
	if f.pr != nil {
		return get(f.pr)
	}

	// fall back to maximum duration from all known flash parameters
	var tmax time.Duration
	for _, param := range knownFlash {
		tmax = max(tmax, get(&param))
	}
	return tmax
}

// pageSize is the program-page granularity of the identified chip, or
// DefaultPageSize when the chip is unknown.
func (f *Flash) pageSize() int {
	if f.pr != nil && f.pr.pageSize > 0 {
		return f.pr.pageSize
	}
	return DefaultPageSize
}

func (f *Flash) tRES1() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tRES1 })
}
func (f *Flash) tDP() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tDP })
}
func (f *Flash) tPP() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tPP })
}
func (f *Flash) tErase4KB() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tErase4KB })
}
func (f *Flash) tErase32KB() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tErase32KB })
}
func (f *Flash) tErase64KB() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tErase64KB })
}
func (f *Flash) tEraseChip() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tEraseChip })
}
