package driver

import (
	"sync"
	"time"

	"github.com/NextDesignSolutions/ethminer-sqrl/axi"
)

// fakeAXI is a scripted in-memory transport. Register reads pop
// scripted sequences first, and the last scripted value then repeats;
// unscripted registers read back the last written value. Every
// operation is logged in order for assertions.
type fakeAXI struct {
	mu sync.Mutex

	regs    map[uint32]uint32
	readSeq map[uint32][]uint32
	failRd  map[uint32]bool

	ops    []string // op trace: "r@5048", "w@506c", ...
	writes []fakeWrite
	bulks  []fakeBulk
	cdmas  []fakeCDMA

	irqScript []fakeIRQ
	failCDMAW int // error the next N CDMAWriteBytes calls
	waits     int
	onWait    func(n int) // invoked after each WaitForInterrupt, lock released
	kicked    int
	closed    bool
}

type fakeWrite struct {
	val  uint32
	addr uint32
}

type fakeBulk struct {
	data []byte
	addr uint32
	swap bool
}

type fakeCDMA struct {
	src, dst, n uint64
}

type fakeIRQ struct {
	res  axi.Result
	data uint64
}

func newFakeAXI() *fakeAXI {
	return &fakeAXI{
		regs:    make(map[uint32]uint32),
		readSeq: make(map[uint32][]uint32),
		failRd:  make(map[uint32]bool),
	}
}

func (f *fakeAXI) script(addr uint32, vals ...uint32) {
	f.mu.Lock()
	f.readSeq[addr] = append(f.readSeq[addr], vals...)
	f.mu.Unlock()
}

func (f *fakeAXI) Read(addr uint32) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, opTag("r", addr))
	if f.failRd[addr] {
		return 0, &axi.Error{Op: "read", Addr: uint64(addr)}
	}
	if seq := f.readSeq[addr]; len(seq) > 0 {
		v := seq[0]
		if len(seq) > 1 {
			f.readSeq[addr] = seq[1:]
		}
		return v, nil
	}
	return f.regs[addr], nil
}

func (f *fakeAXI) Write(value, addr uint32, wait bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, opTag("w", addr))
	f.writes = append(f.writes, fakeWrite{val: value, addr: addr})
	f.regs[addr] = value
	return nil
}

func (f *fakeAXI) WriteBulk(p []byte, addr uint32, byteSwap bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, opTag("b", addr))
	f.bulks = append(f.bulks, fakeBulk{data: append([]byte(nil), p...), addr: addr, swap: byteSwap})
	return nil
}

func (f *fakeAXI) CDMACopy(src, dst, n uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "cdma")
	f.cdmas = append(f.cdmas, fakeCDMA{src: src, dst: dst, n: n})
	return nil
}

func (f *fakeAXI) CDMAWriteBytes(p []byte, addr uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "cdmaw")
	if f.failCDMAW > 0 {
		f.failCDMAW--
		return &axi.Error{Op: "cdmawrite", Addr: addr}
	}
	f.bulks = append(f.bulks, fakeBulk{data: append([]byte(nil), p...), addr: uint32(addr)})
	return nil
}

func (f *fakeAXI) EnableInterruptsWithMask(mask uint32) error { return nil }

func (f *fakeAXI) WaitForInterrupt(mask uint32, timeout time.Duration) (axi.Result, uint64) {
	f.mu.Lock()
	f.waits++
	n := f.waits
	var ev fakeIRQ
	if len(f.irqScript) > 0 {
		ev = f.irqScript[0]
		f.irqScript = f.irqScript[1:]
	} else {
		ev = fakeIRQ{res: axi.ResultTimedOut}
	}
	hook := f.onWait
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return ev.res, ev.data
}

func (f *fakeAXI) KickInterrupts() {
	f.mu.Lock()
	f.kicked++
	f.mu.Unlock()
}

func (f *fakeAXI) SetTimeout(d time.Duration) {}

func (f *fakeAXI) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

var _ axi.Client = (*fakeAXI)(nil)

func opTag(kind string, addr uint32) string {
	const hexdigits = "0123456789abcdef"
	b := []byte(kind + "@")
	for shift := 12; shift >= 0; shift -= 4 {
		b = append(b, hexdigits[addr>>uint(shift)&0xF])
	}
	return string(b)
}

// writesTo collects the values written to one register, in order.
func (f *fakeAXI) writesTo(addr uint32) []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uint32
	for _, w := range f.writes {
		if w.addr == addr {
			out = append(out, w.val)
		}
	}
	return out
}

// wroteInRange reports whether any 32-bit write landed in
// [lo, hi).
func (f *fakeAXI) wroteInRange(lo, hi uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.writes {
		if w.addr >= lo && w.addr < hi {
			return true
		}
	}
	return false
}
