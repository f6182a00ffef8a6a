package mtd

import (
	"fmt"
	"sort"
)

// MemDevice is a NAND flash backed by a byte slice. Programming can only
// clear bits, like real NAND; Erase sets the whole block back to 0xFF.
//
// Faults can be injected per eraseblock to exercise recovery paths.
type MemDevice struct {
	info   Info
	memory []byte
	bad    map[int]bool

	eraseFaults map[int]error
	writeFaults map[int]writeFault

	erases map[int]int
	writes map[int]int
}

// NewMemDevice returns an erased in-memory flash with the given geometry.
func NewMemDevice(info Info) (*MemDevice, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if info.Name == "" {
		info.Name = "ram"
	}
	if info.Type == "" {
		info.Type = "nand"
	}
	info.MTDNum = -1
	info.Writable = true

	d := &MemDevice{
		info:        info,
		memory:      make([]byte, info.Size()),
		bad:         make(map[int]bool),
		eraseFaults: make(map[int]error),
		writeFaults: make(map[int]writeFault),
		erases:      make(map[int]int),
		writes:      make(map[int]int),
	}
	fill(d.memory, 0xFF)
	return d, nil
}

func (d *MemDevice) block(eb int) []byte {
	start := eb * d.info.EBSize
	return d.memory[start : start+d.info.EBSize]
}

// Info implements Device.
func (d *MemDevice) Info() Info { return d.info }

// Erase implements Device.
func (d *MemDevice) Erase(eb int) error {
	if err := d.info.checkRange(eb, 0, 0); err != nil {
		return err
	}
	d.erases[eb]++
	if err, ok := d.eraseFaults[eb]; ok {
		return fmt.Errorf("erase eraseblock %d: %w", eb, err)
	}
	fill(d.block(eb), 0xFF)
	return nil
}

// Read implements Device.
func (d *MemDevice) Read(eb, offset int, buf []byte) error {
	if err := d.info.checkRange(eb, offset, len(buf)); err != nil {
		return err
	}
	copy(buf, d.block(eb)[offset:])
	return nil
}

// Write implements Device.
func (d *MemDevice) Write(eb, offset int, buf []byte) error {
	if err := d.info.checkRange(eb, offset, len(buf)); err != nil {
		return err
	}
	if offset%d.info.SubpageSize != 0 || len(buf)%d.info.SubpageSize != 0 {
		return fmt.Errorf("%w: write of %d bytes at %d not aligned to %d", ErrInvalid, len(buf), offset, d.info.SubpageSize)
	}
	d.writes[eb]++
	if f, ok := d.writeFaults[eb]; ok && f.n != 0 {
		if f.n > 0 {
			f.n--
			d.writeFaults[eb] = f
		}
		return fmt.Errorf("write eraseblock %d: %w", eb, f.err)
	}
	dst := d.block(eb)[offset:]
	for i, c := range buf {
		dst[i] &= c
	}
	return nil
}

// IsBad implements Device.
func (d *MemDevice) IsBad(eb int) (bool, error) {
	if err := d.info.checkRange(eb, 0, 0); err != nil {
		return false, err
	}
	return d.bad[eb], nil
}

// MarkBad implements Device.
func (d *MemDevice) MarkBad(eb int) error {
	if err := d.info.checkRange(eb, 0, 0); err != nil {
		return err
	}
	if !d.info.BadAllowed {
		return ErrBadBlocksUnsupported
	}
	d.bad[eb] = true
	return nil
}

// Torture implements Device.
func (d *MemDevice) Torture(eb int) error {
	return Torture(d, eb)
}

// Program copies buf into eb at offset bypassing fault injection and
// NAND semantics. It is used to lay down fixture contents.
func (d *MemDevice) Program(eb, offset int, buf []byte) error {
	if err := d.info.checkRange(eb, offset, len(buf)); err != nil {
		return err
	}
	copy(d.block(eb)[offset:], buf)
	return nil
}

// FailErase makes every following erase of eb return err.
func (d *MemDevice) FailErase(eb int, err error) {
	d.eraseFaults[eb] = err
}

type writeFault struct {
	n   int
	err error
}

// FailWrite makes the next n writes to eb fail with ErrIO. A negative n
// fails every write.
func (d *MemDevice) FailWrite(eb, n int) {
	d.writeFaults[eb] = writeFault{n: n, err: ErrIO}
}

// FailWriteWith makes every following write to eb return err.
func (d *MemDevice) FailWriteWith(eb int, err error) {
	d.writeFaults[eb] = writeFault{n: -1, err: err}
}

// Erases returns how many times eb was erased.
func (d *MemDevice) Erases(eb int) int { return d.erases[eb] }

// Writes returns how many writes were issued to eb.
func (d *MemDevice) Writes(eb int) int { return d.writes[eb] }

// BadBlocks returns the sorted list of blocks marked bad.
func (d *MemDevice) BadBlocks() []int {
	var out []int
	for eb := range d.bad {
		out = append(out, eb)
	}
	sort.Ints(out)
	return out
}
