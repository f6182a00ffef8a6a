// Package mtd provides access to raw flash devices at physical eraseblock
// granularity: Linux MTD character devices, NAND image files and an
// in-memory flash used by tests and dry runs.
package mtd

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrIO marks a device-level input/output failure on one eraseblock.
	// Such failures are candidates for torture testing and bad block
	// marking; every other error is a caller or driver defect.
	ErrIO = errors.New("input/output error")

	// ErrInvalid is returned for out-of-range eraseblocks or offsets.
	ErrInvalid = errors.New("invalid argument")

	// ErrBadBlocksUnsupported is returned by MarkBad on flashes without a
	// bad block table, such as NOR.
	ErrBadBlocksUnsupported = errors.New("bad blocks not supported by this flash")
)

// IsIOError reports whether err is a device-level I/O failure.
func IsIOError(err error) bool {
	return errors.Is(err, ErrIO) || errors.Is(err, syscall.EIO)
}

// Info is the static geometry of a flash device.
type Info struct {
	Name        string
	Type        string
	MTDNum      int // -1 when the device is not a kernel MTD device
	EBSize      int
	MinIOSize   int
	SubpageSize int
	EBCount     int
	BadAllowed  bool
	Writable    bool
}

// Size is the total size of the device in bytes.
func (i Info) Size() int64 {
	return int64(i.EBSize) * int64(i.EBCount)
}

// Validate checks the invariants every driver guarantees.
func (i Info) Validate() error {
	switch {
	case i.EBSize <= 0 || i.EBCount <= 0:
		return fmt.Errorf("%w: %d eraseblocks of %d bytes", ErrInvalid, i.EBCount, i.EBSize)
	case i.MinIOSize <= 0 || i.MinIOSize&(i.MinIOSize-1) != 0:
		return fmt.Errorf("%w: min. I/O size %d is not a power of 2", ErrInvalid, i.MinIOSize)
	case i.SubpageSize <= 0 || i.SubpageSize > i.MinIOSize || i.MinIOSize%i.SubpageSize != 0:
		return fmt.Errorf("%w: sub-page size %d does not divide min. I/O size %d", ErrInvalid, i.SubpageSize, i.MinIOSize)
	case i.EBSize%i.MinIOSize != 0:
		return fmt.Errorf("%w: eraseblock size %d is not a multiple of min. I/O size %d", ErrInvalid, i.EBSize, i.MinIOSize)
	}
	return nil
}

func (i Info) checkRange(eb, offset, n int) error {
	if eb < 0 || eb >= i.EBCount {
		return fmt.Errorf("%w: eraseblock %d out of range [0, %d)", ErrInvalid, eb, i.EBCount)
	}
	if offset < 0 || n < 0 || offset+n > i.EBSize {
		return fmt.Errorf("%w: range [%d, %d) outside eraseblock of %d bytes", ErrInvalid, offset, offset+n, i.EBSize)
	}
	return nil
}

// Device is a flash device addressed by physical eraseblock. All calls
// block until the operation completes.
type Device interface {
	Info() Info
	Erase(eb int) error
	Read(eb, offset int, buf []byte) error
	Write(eb, offset int, buf []byte) error
	IsBad(eb int) (bool, error)
	MarkBad(eb int) error
	// Torture erases, programs and verifies eb with test patterns to
	// decide whether it is really going bad.
	Torture(eb int) error
}
