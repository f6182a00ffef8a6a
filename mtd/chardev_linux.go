//go:build linux

package mtd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl requests from <mtd/mtd-abi.h>.
const (
	memGetInfo     = 0x80204d01 // _IOR('M', 1, struct mtd_info_user)
	memGetBadBlock = 0x40084d0b // _IOW('M', 11, __kernel_loff_t)
	memSetBadBlock = 0x40084d0c // _IOW('M', 12, __kernel_loff_t)
	memErase64     = 0x40104d14 // _IOW('M', 20, struct erase_info_user64)
)

// MTD types and flags from <mtd/mtd-abi.h>.
const (
	mtdAbsent       = 0
	mtdRAM          = 1
	mtdROM          = 2
	mtdNORFlash     = 3
	mtdNANDFlash    = 4
	mtdDataFlash    = 6
	mtdUBIVolume    = 7
	mtdMLCNANDFlash = 8

	mtdWriteable = 0x400
)

type mtdInfoUser struct {
	Type      uint8
	_         [3]uint8
	Flags     uint32
	Size      uint32
	EraseSize uint32
	WriteSize uint32
	OobSize   uint32
	_         uint64
}

type eraseInfoUser64 struct {
	Start  uint64
	Length uint64
}

// CharDevice is a Linux MTD character device such as /dev/mtd0.
type CharDevice struct {
	f    *os.File
	info Info
}

func mtdTypeName(t uint8) string {
	switch t {
	case mtdAbsent:
		return "absent"
	case mtdRAM:
		return "ram"
	case mtdROM:
		return "rom"
	case mtdNORFlash:
		return "nor"
	case mtdNANDFlash:
		return "nand"
	case mtdDataFlash:
		return "dataflash"
	case mtdUBIVolume:
		return "ubi"
	case mtdMLCNANDFlash:
		return "mlc-nand"
	default:
		return "unknown"
	}
}

// IsCharDevicePath reports whether path names an MTD character device.
func IsCharDevicePath(path string) bool {
	_, ok := mtdNumFromPath(path)
	return ok && strings.HasPrefix(path, "/dev/")
}

func mtdNumFromPath(path string) (int, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "mtd") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(base, "mtd"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// sysfsInt reads an integer attribute of mtdN from sysfs.
func sysfsInt(num int, attr string) (int, error) {
	raw, err := os.ReadFile(fmt.Sprintf("/sys/class/mtd/mtd%d/%s", num, attr))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(raw)))
}

// OpenCharDevice opens an MTD character device and queries its geometry.
func OpenCharDevice(path string) (*CharDevice, error) {
	num, ok := mtdNumFromPath(path)
	if !ok {
		return nil, fmt.Errorf("%s is not an MTD character device", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0600)
	if err != nil {
		return nil, err
	}

	var mi mtdInfoUser
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), memGetInfo, uintptr(unsafe.Pointer(&mi))); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("MEMGETINFO on %s: %w", path, errno)
	}

	subpage, err := sysfsInt(num, "subpagesize")
	if err != nil {
		subpage = int(mi.WriteSize)
	}
	name := filepath.Base(path)
	if raw, err := os.ReadFile(fmt.Sprintf("/sys/class/mtd/mtd%d/name", num)); err == nil {
		name = strings.TrimSpace(string(raw))
	}

	info := Info{
		Name:        name,
		Type:        mtdTypeName(mi.Type),
		MTDNum:      num,
		EBSize:      int(mi.EraseSize),
		MinIOSize:   int(mi.WriteSize),
		SubpageSize: subpage,
		BadAllowed:  mi.Type == mtdNANDFlash || mi.Type == mtdMLCNANDFlash,
		Writable:    mi.Flags&mtdWriteable != 0,
	}
	if info.EBSize > 0 {
		info.EBCount = int(mi.Size / mi.EraseSize)
	}
	if err := info.Validate(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &CharDevice{f: f, info: info}, nil
}

// Close releases the device.
func (d *CharDevice) Close() error {
	return d.f.Close()
}

func (d *CharDevice) ioctl(req uint, arg unsafe.Pointer) (uintptr, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), uintptr(req), uintptr(arg))
	if errno != 0 {
		return r, errno
	}
	return r, nil
}

func (d *CharDevice) off(eb, offset int) int64 {
	return int64(eb)*int64(d.info.EBSize) + int64(offset)
}

// Info implements Device.
func (d *CharDevice) Info() Info { return d.info }

// Erase implements Device.
func (d *CharDevice) Erase(eb int) error {
	if err := d.info.checkRange(eb, 0, 0); err != nil {
		return err
	}
	ei := eraseInfoUser64{Start: uint64(d.off(eb, 0)), Length: uint64(d.info.EBSize)}
	if _, err := d.ioctl(memErase64, unsafe.Pointer(&ei)); err != nil {
		return fmt.Errorf("MEMERASE64 eraseblock %d: %w", eb, err)
	}
	return nil
}

// Read implements Device.
func (d *CharDevice) Read(eb, offset int, buf []byte) error {
	if err := d.info.checkRange(eb, offset, len(buf)); err != nil {
		return err
	}
	for done := 0; done < len(buf); {
		n, err := unix.Pread(int(d.f.Fd()), buf[done:], d.off(eb, offset+done))
		if err != nil {
			return fmt.Errorf("read eraseblock %d: %w", eb, err)
		}
		if n == 0 {
			return fmt.Errorf("read eraseblock %d: short read at %d: %w", eb, offset+done, ErrIO)
		}
		done += n
	}
	return nil
}

// Write implements Device.
func (d *CharDevice) Write(eb, offset int, buf []byte) error {
	if err := d.info.checkRange(eb, offset, len(buf)); err != nil {
		return err
	}
	for done := 0; done < len(buf); {
		n, err := unix.Pwrite(int(d.f.Fd()), buf[done:], d.off(eb, offset+done))
		if err != nil {
			return fmt.Errorf("write eraseblock %d: %w", eb, err)
		}
		done += n
	}
	return nil
}

// IsBad implements Device.
func (d *CharDevice) IsBad(eb int) (bool, error) {
	if err := d.info.checkRange(eb, 0, 0); err != nil {
		return false, err
	}
	if !d.info.BadAllowed {
		return false, nil
	}
	off := d.off(eb, 0)
	r, err := d.ioctl(memGetBadBlock, unsafe.Pointer(&off))
	if err != nil {
		return false, fmt.Errorf("MEMGETBADBLOCK eraseblock %d: %w", eb, err)
	}
	return r != 0, nil
}

// MarkBad implements Device.
func (d *CharDevice) MarkBad(eb int) error {
	if err := d.info.checkRange(eb, 0, 0); err != nil {
		return err
	}
	if !d.info.BadAllowed {
		return ErrBadBlocksUnsupported
	}
	off := d.off(eb, 0)
	if _, err := d.ioctl(memSetBadBlock, unsafe.Pointer(&off)); err != nil {
		return fmt.Errorf("MEMSETBADBLOCK eraseblock %d: %w", eb, err)
	}
	return nil
}

// Torture implements Device.
func (d *CharDevice) Torture(eb int) error {
	return Torture(d, eb)
}
