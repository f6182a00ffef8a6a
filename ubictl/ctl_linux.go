//go:build linux

package ubictl

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl requests from <mtd/ubi-user.h>.
const (
	ubiIOCAtt = 0x40186f40 // _IOW('o', 64, struct ubi_attach_req)
	ubiIOCDet = 0x40046f41 // _IOW('o', 65, __s32)
)

type attachReq struct {
	UBINum        int32
	MTDNum        int32
	VIDHdrOffset  int32
	MaxBEBPer1024 int16
	DisableFM     int8
	NeedResvPool  int8
	_             [8]byte
}

func (c *Ctl) ioctl(req uintptr, arg unsafe.Pointer) error {
	f, err := os.OpenFile(c.CtrlPath, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), req, uintptr(arg)); errno != 0 {
		return errno
	}
	return nil
}

// Detach detaches UBI device ubiNum from its MTD device.
func (c *Ctl) Detach(ubiNum int) error {
	n := int32(ubiNum)
	if err := c.ioctl(ubiIOCDet, unsafe.Pointer(&n)); err != nil {
		return fmt.Errorf("UBI_IOCDET ubi%d: %w", ubiNum, err)
	}
	return nil
}

// Attach attaches mtdNum as UBI device ubiNum. A vidHdrOffset of 0 uses
// the default.
func (c *Ctl) Attach(mtdNum, ubiNum, vidHdrOffset int) error {
	req := attachReq{
		UBINum:       int32(ubiNum),
		MTDNum:       int32(mtdNum),
		VIDHdrOffset: int32(vidHdrOffset),
	}
	if err := c.ioctl(ubiIOCAtt, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("UBI_IOCATT mtd%d: %w", mtdNum, err)
	}
	return nil
}
