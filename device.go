package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"ubiformat/mtd"
)

type device interface {
	mtd.Device
	io.Closer
}

// openDevice opens an MTD character device such as /dev/mtd3, or a NAND
// image file created by the create command.
func openDevice(path string) (device, error) {
	if mtd.IsCharDevicePath(path) {
		d, err := mtd.OpenCharDevice(path)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	d, err := mtd.OpenImage(path)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func describe(info mtd.Info) string {
	name := info.Name
	if info.MTDNum >= 0 {
		name = fmt.Sprintf("mtd%d (%s)", info.MTDNum, info.Name)
	}
	return fmt.Sprintf("%s, size %s, %d eraseblocks of %s, min. I/O size %d bytes",
		name, humanize.IBytes(uint64(info.Size())), info.EBCount,
		humanize.IBytes(uint64(info.EBSize)), info.MinIOSize)
}
