package ubiformat

import (
	"encoding/binary"
	"fmt"

	"ubiformat/ubi"
)

// RewriteHeader replaces the image sequence number and erase counter of
// the EC header at the start of buf and reseals it. The existing header
// must be intact; no other byte is modified.
func RewriteHeader(buf []byte, imageSeq uint32, ec uint64) error {
	if len(buf) < ubi.ECHdrSize {
		return fmt.Errorf("%w: buffer of %d bytes", ErrBadMagic, len(buf))
	}
	be := binary.BigEndian

	if magic := be.Uint32(buf[ubi.ECOffMagic:]); magic != ubi.ECHdrMagic {
		return fmt.Errorf("%w %#08x, should be %#08x", ErrBadMagic, magic, ubi.ECHdrMagic)
	}
	if crc, stored := ubi.ECHeaderCRC(buf), be.Uint32(buf[ubi.ECOffCRC:]); crc != stored {
		return fmt.Errorf("%w %#08x, should be %#08x", ErrBadCRC, crc, stored)
	}

	be.PutUint32(buf[ubi.ECOffImageSeq:], imageSeq)
	be.PutUint64(buf[ubi.ECOffEC:], ec)
	ubi.SealECHeader(buf)
	return nil
}

// DropFFs returns how much of buf has to be programmed: trailing 0xFF
// bytes are left out since erased flash already reads back as 0xFF, and
// the result is rounded up to the min. I/O unit.
func DropFFs(buf []byte, minIOSize int) int {
	i := len(buf) - 1
	for ; i >= 0; i-- {
		if buf[i] != 0xFF {
			break
		}
	}
	n := i + 1
	return (n + minIOSize - 1) / minIOSize * minIOSize
}
