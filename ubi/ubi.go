// Package ubi holds the on-flash binary format written by the formatter:
// erase counter headers, volume identifier headers, volume table records
// and the layout volume that carries the volume table.
//
// All multi-byte fields are big-endian. Every header ends with a CRC-32
// computed with the UBI convention (IEEE polynomial, seed 0xFFFFFFFF,
// no final inversion) over all preceding bytes.
package ubi

import "hash/crc32"

// Magic numbers and sizes of the on-flash structures.
const (
	ECHdrMagic  = 0x55424923 // "UBI#"
	VIDHdrMagic = 0x55424921 // "UBI!"

	ECHdrSize     = 64
	ECHdrSizeCRC  = ECHdrSize - 4
	VIDHdrSize    = 64
	VIDHdrSizeCRC = VIDHdrSize - 4

	VtblRecordSize    = 172
	VtblRecordSizeCRC = VtblRecordSize - 4
	VolNameMax        = 127
	MaxVolumes        = 128

	// Version is the only UBI on-flash format version in use.
	Version = 1

	// MaxEraseCounter is the largest erase counter a header may carry.
	MaxEraseCounter = 0x7FFFFFFF
)

// Volume types, compatibility flags and the layout volume parameters.
const (
	VolDynamic = 1
	VolStatic  = 2

	CompatDelete   = 1
	CompatRO       = 2
	CompatPreserve = 4
	CompatReject   = 5

	InternalVolStart = 0x7FFFFFFF - 4096

	LayoutVolumeID     = InternalVolStart
	LayoutVolumeType   = VolDynamic
	LayoutVolumeAlign  = 1
	LayoutVolumeEBs    = 2
	LayoutVolumeName   = "layout volume"
	LayoutVolumeCompat = CompatReject
)

// CRC32Init is the seed of every UBI checksum.
const CRC32Init = 0xFFFFFFFF

// CRC32 returns the UBI checksum of b.
func CRC32(b []byte) uint32 {
	// crc32.ChecksumIEEE inverts before and after; undoing the final
	// inversion leaves the raw CRC seeded with CRC32Init.
	return ^crc32.ChecksumIEEE(b)
}

// AllFF reports whether every byte of b is in the erased state.
func AllFF(b []byte) bool {
	for _, c := range b {
		if c != 0xFF {
			return false
		}
	}
	return true
}
