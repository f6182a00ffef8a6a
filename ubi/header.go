package ubi

import (
	"encoding/binary"
	"fmt"
)

// Field offsets inside an erase counter header.
const (
	ECOffMagic    = 0
	ECOffVersion  = 4
	ECOffEC       = 8
	ECOffVIDHdr   = 16
	ECOffData     = 20
	ECOffImageSeq = 24
	ECOffCRC      = ECHdrSizeCRC
)

// ECHeader is the erase counter header stored at offset 0 of every PEB.
type ECHeader struct {
	Magic        uint32
	Version      uint8
	EC           uint64
	VIDHdrOffset uint32
	DataOffset   uint32
	ImageSeq     uint32
	HdrCRC       uint32
}

// put encodes h into the first ECHdrSize bytes of b. The stored HdrCRC
// is written as is; use SealECHeader to recompute it.
func (h *ECHeader) put(b []byte) {
	be := binary.BigEndian
	be.PutUint32(b[ECOffMagic:], h.Magic)
	b[ECOffVersion] = h.Version
	be.PutUint64(b[ECOffEC:], h.EC)
	be.PutUint32(b[ECOffVIDHdr:], h.VIDHdrOffset)
	be.PutUint32(b[ECOffData:], h.DataOffset)
	be.PutUint32(b[ECOffImageSeq:], h.ImageSeq)
	be.PutUint32(b[ECOffCRC:], h.HdrCRC)
}

// UnmarshalBinary decodes the first ECHdrSize bytes of b without any
// validation.
func (h *ECHeader) UnmarshalBinary(b []byte) error {
	if len(b) < ECHdrSize {
		return fmt.Errorf("EC header needs %d bytes, have %d", ECHdrSize, len(b))
	}
	be := binary.BigEndian
	h.Magic = be.Uint32(b[ECOffMagic:])
	h.Version = b[ECOffVersion]
	h.EC = be.Uint64(b[ECOffEC:])
	h.VIDHdrOffset = be.Uint32(b[ECOffVIDHdr:])
	h.DataOffset = be.Uint32(b[ECOffData:])
	h.ImageSeq = be.Uint32(b[ECOffImageSeq:])
	h.HdrCRC = be.Uint32(b[ECOffCRC:])
	return nil
}

// ECHeaderCRC computes the checksum of the encoded header in b.
func ECHeaderCRC(b []byte) uint32 {
	return CRC32(b[:ECHdrSizeCRC])
}

// SealECHeader recomputes and stores the checksum of the encoded header in b.
func SealECHeader(b []byte) {
	binary.BigEndian.PutUint32(b[ECOffCRC:], ECHeaderCRC(b))
}

// Field offsets inside a volume identifier header.
const (
	VIDOffMagic    = 0
	VIDOffVersion  = 4
	VIDOffVolType  = 5
	VIDOffCopyFlag = 6
	VIDOffCompat   = 7
	VIDOffVolID    = 8
	VIDOffLnum     = 12
	VIDOffDataSize = 20
	VIDOffUsedEBs  = 24
	VIDOffDataPad  = 28
	VIDOffDataCRC  = 32
	VIDOffSqnum    = 40
	VIDOffCRC      = VIDHdrSizeCRC
)

// VIDHeader is the volume identifier header of a mapped PEB.
type VIDHeader struct {
	Magic    uint32
	Version  uint8
	VolType  uint8
	CopyFlag uint8
	Compat   uint8
	VolID    uint32
	Lnum     uint32
	DataSize uint32
	UsedEBs  uint32
	DataPad  uint32
	DataCRC  uint32
	Sqnum    uint64
	HdrCRC   uint32
}

func (h *VIDHeader) put(b []byte) {
	be := binary.BigEndian
	be.PutUint32(b[VIDOffMagic:], h.Magic)
	b[VIDOffVersion] = h.Version
	b[VIDOffVolType] = h.VolType
	b[VIDOffCopyFlag] = h.CopyFlag
	b[VIDOffCompat] = h.Compat
	be.PutUint32(b[VIDOffVolID:], h.VolID)
	be.PutUint32(b[VIDOffLnum:], h.Lnum)
	be.PutUint32(b[VIDOffDataSize:], h.DataSize)
	be.PutUint32(b[VIDOffUsedEBs:], h.UsedEBs)
	be.PutUint32(b[VIDOffDataPad:], h.DataPad)
	be.PutUint32(b[VIDOffDataCRC:], h.DataCRC)
	be.PutUint64(b[VIDOffSqnum:], h.Sqnum)
	be.PutUint32(b[VIDOffCRC:], h.HdrCRC)
}

// UnmarshalBinary decodes the first VIDHdrSize bytes of b.
func (h *VIDHeader) UnmarshalBinary(b []byte) error {
	if len(b) < VIDHdrSize {
		return fmt.Errorf("VID header needs %d bytes, have %d", VIDHdrSize, len(b))
	}
	be := binary.BigEndian
	h.Magic = be.Uint32(b[VIDOffMagic:])
	h.Version = b[VIDOffVersion]
	h.VolType = b[VIDOffVolType]
	h.CopyFlag = b[VIDOffCopyFlag]
	h.Compat = b[VIDOffCompat]
	h.VolID = be.Uint32(b[VIDOffVolID:])
	h.Lnum = be.Uint32(b[VIDOffLnum:])
	h.DataSize = be.Uint32(b[VIDOffDataSize:])
	h.UsedEBs = be.Uint32(b[VIDOffUsedEBs:])
	h.DataPad = be.Uint32(b[VIDOffDataPad:])
	h.DataCRC = be.Uint32(b[VIDOffDataCRC:])
	h.Sqnum = be.Uint64(b[VIDOffSqnum:])
	h.HdrCRC = be.Uint32(b[VIDOffCRC:])
	return nil
}

// VIDHeaderCRC computes the checksum of the encoded VID header in b.
func VIDHeaderCRC(b []byte) uint32 {
	return CRC32(b[:VIDHdrSizeCRC])
}

// SealVIDHeader recomputes and stores the checksum of the VID header in b.
func SealVIDHeader(b []byte) {
	binary.BigEndian.PutUint32(b[VIDOffCRC:], VIDHeaderCRC(b))
}
