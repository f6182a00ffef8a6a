package ubi

import (
	"encoding/binary"
	"fmt"
)

// Field offsets inside a volume table record.
const (
	VtblOffReservedPEBs = 0
	VtblOffAlignment    = 4
	VtblOffDataPad      = 8
	VtblOffVolType      = 12
	VtblOffUpdMarker    = 13
	VtblOffNameLen      = 14
	VtblOffName         = 16
	VtblOffFlags        = 16 + VolNameMax + 1
	VtblOffCRC          = VtblRecordSizeCRC
)

// VtblRecord is one entry of the volume table.
type VtblRecord struct {
	ReservedPEBs uint32
	Alignment    uint32
	DataPad      uint32
	VolType      uint8
	UpdMarker    uint8
	Name         string
	Flags        uint8
}

// MarshalBinary encodes r into VtblRecordSize bytes and seals it.
func (r *VtblRecord) MarshalBinary() ([]byte, error) {
	if len(r.Name) > VolNameMax {
		return nil, fmt.Errorf("volume name %q longer than %d bytes", r.Name, VolNameMax)
	}
	b := make([]byte, VtblRecordSize)
	be := binary.BigEndian
	be.PutUint32(b[VtblOffReservedPEBs:], r.ReservedPEBs)
	be.PutUint32(b[VtblOffAlignment:], r.Alignment)
	be.PutUint32(b[VtblOffDataPad:], r.DataPad)
	b[VtblOffVolType] = r.VolType
	b[VtblOffUpdMarker] = r.UpdMarker
	be.PutUint16(b[VtblOffNameLen:], uint16(len(r.Name)))
	copy(b[VtblOffName:], r.Name)
	b[VtblOffFlags] = r.Flags
	be.PutUint32(b[VtblOffCRC:], CRC32(b[:VtblRecordSizeCRC]))
	return b, nil
}

// EmptyVtbl returns a volume table with ui.MaxVolumes empty, sealed records.
func (ui *Info) EmptyVtbl() []byte {
	vtbl := make([]byte, ui.VtblSize)
	// an empty record cannot fail to encode
	rec, _ := (&VtblRecord{}).MarshalBinary()
	for i := 0; i < ui.MaxVolumes; i++ {
		copy(vtbl[i*VtblRecordSize:], rec)
	}
	return vtbl
}
