package ubi

import "fmt"

// Programmer writes data into a physical eraseblock.
type Programmer interface {
	Write(eb, offset int, buf []byte) error
}

type volInfo struct {
	id      uint32
	volType uint8
	compat  uint8
	dataPad uint32
}

func layoutVolInfo(ui *Info) *volInfo {
	usable := ui.LEBSize - ui.LEBSize%LayoutVolumeAlign
	return &volInfo{
		id:      LayoutVolumeID,
		volType: LayoutVolumeType,
		compat:  LayoutVolumeCompat,
		dataPad: uint32(ui.LEBSize - usable),
	}
}

// LayoutVolumePEB returns the full contents of copy lnum of the layout
// volume: EC header carrying ec, VID header, the volume table, and 0xFF
// everywhere else.
func (ui *Info) LayoutVolumePEB(lnum uint32, ec uint64, vtbl []byte) []byte {
	buf := make([]byte, ui.PEBSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	ui.putECHeader(buf, ec)
	ui.putVIDHeader(buf[ui.VIDHdrOffset:], layoutVolInfo(ui), lnum)
	copy(buf[ui.DataOffset:], vtbl)
	return buf
}

// WriteLayoutVolume writes both copies of the layout volume, holding the
// volume table vtbl, to eraseblocks peb1 and peb2. The blocks must already
// be erased.
func WriteLayoutVolume(w Programmer, ui *Info, peb1, peb2 int, ec1, ec2 uint64, vtbl []byte) error {
	if len(vtbl) != ui.VtblSize {
		return fmt.Errorf("volume table is %d bytes, expected %d", len(vtbl), ui.VtblSize)
	}
	copies := []struct {
		peb int
		ec  uint64
	}{{peb1, ec1}, {peb2, ec2}}

	for lnum, c := range copies {
		buf := ui.LayoutVolumePEB(uint32(lnum), c.ec, vtbl)
		if err := w.Write(c.peb, 0, buf); err != nil {
			return fmt.Errorf("cannot write layout volume copy %d to eraseblock %d: %w", lnum, c.peb, err)
		}
	}
	return nil
}
