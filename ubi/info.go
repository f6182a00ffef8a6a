package ubi

// Info describes how UBI structures are placed inside a PEB for one
// format run.
type Info struct {
	PEBSize      int
	MinIOSize    int
	VIDHdrOffset int
	DataOffset   int
	LEBSize      int
	Version      uint8
	ImageSeq     uint32
	MaxVolumes   int
	VtblSize     int
}

// NewInfo derives the header and data offsets for a flash with the given
// geometry. A zero vidHdrOffset places the VID header right after the EC
// header, aligned to the sub-page size.
func NewInfo(pebSize, minIOSize, subpageSize, vidHdrOffset int, version uint8, imageSeq uint32) *Info {
	if vidHdrOffset == 0 {
		vidHdrOffset = alignUp(ECHdrSize, subpageSize)
	}

	ui := &Info{
		PEBSize:      pebSize,
		MinIOSize:    minIOSize,
		VIDHdrOffset: vidHdrOffset,
		DataOffset:   alignUp(vidHdrOffset+VIDHdrSize, minIOSize),
		Version:      version,
		ImageSeq:     imageSeq,
	}
	ui.LEBSize = pebSize - ui.DataOffset
	ui.MaxVolumes = ui.LEBSize / VtblRecordSize
	if ui.MaxVolumes > MaxVolumes {
		ui.MaxVolumes = MaxVolumes
	}
	ui.VtblSize = ui.MaxVolumes * VtblRecordSize
	return ui
}

func (ui *Info) putECHeader(b []byte, ec uint64) {
	clear(b[:ECHdrSize])
	h := ECHeader{
		Magic:        ECHdrMagic,
		Version:      ui.Version,
		EC:           ec,
		VIDHdrOffset: uint32(ui.VIDHdrOffset),
		DataOffset:   uint32(ui.DataOffset),
		ImageSeq:     ui.ImageSeq,
	}
	h.put(b)
	SealECHeader(b)
}

// ECHeaderBuffer returns a write-sized buffer for an EC header: the header
// followed by 0xFF padding up to the next sub-page boundary.
func (ui *Info) ECHeaderBuffer(ec uint64, subpageSize int) []byte {
	b := make([]byte, alignUp(ECHdrSize, subpageSize))
	for i := range b {
		b[i] = 0xFF
	}
	ui.putECHeader(b, ec)
	return b
}

func (ui *Info) putVIDHeader(b []byte, vi *volInfo, lnum uint32) {
	clear(b[:VIDHdrSize])
	h := VIDHeader{
		Magic:   VIDHdrMagic,
		Version: ui.Version,
		VolType: vi.volType,
		Compat:  vi.compat,
		VolID:   vi.id,
		Lnum:    lnum,
		DataPad: vi.dataPad,
	}
	h.put(b)
	SealVIDHeader(b)
}

func alignUp(n, a int) int {
	if a <= 0 {
		return n
	}
	return (n + a - 1) / a * a
}
