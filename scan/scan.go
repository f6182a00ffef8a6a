// Package scan reads the erase counter header of every eraseblock of a
// flash device and classifies the blocks.
package scan

import (
	"fmt"

	"github.com/golang/glog"

	"ubiformat/mtd"
	"ubiformat/ubi"
)

// Kind classifies one eraseblock.
type Kind int

const (
	// Valid blocks carry a well-formed EC header.
	Valid Kind = iota
	// Empty blocks read back as erased.
	Empty
	// Corrupted blocks have the UBI magic but a bad CRC or an impossible
	// erase counter.
	Corrupted
	// Alien blocks contain data that is not UBI.
	Alien
	// Bad blocks are marked bad in the flash bad block table.
	Bad
)

func (k Kind) String() string {
	switch k {
	case Valid:
		return "valid"
	case Empty:
		return "empty"
	case Corrupted:
		return "corrupted"
	case Alien:
		return "alien"
	case Bad:
		return "bad"
	default:
		return "unknown"
	}
}

// State is the scan result for one eraseblock. EC is meaningful only for
// Valid blocks.
type State struct {
	Kind Kind
	EC   uint64
}

// Good reports whether the block is not bad.
func (s State) Good() bool { return s.Kind != Bad }

// ECKnown returns the erase counter and whether it is known.
func (s State) ECKnown() (uint64, bool) {
	return s.EC, s.Kind == Valid
}

// Summary aggregates the scan of a whole device.
type Summary struct {
	Blocks []State

	GoodCount      int
	BadCount       int
	OKCount        int
	EmptyCount     int
	CorruptedCount int
	AlienCount     int
	MeanEC         uint64

	// VIDHdrOffset and DataOffset are taken from the first valid header,
	// or -1 when no block carried one.
	VIDHdrOffset int
	DataOffset   int
}

// MarkBad records that eb went bad after the scan.
func (s *Summary) MarkBad(eb int) {
	if s.Blocks[eb].Kind == Bad {
		return
	}
	s.Blocks[eb] = State{Kind: Bad}
	s.BadCount++
	s.GoodCount--
}

// BadBlocks lists the indices of bad eraseblocks.
func (s *Summary) BadBlocks() []int {
	var out []int
	for eb, st := range s.Blocks {
		if st.Kind == Bad {
			out = append(out, eb)
		}
	}
	return out
}

// Scanner classifies every eraseblock of a device.
type Scanner struct{}

// New returns a Scanner.
func New() *Scanner { return &Scanner{} }

// Scan reads the EC header of each good eraseblock of dev.
func (sc *Scanner) Scan(dev mtd.Device) (*Summary, error) {
	info := dev.Info()
	s := &Summary{
		Blocks:       make([]State, info.EBCount),
		VIDHdrOffset: -1,
		DataOffset:   -1,
	}

	buf := make([]byte, ubi.ECHdrSize)
	var sum uint64
	for eb := 0; eb < info.EBCount; eb++ {
		bad, err := dev.IsBad(eb)
		if err != nil {
			return nil, fmt.Errorf("cannot check eraseblock %d: %w", eb, err)
		}
		if bad {
			s.BadCount++
			s.Blocks[eb] = State{Kind: Bad}
			glog.V(1).Infof("eraseblock %d: bad", eb)
			continue
		}

		if err := dev.Read(eb, 0, buf); err != nil {
			return nil, fmt.Errorf("cannot read EC header from eraseblock %d: %w", eb, err)
		}
		st := s.classify(eb, buf)
		s.Blocks[eb] = st
		switch st.Kind {
		case Valid:
			s.OKCount++
			sum += st.EC
		case Empty:
			s.EmptyCount++
		case Corrupted:
			s.CorruptedCount++
		case Alien:
			s.AlienCount++
		}
		glog.V(1).Infof("eraseblock %d: %s", eb, st.Kind)
	}

	if s.OKCount != 0 {
		s.MeanEC = sum / uint64(s.OKCount)
	}
	s.GoodCount = info.EBCount - s.BadCount
	return s, nil
}

func (s *Summary) classify(eb int, buf []byte) State {
	var h ubi.ECHeader
	_ = h.UnmarshalBinary(buf)

	if h.Magic != ubi.ECHdrMagic {
		if ubi.AllFF(buf) {
			return State{Kind: Empty}
		}
		return State{Kind: Alien}
	}
	if crc := ubi.ECHeaderCRC(buf); crc != h.HdrCRC {
		glog.V(1).Infof("eraseblock %d: bad EC header CRC %#08x, calculated %#08x", eb, h.HdrCRC, crc)
		return State{Kind: Corrupted}
	}
	if h.Version != ubi.Version {
		glog.V(1).Infof("eraseblock %d: unsupported UBI version %d", eb, h.Version)
		return State{Kind: Corrupted}
	}
	if h.EC > ubi.MaxEraseCounter {
		glog.V(1).Infof("eraseblock %d: erase counter %d exceeds maximum", eb, h.EC)
		return State{Kind: Corrupted}
	}

	if s.VIDHdrOffset == -1 {
		s.VIDHdrOffset = int(h.VIDHdrOffset)
		s.DataOffset = int(h.DataOffset)
	} else if int(h.VIDHdrOffset) != s.VIDHdrOffset || int(h.DataOffset) != s.DataOffset {
		glog.Warningf("eraseblock %d: VID header offset %d and data offset %d differ from %d and %d seen before",
			eb, h.VIDHdrOffset, h.DataOffset, s.VIDHdrOffset, s.DataOffset)
	}
	return State{Kind: Valid, EC: h.EC}
}
