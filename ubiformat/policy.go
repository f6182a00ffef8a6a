package ubiformat

import (
	"fmt"

	"github.com/golang/glog"

	"ubiformat/mtd"
	"ubiformat/scan"
	"ubiformat/ubi"
)

// ConfirmFunc asks the operator a yes/no question.
type ConfirmFunc func(question string) bool

func ask(confirm ConfirmFunc, question string) bool {
	return confirm != nil && confirm(question)
}

// Decision is the outcome of the erase counter policy: what every good
// eraseblock will carry and where the UBI headers go.
type Decision struct {
	// ECs holds the erase counter for each eraseblock. Entries of bad
	// blocks are unused.
	ECs []uint64

	// OverrideEC is set when one counter, EC, is used for all blocks.
	OverrideEC bool
	EC         uint64

	SubpageSize int
	Info        *ubi.Info
}

// Decide applies the erase counter policy to a scan of dev. Questions go
// to confirm unless cfg.Yes is set; a negative answer yields
// ErrNeedsConfirmation.
func Decide(info mtd.Info, s *scan.Summary, cfg *Config, confirm ConfirmFunc) (*Decision, error) {
	subpage, err := cfg.Validate(info)
	if err != nil {
		return nil, err
	}

	if s.GoodCount == 0 {
		return nil, fmt.Errorf("%w: %w (%d)", ErrConfig, ErrAllBad, s.BadCount)
	}
	if s.GoodCount < 2 && (!cfg.NoVtbl || cfg.Image != "") {
		return nil, fmt.Errorf("%w: %w (%d) on %s", ErrConfig, ErrTooFewGoodBlocks, s.GoodCount, info.Name)
	}

	if s.AlienCount > 0 {
		glog.Warningf("%d of %d eraseblocks contain non-UBI data", s.AlienCount, s.GoodCount)
		if !cfg.Yes && !ask(confirm, "continue?") {
			return nil, fmt.Errorf("%w: %d eraseblocks contain non-UBI data", ErrNeedsConfirmation, s.AlienCount)
		}
	}

	d := &Decision{
		ECs:         make([]uint64, len(s.Blocks)),
		OverrideEC:  cfg.OverrideEC,
		EC:          cfg.EC,
		SubpageSize: subpage,
	}

	if !d.OverrideEC && s.EmptyCount < s.GoodCount {
		percent := s.OKCount * 100 / s.GoodCount
		switch {
		case percent < MinValidECPercent:
			glog.Warningf("only %d of %d eraseblocks have valid erase counter", s.OKCount, s.GoodCount)
			glog.Infof("erase counter 0 will be used for all eraseblocks")
			glog.Infof("note, arbitrary erase counter value may be specified using -e option")
			if !cfg.Yes && !ask(confirm, "continue?") {
				return nil, fmt.Errorf("%w: only %d of %d erase counters are valid", ErrNeedsConfirmation, s.OKCount, s.GoodCount)
			}
			d.OverrideEC = true
			d.EC = 0
		case percent < MeanECPercent:
			glog.Warningf("only %d of %d eraseblocks have valid erase counter", s.OKCount, s.GoodCount)
			glog.Infof("mean erase counter %d will be used for the rest of eraseblocks", s.MeanEC)
			if !cfg.Yes && !ask(confirm, "continue?") {
				return nil, fmt.Errorf("%w: only %d of %d erase counters are valid", ErrNeedsConfirmation, s.OKCount, s.GoodCount)
			}
		}
	}
	if d.OverrideEC {
		glog.Infof("use erase counter %d for all eraseblocks", d.EC)
	}

	d.Info = ubi.NewInfo(info.EBSize, info.MinIOSize, subpage, cfg.VIDHdrOffset, cfg.version(), cfg.ImageSeq)
	if s.VIDHdrOffset != -1 && s.VIDHdrOffset != d.Info.VIDHdrOffset {
		glog.Warningf("VID header and data offsets on flash are %d and %d, which is different to requested offsets %d and %d",
			s.VIDHdrOffset, s.DataOffset, d.Info.VIDHdrOffset, d.Info.DataOffset)
		if !cfg.Yes && !ask(confirm, fmt.Sprintf("use new offsets %d and %d?", d.Info.VIDHdrOffset, d.Info.DataOffset)) {
			return nil, fmt.Errorf("%w: VID header offset change from %d to %d", ErrNeedsConfirmation, s.VIDHdrOffset, d.Info.VIDHdrOffset)
		}
	}

	for eb, st := range s.Blocks {
		if st.Good() {
			d.ECs[eb] = d.eraseCounter(st, s.MeanEC)
		}
	}
	return d, nil
}

// eraseCounter derives the counter a block carries after the run.
func (d *Decision) eraseCounter(st scan.State, mean uint64) uint64 {
	if d.OverrideEC {
		return d.EC
	}
	if ec, ok := st.ECKnown(); ok && ec <= ubi.MaxEraseCounter {
		return ec + 1
	}
	return mean
}
