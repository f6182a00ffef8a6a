package ubiformat

import (
	"fmt"

	"github.com/golang/glog"

	"ubiformat/mtd"
)

// Reservation holds the two eraseblocks set aside for the layout volume
// and the erase counters they will carry.
type Reservation struct {
	PEBs [2]int
	ECs  [2]uint64
	n    int
}

// Len returns the number of reserved eraseblocks.
func (r *Reservation) Len() int { return r.n }

// Full reports whether both copies have a block.
func (r *Reservation) Full() bool { return r.n == len(r.PEBs) }

func (r *Reservation) add(eb int, ec uint64) {
	r.PEBs[r.n] = eb
	r.ECs[r.n] = ec
	r.n++
}

// Format erases every good eraseblock from startEB on and writes a fresh
// EC header to it. Unless novtbl is set, the first two blocks that erase
// cleanly are kept for the layout volume, which is written last.
func (s *Session) Format(startEB int, novtbl bool) error {
	info := s.Device.Info()
	ui := s.Decision.Info

	hdr := ui.ECHeaderBuffer(0, s.Decision.SubpageSize)
	var res Reservation

	for eb := startEB; eb < info.EBCount; eb++ {
		s.Progress.Progress("formatting", eb, eb*100/info.EBCount)
		if !s.Summary.Blocks[eb].Good() {
			continue
		}
		ec := s.Decision.ECs[eb]

		glog.V(1).Infof("eraseblock %d: erase", eb)
		ok, err := s.erase(eb)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if !novtbl && !res.Full() {
			res.add(eb, ec)
			glog.V(1).Infof("eraseblock %d: do not write EC, leave for vtbl", eb)
			s.Progress.Marked(eb, MarkLayout)
			continue
		}

		if err := RewriteHeader(hdr, ui.ImageSeq, ec); err != nil {
			return err
		}
		glog.V(1).Infof("eraseblock %d: write EC %d", eb, ec)
		if err := s.Device.Write(eb, 0, hdr); err != nil {
			glog.Warningf("cannot write EC header (%d bytes buffer) to eraseblock %d: %v", len(hdr), eb, err)
			if !mtd.IsIOError(err) {
				if s.Decision.SubpageSize != info.MinIOSize {
					glog.Infof("may be sub-page size is incorrect?")
				}
				return fmt.Errorf("cannot write EC header to eraseblock %d: %w", eb, err)
			}
			if err := s.recoverWrite(eb); err != nil {
				return err
			}
			continue
		}
		s.Progress.Marked(eb, MarkWritten)
	}
	s.Progress.Done("formatting")

	if novtbl {
		return nil
	}
	if !res.Full() {
		return fmt.Errorf("%w: %d of %d reserved", ErrNoSpaceForLayout, res.Len(), len(res.PEBs))
	}
	glog.V(1).Infof("write volume table to eraseblocks %d and %d", res.PEBs[0], res.PEBs[1])
	if err := s.Layout(s.Device, ui, &res); err != nil {
		return fmt.Errorf("cannot write layout volume: %w", err)
	}
	return nil
}
