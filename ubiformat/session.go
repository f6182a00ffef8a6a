package ubiformat

import (
	"fmt"

	"github.com/golang/glog"

	"ubiformat/mtd"
	"ubiformat/scan"
	"ubiformat/ubi"
)

// Mark is what happened to an eraseblock during a run.
type Mark int

const (
	MarkWritten Mark = iota
	MarkImage
	MarkLayout
	MarkSkipped
	MarkBad
)

// Reporter receives advisory progress. It never influences the run.
type Reporter interface {
	// Progress is called before eraseblock eb is handled by op.
	Progress(op string, eb, percent int)
	// Marked is called once the fate of eb is settled.
	Marked(eb int, m Mark)
	// Done is called when op has finished.
	Done(op string)
}

type nopReporter struct{}

func (nopReporter) Progress(string, int, int) {}
func (nopReporter) Marked(int, Mark)          {}
func (nopReporter) Done(string)               {}

// LayoutWriter writes both copies of the layout volume into the reserved
// eraseblocks, which are already erased.
type LayoutWriter func(dev mtd.Device, ui *ubi.Info, r *Reservation) error

// WriteLayout writes an empty volume table into the layout volume.
func WriteLayout(dev mtd.Device, ui *ubi.Info, r *Reservation) error {
	return ubi.WriteLayoutVolume(dev, ui, r.PEBs[0], r.PEBs[1], r.ECs[0], r.ECs[1], ui.EmptyVtbl())
}

// Session carries the state of a single format run over one device. It
// is not safe for concurrent use.
type Session struct {
	Device   mtd.Device
	Summary  *scan.Summary
	Decision *Decision
	Tracker  *BadBlockTracker

	// Yes marks bad blocks without asking Confirm.
	Yes      bool
	Confirm  ConfirmFunc
	Progress Reporter
	Layout   LayoutWriter
}

// NewSession prepares a run over dev using the scan s and the policy
// decision d.
func NewSession(dev mtd.Device, s *scan.Summary, d *Decision) *Session {
	return &Session{
		Device:   dev,
		Summary:  s,
		Decision: d,
		Tracker:  NewBadBlockTracker(),
		Progress: nopReporter{},
		Layout:   WriteLayout,
	}
}

// erase erases eb. It returns false when eb failed and was marked bad, in
// which case the caller moves on to the next block.
func (s *Session) erase(eb int) (bool, error) {
	err := s.Device.Erase(eb)
	if err == nil {
		return true, nil
	}
	if !mtd.IsIOError(err) {
		glog.Errorf("failed to erase eraseblock %d: %v", eb, err)
		return false, fmt.Errorf("failed to erase eraseblock %d: %w", eb, err)
	}
	glog.Warningf("failed to erase eraseblock %d: %v", eb, err)
	if err := s.markBad(eb); err != nil {
		return false, err
	}
	return false, nil
}

// recoverWrite handles an I/O error while programming eb: the block is
// tortured and marked bad only if that fails too.
func (s *Session) recoverWrite(eb int) error {
	if err := s.Device.Torture(eb); err != nil {
		glog.Warningf("eraseblock %d failed torture test: %v", eb, err)
		return s.markBad(eb)
	}
	s.Progress.Marked(eb, MarkSkipped)
	return nil
}

func (s *Session) markBad(eb int) error {
	if !s.Yes && !ask(s.Confirm, fmt.Sprintf("mark eraseblock %d as bad?", eb)) {
		return fmt.Errorf("eraseblock %d: %w", eb, ErrBadBlockNotMarked)
	}
	glog.Infof("marking eraseblock %d bad", eb)

	if !s.Device.Info().BadAllowed {
		return fmt.Errorf("eraseblock %d: %w", eb, mtd.ErrBadBlocksUnsupported)
	}
	if err := s.Device.MarkBad(eb); err != nil {
		return fmt.Errorf("cannot mark eraseblock %d bad: %w", eb, err)
	}
	s.Summary.MarkBad(eb)
	s.Progress.Marked(eb, MarkBad)
	if err := s.Tracker.RecordBad(eb); err != nil {
		glog.Errorf("%v", err)
		return err
	}
	return nil
}
