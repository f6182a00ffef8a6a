// Package ubiformat prepares a raw flash device for UBI: it keeps erase
// counters across reformats, retires eraseblocks that fail, optionally
// flashes a UBI image and creates the layout volume.
package ubiformat

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/golang/glog"

	"ubiformat/mtd"
	"ubiformat/scan"
)

//go:generate mockgen -destination=mocks/attacher.go -package=mocks ubiformat/ubiformat Attacher

// Scanner produces the per-eraseblock state table of a device.
type Scanner interface {
	Scan(dev mtd.Device) (*scan.Summary, error)
}

// Attacher controls whether an MTD device is attached to UBI.
type Attacher interface {
	// Attached returns the UBI device number mtdNum is attached to.
	Attached(mtdNum int) (ubiNum int, ok bool, err error)
	Detach(ubiNum int) error
	Attach(mtdNum, ubiNum, vidHdrOffset int) error
}

// ScanReporter is implemented by reporters that also show the scan result.
type ScanReporter interface {
	Scanned(s *scan.Summary)
}

type options struct {
	attacher Attacher
	progress Reporter
	layout   LayoutWriter
	stdin    io.Reader
}

// Option customizes Run.
type Option func(*options)

// WithAttacher detaches the device from UBI for the run and attaches it
// again afterwards.
func WithAttacher(a Attacher) Option {
	return func(o *options) { o.attacher = a }
}

// WithProgress reports progress to r.
func WithProgress(r Reporter) Option {
	return func(o *options) { o.progress = r }
}

// WithLayoutWriter replaces the layout volume writer.
func WithLayoutWriter(w LayoutWriter) Option {
	return func(o *options) { o.layout = w }
}

// WithStdin sets the reader used for the image "-".
func WithStdin(r io.Reader) Option {
	return func(o *options) { o.stdin = r }
}

// Run formats dev according to cfg. Errors from every stage are returned
// as they are; nothing already written is rolled back.
func Run(dev mtd.Device, scanner Scanner, cfg Config, confirm ConfirmFunc, opts ...Option) error {
	o := options{progress: nopReporter{}, layout: WriteLayout, stdin: os.Stdin}
	for _, opt := range opts {
		opt(&o)
	}

	info := dev.Info()
	if _, err := cfg.Validate(info); err != nil {
		return err
	}
	if cfg.ImageSeq == 0 {
		cfg.ImageSeq = randomImageSeq()
	}

	var image io.Reader
	if cfg.Image != "" {
		r, size, closer, err := openImage(cfg.Image, cfg.ImageSize, o.stdin)
		if err != nil {
			return err
		}
		defer closer()
		image, cfg.ImageSize = r, size
	}

	ubiNum := -1
	if o.attacher != nil && info.MTDNum >= 0 {
		n, attached, err := o.attacher.Attached(info.MTDNum)
		if err != nil {
			return fmt.Errorf("cannot check whether mtd%d is attached: %w", info.MTDNum, err)
		}
		if attached {
			glog.Infof("detaching mtd%d from ubi%d", info.MTDNum, n)
			if err := o.attacher.Detach(n); err != nil {
				return fmt.Errorf("cannot detach mtd%d from ubi%d: %w", info.MTDNum, n, err)
			}
			ubiNum = n
		}
	}

	summary, err := scanner.Scan(dev)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", info.Name, err)
	}
	logSummary(summary)
	if sr, ok := o.progress.(ScanReporter); ok {
		sr.Scanned(summary)
	}

	decision, err := Decide(info, summary, &cfg, confirm)
	if err != nil {
		return err
	}

	sess := NewSession(dev, summary, decision)
	sess.Yes = cfg.Yes
	sess.Confirm = confirm
	sess.Progress = o.progress
	sess.Layout = o.layout

	if image != nil {
		start, err := sess.FlashImage(image, cfg.ImageSize)
		if err != nil {
			return err
		}
		if err := sess.Format(start, true); err != nil {
			return err
		}
	} else if err := sess.Format(0, cfg.NoVtbl); err != nil {
		return err
	}

	if ubiNum >= 0 {
		glog.Infof("attaching mtd%d to ubi%d", info.MTDNum, ubiNum)
		if err := o.attacher.Attach(info.MTDNum, ubiNum, cfg.VIDHdrOffset); err != nil {
			return fmt.Errorf("cannot attach mtd%d to ubi%d: %w", info.MTDNum, ubiNum, err)
		}
	}
	return nil
}

func openImage(path string, size int64, stdin io.Reader) (io.Reader, int64, func(), error) {
	if path == "-" {
		return stdin, size, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("cannot open image: %w", err)
	}
	if size == 0 {
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, nil, fmt.Errorf("cannot stat image: %w", err)
		}
		size = st.Size()
	}
	return f, size, func() { f.Close() }, nil
}

func randomImageSeq() uint32 {
	for {
		if seq := rand.Uint32(); seq != 0 {
			return seq
		}
	}
}

func logSummary(s *scan.Summary) {
	if s.OKCount != 0 {
		glog.Infof("%d eraseblocks have valid erase counter, mean value is %d", s.OKCount, s.MeanEC)
	}
	if s.EmptyCount != 0 {
		glog.Infof("%d eraseblocks are supposedly empty", s.EmptyCount)
	}
	if s.CorruptedCount != 0 {
		glog.Infof("%d corrupted erase counters", s.CorruptedCount)
	}
	if s.BadCount != 0 {
		glog.Infof("%d bad eraseblocks found, numbers: %v", s.BadCount, s.BadBlocks())
	}
}
