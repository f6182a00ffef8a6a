package mtd

import (
	"fmt"

	"github.com/golang/glog"
)

var torturePatterns = []byte{0xA5, 0x5A, 0x00}

// Torture runs the erase/program/verify sequence on eb using the plain
// Erase, Read and Write operations of dev. Verification mismatches are
// reported as ErrIO.
func Torture(dev Device, eb int) error {
	size := dev.Info().EBSize
	buf := make([]byte, size)

	glog.Infof("run torture test for eraseblock %d", eb)
	for _, patt := range torturePatterns {
		if err := dev.Erase(eb); err != nil {
			return err
		}
		if err := dev.Read(eb, 0, buf); err != nil {
			return err
		}
		if i := firstMismatch(buf, 0xFF); i >= 0 {
			return fmt.Errorf("erased eraseblock %d, but byte %d is %#02x: %w", eb, i, buf[i], ErrIO)
		}

		fill(buf, patt)
		if err := dev.Write(eb, 0, buf); err != nil {
			return err
		}
		fill(buf, ^patt)
		if err := dev.Read(eb, 0, buf); err != nil {
			return err
		}
		if i := firstMismatch(buf, patt); i >= 0 {
			return fmt.Errorf("pattern %#02x checking failed for eraseblock %d at byte %d: %w", patt, eb, i, ErrIO)
		}
	}

	glog.Infof("eraseblock %d passed torture test, do not mark it bad", eb)
	return nil
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

func firstMismatch(b []byte, v byte) int {
	for i, c := range b {
		if c != v {
			return i
		}
	}
	return -1
}
