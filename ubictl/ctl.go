// Package ubictl attaches and detaches MTD devices to and from the Linux
// UBI subsystem.
package ubictl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

const (
	// DefaultCtrlPath is the UBI control device.
	DefaultCtrlPath = "/dev/ubi_ctrl"
	// DefaultSysfsRoot lists the attached UBI devices.
	DefaultSysfsRoot = "/sys/class/ubi"
)

// ErrNotSupported is returned on platforms without UBI.
var ErrNotSupported = errors.New("UBI is not supported on this platform")

// Ctl talks to the UBI control device.
type Ctl struct {
	CtrlPath  string
	SysfsRoot string
}

// New returns a Ctl for the standard Linux paths.
func New() *Ctl {
	return &Ctl{CtrlPath: DefaultCtrlPath, SysfsRoot: DefaultSysfsRoot}
}

// Attached returns the number of the UBI device mtdNum is attached to. A
// system without UBI has nothing attached.
func (c *Ctl) Attached(mtdNum int) (int, bool, error) {
	entries, err := os.ReadDir(c.SysfsRoot)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cannot list UBI devices: %w", err)
	}

	for _, e := range entries {
		ubiNum, ok := ubiDevNum(e.Name())
		if !ok {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(c.SysfsRoot, e.Name(), "mtd_num"))
		if err != nil {
			glog.V(1).Infof("skipping %s: %v", e.Name(), err)
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			return 0, false, fmt.Errorf("bad mtd_num of %s: %w", e.Name(), err)
		}
		if n == mtdNum {
			return ubiNum, true, nil
		}
	}
	return 0, false, nil
}

// ubiDevNum parses "ubiN"; volumes show up as "ubiN_M" and are skipped.
func ubiDevNum(name string) (int, bool) {
	if !strings.HasPrefix(name, "ubi") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, "ubi"))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
