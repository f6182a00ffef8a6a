//go:build !linux

package mtd

import (
	"errors"
	"path/filepath"
	"strings"
)

// CharDevice is only available on Linux.
type CharDevice struct {
	ImageDevice
}

// IsCharDevicePath reports whether path names an MTD character device.
func IsCharDevicePath(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "mtd") && strings.HasPrefix(path, "/dev/")
}

// OpenCharDevice fails on platforms without the MTD subsystem.
func OpenCharDevice(path string) (*CharDevice, error) {
	return nil, errors.New("MTD character devices are only supported on Linux")
}
