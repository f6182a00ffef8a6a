//go:build !linux

package ubictl

// Detach is not supported outside Linux.
func (c *Ctl) Detach(ubiNum int) error { return ErrNotSupported }

// Attach is not supported outside Linux.
func (c *Ctl) Attach(mtdNum, ubiNum, vidHdrOffset int) error { return ErrNotSupported }
