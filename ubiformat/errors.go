package ubiformat

import "errors"

// Configuration errors are detected before any eraseblock is touched.
var (
	ErrConfig           = errors.New("invalid configuration")
	ErrAllBad           = errors.New("all eraseblocks are bad")
	ErrTooFewGoodBlocks = errors.New("too few non-bad eraseblocks")

	// ErrNeedsConfirmation is returned when the run would proceed only
	// after the operator agrees. Re-running with Config.Yes skips the
	// question.
	ErrNeedsConfirmation = errors.New("operation not confirmed")
)

// Run-time errors. The device may already be partially formatted when
// one of these is returned.
var (
	ErrTooManyConsecutiveBadBlocks = errors.New("consecutive bad blocks exceed limit, bad flash?")
	ErrNoSpaceForLayout            = errors.New("no eraseblocks for volume table")
	ErrBadBlockNotMarked           = errors.New("bad block not marked")
	ErrImageSize                   = errors.New("bad image size")
	ErrImageTooLarge               = errors.New("image is too large")
)

// Header errors mean the buffer handed in is not an EC header. They are
// programming or input errors, never flash faults.
var (
	ErrBadMagic = errors.New("bad UBI magic")
	ErrBadCRC   = errors.New("bad EC header CRC")
)
