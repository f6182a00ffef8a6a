package ubiformat

import (
	"fmt"

	"ubiformat/mtd"
	"ubiformat/ubi"
)

// Thresholds that decide how erase counters survive a reformat. Devices
// formatted by other UBI tools rely on the same values.
const (
	// MaxConsecutiveBadBlocks newly bad blocks in a row abort the run.
	MaxConsecutiveBadBlocks = 4
	// Below MinValidECPercent valid counters every block restarts at 0.
	MinValidECPercent = 50
	// Below MeanECPercent valid counters the run needs confirmation and
	// blocks without a counter take the mean.
	MeanECPercent = 95
)

// Config describes one format run.
type Config struct {
	// Image is the path of a UBI image to flash, "-" for standard input.
	Image string
	// ImageSize is required for standard input and optional otherwise.
	ImageSize int64

	// OverrideEC makes every block carry EC instead of its own counter.
	OverrideEC bool
	EC         uint64

	// VIDHdrOffset of 0 means right after the EC header.
	VIDHdrOffset int
	// SubpageSize of 0 uses the device sub-page size.
	SubpageSize int
	UBIVersion  int
	// ImageSeq of 0 picks a random value.
	ImageSeq uint32

	// NoVtbl leaves out the layout volume.
	NoVtbl bool
	// Yes answers every question with yes.
	Yes bool
}

// Validate checks c against the device geometry and returns the sub-page
// size to use. Nothing is written when it fails.
func (c *Config) Validate(info mtd.Info) (int, error) {
	if !info.Writable {
		return 0, fmt.Errorf("%w: %s is a read-only device", ErrConfig, info.Name)
	}
	if info.MinIOSize <= 0 || info.MinIOSize&(info.MinIOSize-1) != 0 {
		return 0, fmt.Errorf("%w: min. I/O size is %d, but should be power of 2", ErrConfig, info.MinIOSize)
	}

	subpage := info.SubpageSize
	if c.SubpageSize != 0 && c.SubpageSize != info.SubpageSize {
		if c.SubpageSize > info.MinIOSize {
			return 0, fmt.Errorf("%w: sub-page %d cannot be larger than min. I/O unit %d", ErrConfig, c.SubpageSize, info.MinIOSize)
		}
		if c.SubpageSize < 0 || info.MinIOSize%c.SubpageSize != 0 {
			return 0, fmt.Errorf("%w: min. I/O unit size %d should be multiple of sub-page size %d", ErrConfig, info.MinIOSize, c.SubpageSize)
		}
		subpage = c.SubpageSize
	}

	if c.VIDHdrOffset != 0 {
		if c.VIDHdrOffset < 0 || c.VIDHdrOffset%8 != 0 {
			return 0, fmt.Errorf("%w: VID header offset %d has to be multiple of 8", ErrConfig, c.VIDHdrOffset)
		}
		if c.VIDHdrOffset+ubi.VIDHdrSize > info.EBSize {
			return 0, fmt.Errorf("%w: bad VID header offset %d", ErrConfig, c.VIDHdrOffset)
		}
	}

	if c.OverrideEC && c.EC > ubi.MaxEraseCounter {
		return 0, fmt.Errorf("%w: erase counter %d exceeds %d", ErrConfig, c.EC, uint64(ubi.MaxEraseCounter))
	}
	if c.UBIVersion < 0 || c.UBIVersion > 255 {
		return 0, fmt.Errorf("%w: bad UBI version %d", ErrConfig, c.UBIVersion)
	}
	if c.Image == "-" && c.ImageSize <= 0 {
		return 0, fmt.Errorf("%w: image size is required when reading the image from standard input", ErrConfig)
	}
	return subpage, nil
}

func (c *Config) version() uint8 {
	if c.UBIVersion == 0 {
		return ubi.Version
	}
	return uint8(c.UBIVersion)
}
