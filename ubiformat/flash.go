package ubiformat

import (
	"fmt"
	"io"

	"github.com/golang/glog"

	"ubiformat/mtd"
)

// FlashImage writes a UBI image of size bytes from r to the good
// eraseblocks of the device, one image eraseblock per device eraseblock.
// Only the EC header of each chunk is rewritten, with this run's image
// sequence number and the block's erase counter. It returns the first
// eraseblock after the image.
func (s *Session) FlashImage(r io.Reader, size int64) (int, error) {
	info := s.Device.Info()
	if size <= 0 || size%int64(info.EBSize) != 0 {
		return 0, fmt.Errorf("%w: image of %d bytes is not a multiple of eraseblock size (%d bytes)", ErrImageSize, size, info.EBSize)
	}
	imgEBs := int(size / int64(info.EBSize))
	if imgEBs > s.Summary.GoodCount {
		return 0, fmt.Errorf("%w: %d bytes need %d eraseblocks, %d are good", ErrImageTooLarge, size, imgEBs, s.Summary.GoodCount)
	}
	glog.V(1).Infof("will write %d eraseblocks", imgEBs)

	buf := make([]byte, info.EBSize)
	written := 0
	// pending keeps the chunk of a failed write for the next block.
	pending := false

	eb := 0
	for ; eb < info.EBCount && written < imgEBs; eb++ {
		s.Progress.Progress("flashing", eb, written*100/imgEBs)
		if !s.Summary.Blocks[eb].Good() {
			continue
		}

		glog.V(1).Infof("eraseblock %d: erase", eb)
		ok, err := s.erase(eb)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}

		if !pending {
			if _, err := io.ReadFull(r, buf); err != nil {
				return 0, fmt.Errorf("failed to read eraseblock %d of the image: %w", written, err)
			}
		}
		pending = false

		ec := s.Decision.ECs[eb]
		if err := RewriteHeader(buf, s.Decision.Info.ImageSeq, ec); err != nil {
			return 0, fmt.Errorf("bad EC header at eraseblock %d of the image: %w", written, err)
		}

		n := DropFFs(buf, info.MinIOSize)
		glog.V(1).Infof("eraseblock %d: change EC to %d, write %d bytes", eb, ec, n)
		if n > 0 {
			if err := s.Device.Write(eb, 0, buf[:n]); err != nil {
				glog.Warningf("cannot write eraseblock %d: %v", eb, err)
				if !mtd.IsIOError(err) {
					return 0, fmt.Errorf("cannot write eraseblock %d: %w", eb, err)
				}
				if err := s.recoverWrite(eb); err != nil {
					return 0, err
				}
				pending = true
				continue
			}
		}
		s.Progress.Marked(eb, MarkImage)
		written++
	}
	s.Progress.Done("flashing")

	if written < imgEBs {
		return 0, fmt.Errorf("%w: only %d of %d eraseblocks written", ErrImageTooLarge, written, imgEBs)
	}
	return eb, nil
}
