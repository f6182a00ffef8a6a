package ubiformat

import "fmt"

// BadBlockTracker counts eraseblocks that go bad one right after another
// during a run. A long enough run points at broken hardware or a driver
// problem rather than ordinary wear.
type BadBlockTracker struct {
	prev  int
	run   int
	limit int
}

// NewBadBlockTracker returns a tracker that trips after
// MaxConsecutiveBadBlocks adjacent bad blocks.
func NewBadBlockTracker() *BadBlockTracker {
	return &BadBlockTracker{prev: -1, limit: MaxConsecutiveBadBlocks}
}

// RecordBad notes that eb has just been marked bad.
func (t *BadBlockTracker) RecordBad(eb int) error {
	if t.prev != -1 && eb == t.prev+1 {
		t.run++
	} else {
		t.run = 1
	}
	t.prev = eb

	if t.run >= t.limit {
		return fmt.Errorf("%w: %d", ErrTooManyConsecutiveBadBlocks, t.limit)
	}
	return nil
}
