package progress

import (
	"fmt"
	"io"
	"time"

	"ubiformat/ubiformat"
)

// DefaultInterval limits how often Text redraws its line.
const DefaultInterval = 100 * time.Millisecond

// Text prints a single self-overwriting progress line per operation.
type Text struct {
	w        io.Writer
	interval time.Duration
	now      func() time.Time

	last   time.Time
	lastEB int
	open   bool
}

// NewText returns a Text reporter writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w, interval: DefaultInterval, now: time.Now}
}

// Progress implements ubiformat.Reporter.
func (t *Text) Progress(op string, eb, percent int) {
	t.lastEB = eb
	now := t.now()
	if t.open && now.Sub(t.last) < t.interval {
		return
	}
	t.last = now
	t.open = true
	fmt.Fprintf(t.w, "\r%s eraseblock %d -- %2d %% complete  ", op, eb, percent)
}

// Marked implements ubiformat.Reporter.
func (t *Text) Marked(int, ubiformat.Mark) {}

// Done implements ubiformat.Reporter.
func (t *Text) Done(op string) {
	if !t.open {
		return
	}
	fmt.Fprintf(t.w, "\r%s eraseblock %d -- 100 %% complete  \n", op, t.lastEB)
	t.open = false
}
