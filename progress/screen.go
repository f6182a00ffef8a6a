// Package progress renders the progress of a format run, either as a
// single updating text line or as a full-screen eraseblock map.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"ubiformat/scan"
	"ubiformat/ubiformat"
)

var kindGlyph = map[scan.Kind]rune{
	scan.Valid:     'o',
	scan.Empty:     '.',
	scan.Corrupted: 'c',
	scan.Alien:     'a',
	scan.Bad:       'B',
}

var markGlyph = map[ubiformat.Mark]rune{
	ubiformat.MarkWritten: 'W',
	ubiformat.MarkImage:   'I',
	ubiformat.MarkLayout:  'L',
	ubiformat.MarkSkipped: 'S',
	ubiformat.MarkBad:     'X',
}

const legend = "o valid  . empty  c corrupted  a alien  B bad  W written  I image  L layout  S skipped  X marked bad"

// Screen shows one cell per eraseblock on a full-screen terminal UI. It
// implements ubiformat.Reporter and ubiformat.ScanReporter.
type Screen struct {
	s    tcell.Screen
	stop chan struct{}
	once sync.Once

	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	title   string
	summary []string
	phases  []string
	done    map[string]bool
	cells   []rune
	status  string

	lastDraw time.Time
	drawn    bool
}

// NewScreen takes over the terminal for a device of ebCount eraseblocks.
// phases lists the operations shown with a check mark once done.
func NewScreen(title string, ebCount int, phases ...string) (*Screen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return newScreen(s, title, ebCount, phases)
}

func newScreen(s tcell.Screen, title string, ebCount int, phases []string) (*Screen, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()
	u := &Screen{
		s:        s,
		stop:     make(chan struct{}),
		interval: DefaultInterval,
		now:      time.Now,
		title:    title,
		phases:   append([]string(nil), phases...),
		done:     make(map[string]bool),
		cells:    []rune(strings.Repeat(" ", ebCount)),
	}
	go u.eventLoop()
	u.draw()
	return u, nil
}

// Close restores the terminal.
func (u *Screen) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Fini()
	u.s = nil
	fmt.Print("\033[?1049l\033[?25h")
}

// Stopped is closed once q, Esc or Ctrl-C is pressed.
func (u *Screen) Stopped() <-chan struct{} { return u.stop }

// Wait keeps the final map on screen until a key is pressed or d has
// passed. It reports whether a key ended the wait.
func (u *Screen) Wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-u.stop:
		return true
	case <-timer.C:
		return false
	}
}

func (u *Screen) requestStop() {
	u.once.Do(func() { close(u.stop) })
}

// Scanned implements ubiformat.ScanReporter.
func (u *Screen) Scanned(s *scan.Summary) {
	u.mu.Lock()
	for eb, st := range s.Blocks {
		if eb < len(u.cells) {
			u.cells[eb] = kindGlyph[st.Kind]
		}
	}
	u.summary = []string{
		fmt.Sprintf("%d eraseblocks: %d good, %d bad", len(s.Blocks), s.GoodCount, s.BadCount),
		fmt.Sprintf("%d valid erase counters (mean %d), %d empty, %d corrupted, %d alien",
			s.OKCount, s.MeanEC, s.EmptyCount, s.CorruptedCount, s.AlienCount),
	}
	u.done["scanning"] = true
	u.mu.Unlock()
	u.draw()
}

// Progress implements ubiformat.Reporter. The screen is redrawn at most
// once per DefaultInterval.
func (u *Screen) Progress(op string, eb, percent int) {
	u.mu.Lock()
	u.status = fmt.Sprintf("%s eraseblock %d -- %2d %% complete", op, eb, percent)
	now := u.now()
	if u.drawn && now.Sub(u.lastDraw) < u.interval {
		u.mu.Unlock()
		return
	}
	u.lastDraw = now
	u.drawn = true
	u.mu.Unlock()
	u.draw()
}

// Marked implements ubiformat.Reporter.
func (u *Screen) Marked(eb int, m ubiformat.Mark) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if eb >= 0 && eb < len(u.cells) {
		u.cells[eb] = markGlyph[m]
	}
}

// Done implements ubiformat.Reporter.
func (u *Screen) Done(op string) {
	u.mu.Lock()
	u.done[op] = true
	u.status = op + " done"
	u.mu.Unlock()
	u.draw()
}

// SetStatus replaces the status line.
func (u *Screen) SetStatus(line string) {
	u.mu.Lock()
	u.status = line
	u.mu.Unlock()
	u.draw()
}

func putStr(s tcell.Screen, x, y int, str string) {
	w, _ := s.Size()
	for i, r := range []rune(str) {
		if x+i >= w {
			break
		}
		s.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}

// mapLines wraps the cells into rows of width w.
func (u *Screen) mapLines(w int) []string {
	if w <= 0 {
		return nil
	}
	var lines []string
	for i := 0; i < len(u.cells); i += w {
		end := min(i+w, len(u.cells))
		lines = append(lines, string(u.cells[i:end]))
	}
	return lines
}

func (u *Screen) draw() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Clear()
	w, h := u.s.Size()
	y := 0

	if u.title != "" {
		putStr(u.s, 0, y, strings.Repeat("═", w))
		putStr(u.s, max((w-len(u.title))/2, 0), y, u.title)
		y++
	}
	for _, line := range append(append([]string(nil), u.summary...), legend) {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line)
		y++
	}

	// leave room for the phase and status blocks
	rows := u.mapLines(w)
	avail := max(h-y-4, 1)
	for i := 0; i < len(rows) && i < avail && y < h; i++ {
		putStr(u.s, 0, y, rows[i])
		y++
	}

	if len(u.phases) > 0 {
		putStr(u.s, 0, y, strings.Repeat("─", w))
		putStr(u.s, 2, y, " Phase ")
		y++
		var b strings.Builder
		for i, p := range u.phases {
			if i > 0 {
				b.WriteByte(' ')
			}
			mark := ' '
			if u.done[strings.ToLower(p)] {
				mark = '✓'
			}
			fmt.Fprintf(&b, "[%c]%s", mark, p)
		}
		putStr(u.s, 0, y, b.String())
		y++
	}

	putStr(u.s, 0, y, strings.Repeat("─", w))
	putStr(u.s, 2, y, " Status ")
	y++
	putStr(u.s, 0, y, u.status)

	u.s.Show()
}

func (u *Screen) eventLoop() {
	for {
		u.mu.Lock()
		s := u.s
		u.mu.Unlock()
		if s == nil {
			return
		}
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC, ev.Key() == tcell.KeyEscape:
				u.requestStop()
			case ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				u.requestStop()
			}
		case *tcell.EventResize:
			s.Sync()
			u.draw()
		case nil:
			return
		}
	}
}
