package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ubiformat/scan"
	"ubiformat/ubiformat"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTextRateLimits(t *testing.T) {
	var out bytes.Buffer
	clk := &fakeClock{t: time.Unix(1000, 0)}
	txt := NewText(&out)
	txt.now = clk.now

	txt.Progress("formatting", 0, 0)
	txt.Progress("formatting", 1, 10)
	txt.Progress("formatting", 2, 20)
	assert.Equal(t, "\rformatting eraseblock 0 --  0 % complete  ", out.String())

	clk.advance(DefaultInterval)
	txt.Progress("formatting", 3, 30)
	assert.True(t, strings.HasSuffix(out.String(), "\rformatting eraseblock 3 -- 30 % complete  "))

	txt.Done("formatting")
	assert.True(t, strings.HasSuffix(out.String(), "\rformatting eraseblock 3 -- 100 % complete  \n"))

	// a new operation starts a fresh line right away
	txt.Progress("flashing", 0, 0)
	assert.True(t, strings.HasSuffix(out.String(), "\rflashing eraseblock 0 --  0 % complete  "))
}

func TestTextDoneWithoutProgress(t *testing.T) {
	var out bytes.Buffer
	NewText(&out).Done("formatting")
	assert.Empty(t, out.String())
}

func row(t *testing.T, sim tcell.SimulationScreen, y int) string {
	t.Helper()
	cells, w, _ := sim.GetContents()
	var b strings.Builder
	for x := 0; x < w; x++ {
		c := cells[y*w+x]
		if len(c.Runes) == 0 {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(c.Runes[0])
	}
	return strings.TrimRight(b.String(), " ")
}

func screenText(t *testing.T, sim tcell.SimulationScreen) []string {
	t.Helper()
	_, _, h := sim.GetContents()
	lines := make([]string, h)
	for y := range lines {
		lines[y] = row(t, sim, y)
	}
	return lines
}

func newSimScreen(t *testing.T, ebCount int) (*Screen, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	u, err := newScreen(sim, "ubiformat", ebCount, []string{"scanning", "formatting"})
	require.NoError(t, err)
	sim.SetSize(60, 16)
	t.Cleanup(u.Close)
	return u, sim
}

func TestScreenRateLimitsProgress(t *testing.T) {
	u, sim := newSimScreen(t, 8)
	clk := &fakeClock{t: time.Unix(1000, 0)}
	u.now = clk.now

	u.Progress("formatting", 0, 0)
	u.Progress("formatting", 1, 12)
	lines := screenText(t, sim)
	assert.Contains(t, lines, "formatting eraseblock 0 --  0 % complete")
	assert.NotContains(t, lines, "formatting eraseblock 1 -- 12 % complete")

	clk.advance(DefaultInterval)
	u.Progress("formatting", 2, 25)
	assert.Contains(t, screenText(t, sim), "formatting eraseblock 2 -- 25 % complete")

	// Done is always drawn
	u.Progress("formatting", 7, 87)
	u.Done("formatting")
	assert.Contains(t, screenText(t, sim), "formatting done")
}

func TestScreenDrawsEraseblockMap(t *testing.T) {
	u, sim := newSimScreen(t, 24)

	s := &scan.Summary{Blocks: make([]scan.State, 24), GoodCount: 23, BadCount: 1}
	for eb := range s.Blocks {
		s.Blocks[eb] = scan.State{Kind: scan.Empty}
	}
	s.Blocks[3] = scan.State{Kind: scan.Bad}
	u.Scanned(s)

	u.Marked(0, ubiformat.MarkLayout)
	u.Marked(1, ubiformat.MarkLayout)
	u.Marked(2, ubiformat.MarkWritten)
	u.Marked(21, ubiformat.MarkBad)
	u.Progress("formatting", 22, 91)

	lines := screenText(t, sim)
	assert.Contains(t, lines, "LLWB"+strings.Repeat(".", 17)+"X..")
	assert.Contains(t, lines, "formatting eraseblock 22 -- 91 % complete")
	assert.Contains(t, lines, "24 eraseblocks: 23 good, 1 bad")

	u.Done("formatting")
	assert.Contains(t, screenText(t, sim), "formatting done")
	assert.True(t, u.done["scanning"])
	assert.True(t, u.done["formatting"])
}

func TestScreenWaitsForKey(t *testing.T) {
	u, sim := newSimScreen(t, 4)
	assert.False(t, u.Wait(time.Millisecond))

	sim.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	assert.True(t, u.Wait(5*time.Second))
}
