package ubiformat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ubiformat/mtd"
	"ubiformat/scan"
	"ubiformat/ubi"
)

const (
	testEBSize  = 16384
	testMinIO   = 512
	testSubpage = 512
)

func newDevice(t *testing.T, blocks int) *mtd.MemDevice {
	t.Helper()
	d, err := mtd.NewMemDevice(mtd.Info{
		EBSize:      testEBSize,
		MinIOSize:   testMinIO,
		SubpageSize: testSubpage,
		EBCount:     blocks,
		BadAllowed:  true,
	})
	require.NoError(t, err)
	return d
}

func testUBIInfo(imageSeq uint32) *ubi.Info {
	return ubi.NewInfo(testEBSize, testMinIO, testSubpage, 0, ubi.Version, imageSeq)
}

// ecHeader reads and checks the EC header of eb.
func ecHeader(t *testing.T, d mtd.Device, eb int) (ubi.ECHeader, bool) {
	t.Helper()
	buf := make([]byte, ubi.ECHdrSize)
	require.NoError(t, d.Read(eb, 0, buf))
	var h ubi.ECHeader
	require.NoError(t, h.UnmarshalBinary(buf))
	return h, h.Magic == ubi.ECHdrMagic && h.HdrCRC == ubi.ECHeaderCRC(buf)
}

// vidHeader reads and checks the VID header of eb.
func vidHeader(t *testing.T, d mtd.Device, ui *ubi.Info, eb int) (ubi.VIDHeader, bool) {
	t.Helper()
	buf := make([]byte, ubi.VIDHdrSize)
	require.NoError(t, d.Read(eb, ui.VIDHdrOffset, buf))
	var h ubi.VIDHeader
	require.NoError(t, h.UnmarshalBinary(buf))
	return h, h.Magic == ubi.VIDHdrMagic && h.HdrCRC == ubi.VIDHeaderCRC(buf)
}

func mustScan(t *testing.T, d mtd.Device) *scan.Summary {
	t.Helper()
	s, err := scan.New().Scan(d)
	require.NoError(t, err)
	return s
}

func newTestSession(t *testing.T, d mtd.Device, cfg Config) *Session {
	t.Helper()
	s := mustScan(t, d)
	dec, err := Decide(d.Info(), s, &cfg, nil)
	require.NoError(t, err)
	sess := NewSession(d, s, dec)
	sess.Yes = true
	return sess
}

// recorder collects the marks reported during a run.
type recorder struct {
	marks map[int]Mark
	done  []string
}

func newRecorder() *recorder { return &recorder{marks: make(map[int]Mark)} }

func (r *recorder) Progress(string, int, int) {}
func (r *recorder) Marked(eb int, m Mark)     { r.marks[eb] = m }
func (r *recorder) Done(op string)            { r.done = append(r.done, op) }
