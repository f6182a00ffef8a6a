package ubiformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ubiformat/mtd"
	"ubiformat/scan"
	"ubiformat/ubi"
)

func testMTDInfo(blocks int) mtd.Info {
	return mtd.Info{
		Name:        "test",
		Type:        "nand",
		MTDNum:      -1,
		EBSize:      testEBSize,
		MinIOSize:   testMinIO,
		SubpageSize: testSubpage,
		EBCount:     blocks,
		BadAllowed:  true,
		Writable:    true,
	}
}

// summaryOf aggregates states the way the scanner does.
func summaryOf(states ...scan.State) *scan.Summary {
	s := &scan.Summary{Blocks: states, VIDHdrOffset: -1, DataOffset: -1}
	var sum uint64
	for _, st := range states {
		switch st.Kind {
		case scan.Bad:
			s.BadCount++
			continue
		case scan.Valid:
			s.OKCount++
			sum += st.EC
		case scan.Empty:
			s.EmptyCount++
		case scan.Corrupted:
			s.CorruptedCount++
		case scan.Alien:
			s.AlienCount++
		}
		s.GoodCount++
	}
	if s.OKCount != 0 {
		s.MeanEC = sum / uint64(s.OKCount)
	}
	return s
}

func repeat(st scan.State, n int) []scan.State {
	out := make([]scan.State, n)
	for i := range out {
		out[i] = st
	}
	return out
}

func valid(ec uint64) scan.State { return scan.State{Kind: scan.Valid, EC: ec} }

var (
	empty     = scan.State{Kind: scan.Empty}
	corrupted = scan.State{Kind: scan.Corrupted}
	alien     = scan.State{Kind: scan.Alien}
	bad       = scan.State{Kind: scan.Bad}
)

func yes(string) bool { return true }

func TestDecideErrors(t *testing.T) {
	tests := []struct {
		name    string
		info    func(mtd.Info) mtd.Info
		states  []scan.State
		cfg     Config
		confirm ConfirmFunc
		want    []error
	}{
		{
			name:   "all bad",
			states: repeat(bad, 4),
			want:   []error{ErrConfig, ErrAllBad},
		},
		{
			name:   "one good block needs two for the layout volume",
			states: []scan.State{bad, empty, bad},
			want:   []error{ErrConfig, ErrTooFewGoodBlocks},
		},
		{
			name:   "one good block with an image",
			states: []scan.State{bad, empty, bad},
			cfg:    Config{NoVtbl: true, Image: "ubi.img"},
			want:   []error{ErrConfig, ErrTooFewGoodBlocks},
		},
		{
			name:   "read-only device",
			info:   func(i mtd.Info) mtd.Info { i.Writable = false; return i },
			states: repeat(empty, 4),
			want:   []error{ErrConfig},
		},
		{
			name:   "min. I/O not a power of 2",
			info:   func(i mtd.Info) mtd.Info { i.MinIOSize = 768; i.SubpageSize = 768; return i },
			states: repeat(empty, 4),
			want:   []error{ErrConfig},
		},
		{
			name:   "sub-page larger than min. I/O",
			states: repeat(empty, 4),
			cfg:    Config{SubpageSize: 1024},
			want:   []error{ErrConfig},
		},
		{
			name:   "sub-page does not divide min. I/O",
			states: repeat(empty, 4),
			cfg:    Config{SubpageSize: 384},
			want:   []error{ErrConfig},
		},
		{
			name:   "unaligned VID header offset",
			states: repeat(empty, 4),
			cfg:    Config{VIDHdrOffset: 65},
			want:   []error{ErrConfig},
		},
		{
			name:   "VID header offset beyond eraseblock",
			states: repeat(empty, 4),
			cfg:    Config{VIDHdrOffset: testEBSize},
			want:   []error{ErrConfig},
		},
		{
			name:   "erase counter too large",
			states: repeat(empty, 4),
			cfg:    Config{OverrideEC: true, EC: ubi.MaxEraseCounter + 1},
			want:   []error{ErrConfig},
		},
		{
			name:   "standard input without size",
			states: repeat(empty, 4),
			cfg:    Config{Image: "-"},
			want:   []error{ErrConfig},
		},
		{
			name:   "alien data without confirmation",
			states: []scan.State{alien, empty, empty, empty},
			want:   []error{ErrNeedsConfirmation},
		},
		{
			name:    "alien data declined",
			states:  []scan.State{alien, empty, empty, empty},
			confirm: func(string) bool { return false },
			want:    []error{ErrNeedsConfirmation},
		},
		{
			name:   "few valid counters",
			states: append(repeat(valid(3), 2), repeat(corrupted, 8)...),
			want:   []error{ErrNeedsConfirmation},
		},
		{
			name:   "most valid counters",
			states: append(repeat(valid(3), 6), repeat(corrupted, 4)...),
			want:   []error{ErrNeedsConfirmation},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := testMTDInfo(len(tc.states))
			if tc.info != nil {
				info = tc.info(info)
			}
			d, err := Decide(info, summaryOf(tc.states...), &tc.cfg, tc.confirm)
			require.Error(t, err)
			assert.Nil(t, d)
			for _, want := range tc.want {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestDecideEraseCounters(t *testing.T) {
	tests := []struct {
		name     string
		states   []scan.State
		cfg      Config
		confirm  ConfirmFunc
		want     []uint64
		override bool
	}{
		{
			name:   "empty device",
			states: repeat(empty, 4),
			want:   []uint64{0, 0, 0, 0},
		},
		{
			name:   "every counter valid",
			states: []scan.State{valid(10), valid(20), bad, valid(ubi.MaxEraseCounter)},
			want:   []uint64{11, 21, 0, ubi.MaxEraseCounter + 1},
		},
		{
			name:   "95 percent valid",
			states: append(repeat(valid(7), 19), empty),
			want:   append(repeatEC(8, 19), 7),
		},
		{
			name:    "60 percent valid with confirmation",
			states:  append(repeat(valid(10), 6), repeat(corrupted, 4)...),
			confirm: yes,
			want:    append(repeatEC(11, 6), repeatEC(10, 4)...),
		},
		{
			name:   "60 percent valid with auto-yes",
			states: append(repeat(valid(10), 6), repeat(corrupted, 4)...),
			cfg:    Config{Yes: true},
			want:   append(repeatEC(11, 6), repeatEC(10, 4)...),
		},
		{
			name:     "20 percent valid restarts at zero",
			states:   append(append(repeat(valid(100), 2), repeat(corrupted, 3)...), repeat(empty, 5)...),
			cfg:      Config{Yes: true},
			want:     repeatEC(0, 10),
			override: true,
		},
		{
			name:     "explicit counter",
			states:   []scan.State{valid(10), corrupted, empty},
			cfg:      Config{OverrideEC: true, EC: 4242},
			want:     []uint64{4242, 4242, 4242},
			override: true,
		},
		{
			name:    "alien data confirmed",
			states:  []scan.State{alien, valid(4), valid(4), valid(4)},
			confirm: yes,
			want:    []uint64{4, 5, 5, 5},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Decide(testMTDInfo(len(tc.states)), summaryOf(tc.states...), &tc.cfg, tc.confirm)
			require.NoError(t, err)
			assert.Equal(t, tc.want, d.ECs)
			assert.Equal(t, tc.override, d.OverrideEC)
		})
	}
}

func repeatEC(ec uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = ec
	}
	return out
}

func TestDecideOffsets(t *testing.T) {
	info := testMTDInfo(4)

	d, err := Decide(info, summaryOf(repeat(empty, 4)...), &Config{ImageSeq: 9}, nil)
	require.NoError(t, err)
	assert.Equal(t, testSubpage, d.SubpageSize)
	assert.Equal(t, 512, d.Info.VIDHdrOffset)
	assert.Equal(t, 1024, d.Info.DataOffset)
	assert.Equal(t, uint32(9), d.Info.ImageSeq)
	assert.Equal(t, uint8(ubi.Version), d.Info.Version)

	onFlash := summaryOf(repeat(valid(1), 4)...)
	onFlash.VIDHdrOffset, onFlash.DataOffset = 64, 512

	_, err = Decide(info, onFlash, &Config{}, nil)
	assert.ErrorIs(t, err, ErrNeedsConfirmation)

	var asked []string
	confirm := func(q string) bool {
		asked = append(asked, q)
		return true
	}
	d, err = Decide(info, onFlash, &Config{}, confirm)
	require.NoError(t, err)
	assert.Equal(t, []string{"use new offsets 512 and 1024?"}, asked)
	assert.Equal(t, 512, d.Info.VIDHdrOffset)

	onFlash.VIDHdrOffset = 512
	_, err = Decide(info, onFlash, &Config{}, nil)
	assert.NoError(t, err, "matching offsets need no confirmation")
}
