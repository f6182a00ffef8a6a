package ubiformat

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ubiformat/mtd"
)

// buildImage returns a UBI image of n eraseblocks as ubinize would
// produce it: an EC header, a payload at the data offset and 0xFF
// padding.
func buildImage(t *testing.T, n int) []byte {
	t.Helper()
	ui := testUBIInfo(5)
	img := bytes.Repeat([]byte{0xFF}, n*testEBSize)
	for i := 0; i < n; i++ {
		peb := img[i*testEBSize : (i+1)*testEBSize]
		copy(peb, ui.ECHeaderBuffer(0, testSubpage))
		copy(peb[ui.DataOffset:], payload(i))
	}
	return img
}

func payload(i int) []byte { return []byte(fmt.Sprintf("image eraseblock %d", i)) }

func assertChunk(t *testing.T, dev mtd.Device, eb, chunk int) {
	t.Helper()
	ui := testUBIInfo(0)
	want := payload(chunk)
	got := make([]byte, len(want))
	require.NoError(t, dev.Read(eb, ui.DataOffset, got))
	assert.Equal(t, string(want), string(got), "eraseblock %d", eb)
}

func TestFlashImageThenFormat(t *testing.T) {
	dev := newDevice(t, 10)
	img := buildImage(t, 4)

	sess := newTestSession(t, dev, Config{ImageSeq: 0x77})
	start, err := sess.FlashImage(bytes.NewReader(img), int64(len(img)))
	require.NoError(t, err)
	assert.Equal(t, 4, start)

	for eb := 0; eb < 4; eb++ {
		h, ok := ecHeader(t, dev, eb)
		require.True(t, ok, "eraseblock %d", eb)
		assert.Equal(t, uint32(0x77), h.ImageSeq)
		assert.Equal(t, uint64(0), h.EC)
		assertChunk(t, dev, eb, eb)
		assert.Equal(t, 1, dev.Writes(eb), "trailing 0xFF is not programmed")
	}
	for eb := 4; eb < 10; eb++ {
		assert.Zero(t, dev.Erases(eb))
	}

	require.NoError(t, sess.Format(start, true))
	for eb := 4; eb < 10; eb++ {
		h, ok := ecHeader(t, dev, eb)
		require.True(t, ok, "eraseblock %d", eb)
		assert.Equal(t, uint32(0x77), h.ImageSeq)
		_, ok = vidHeader(t, dev, sess.Decision.Info, eb)
		assert.False(t, ok, "eraseblock %d carries a VID header", eb)
	}
}

func TestFlashImageSkipsBadBlocks(t *testing.T) {
	dev := newDevice(t, 10)
	require.NoError(t, dev.MarkBad(1))
	img := buildImage(t, 4)

	sess := newTestSession(t, dev, Config{ImageSeq: 1})
	start, err := sess.FlashImage(bytes.NewReader(img), int64(len(img)))
	require.NoError(t, err)
	assert.Equal(t, 5, start)

	assertChunk(t, dev, 0, 0)
	assertChunk(t, dev, 2, 1)
	assertChunk(t, dev, 3, 2)
	assertChunk(t, dev, 4, 3)
	assert.Zero(t, dev.Writes(1))
}

func TestFlashImageRetriesChunkOnNextBlock(t *testing.T) {
	dev := newDevice(t, 10)
	dev.FailWrite(1, 1)
	img := buildImage(t, 4)

	sess := newTestSession(t, dev, Config{ImageSeq: 1})
	rec := newRecorder()
	sess.Progress = rec
	start, err := sess.FlashImage(bytes.NewReader(img), int64(len(img)))
	require.NoError(t, err)
	assert.Equal(t, 5, start)

	assert.Equal(t, MarkSkipped, rec.marks[1])
	assert.Empty(t, dev.BadBlocks())
	assertChunk(t, dev, 2, 1)
	assertChunk(t, dev, 4, 3)
	assert.Equal(t, []string{"flashing"}, rec.done)
}

func TestFlashImageMarksBadAndMovesChunkOn(t *testing.T) {
	dev := newDevice(t, 10)
	dev.FailWrite(1, -1)
	img := buildImage(t, 4)

	sess := newTestSession(t, dev, Config{ImageSeq: 1})
	rec := newRecorder()
	sess.Progress = rec
	start, err := sess.FlashImage(bytes.NewReader(img), int64(len(img)))
	require.NoError(t, err)
	assert.Equal(t, 5, start)

	assert.Equal(t, []int{1}, dev.BadBlocks())
	assert.Equal(t, MarkBad, rec.marks[1])
	assert.False(t, sess.Summary.Blocks[1].Good())
	assertChunk(t, dev, 0, 0)
	assertChunk(t, dev, 2, 1)
	assertChunk(t, dev, 3, 2)
	assertChunk(t, dev, 4, 3)
	assert.Zero(t, dev.Erases(5))
}

func TestFlashImageNonIOWriteErrorIsFatal(t *testing.T) {
	dev := newDevice(t, 10)
	boom := errors.New("write rejected")
	dev.FailWriteWith(2, boom)
	img := buildImage(t, 4)

	sess := newTestSession(t, dev, Config{ImageSeq: 1})
	rec := newRecorder()
	sess.Progress = rec
	_, err := sess.FlashImage(bytes.NewReader(img), int64(len(img)))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, dev.BadBlocks())
	assert.Equal(t, 1, dev.Erases(2), "no torture test for non-I/O errors")
	assert.Zero(t, dev.Erases(3), "run stops at the failing block")
	assert.Empty(t, rec.done)
}

func TestFlashImageKeepsEraseCounters(t *testing.T) {
	dev := newDevice(t, 4)
	old := testUBIInfo(3)
	for eb, ec := range []uint64{10, 20, 30, 40} {
		require.NoError(t, dev.Program(eb, 0, old.ECHeaderBuffer(ec, testSubpage)))
	}
	img := buildImage(t, 2)

	sess := newTestSession(t, dev, Config{ImageSeq: 4})
	start, err := sess.FlashImage(bytes.NewReader(img), int64(len(img)))
	require.NoError(t, err)
	require.NoError(t, sess.Format(start, true))

	for eb, want := range []uint64{11, 21, 31, 41} {
		h, ok := ecHeader(t, dev, eb)
		require.True(t, ok)
		assert.Equal(t, want, h.EC, "eraseblock %d", eb)
	}
}

func TestFlashImageErrors(t *testing.T) {
	tests := []struct {
		name string
		img  []byte
		size int64
		want error
	}{
		{"empty", nil, 0, ErrImageSize},
		{"not eraseblock aligned", make([]byte, testEBSize+1), testEBSize + 1, ErrImageSize},
		{"larger than the device", make([]byte, 5*testEBSize), 5 * testEBSize, ErrImageTooLarge},
		{"not an UBI image", bytes.Repeat([]byte{0xFF}, testEBSize), testEBSize, ErrBadMagic},
		{"short read", buildImage(t, 1), 2 * testEBSize, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dev := newDevice(t, 4)
			sess := newTestSession(t, dev, Config{ImageSeq: 1})
			_, err := sess.FlashImage(bytes.NewReader(tc.img), tc.size)
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestFlashImageRunsOutOfBlocks(t *testing.T) {
	dev := newDevice(t, 4)
	dev.FailErase(2, mtd.ErrIO)
	dev.FailErase(3, mtd.ErrIO)
	img := buildImage(t, 3)

	sess := newTestSession(t, dev, Config{ImageSeq: 1})
	_, err := sess.FlashImage(bytes.NewReader(img), int64(len(img)))
	assert.ErrorIs(t, err, ErrImageTooLarge)
}
