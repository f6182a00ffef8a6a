package ubiformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadBlockTrackerTripsOnConsecutiveBlocks(t *testing.T) {
	tr := NewBadBlockTracker()
	require.NoError(t, tr.RecordBad(5))
	require.NoError(t, tr.RecordBad(6))
	require.NoError(t, tr.RecordBad(7))
	assert.ErrorIs(t, tr.RecordBad(8), ErrTooManyConsecutiveBadBlocks)
}

func TestBadBlockTrackerIgnoresScatteredBlocks(t *testing.T) {
	tr := NewBadBlockTracker()
	for eb := 5; eb < 200; eb += 2 {
		require.NoError(t, tr.RecordBad(eb), "eraseblock %d", eb)
	}
}

func TestBadBlockTrackerRestartsRun(t *testing.T) {
	tr := NewBadBlockTracker()
	for _, eb := range []int{1, 2, 3, 10, 11, 12} {
		require.NoError(t, tr.RecordBad(eb), "eraseblock %d", eb)
	}
	assert.ErrorIs(t, tr.RecordBad(13), ErrTooManyConsecutiveBadBlocks)
}
