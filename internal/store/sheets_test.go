package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordFromRowLooseTyping(t *testing.T) {
	// The Sheets API hands back numbers as float64 and may omit trailing
	// cells entirely.
	row := []interface{}{
		float64(123456), "alice", "01.06.2024", "02.07.2024", "", "", "",
		"uuid-abc",
	}

	rec := recordFromRow(row)
	assert.Equal(t, int64(123456), rec.UserID)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "uuid-abc", rec.ClientUUID)
	assert.Empty(t, rec.PairUUID)
	assert.Zero(t, rec.ReferrerID)
	assert.Zero(t, rec.RefCount)
	assert.False(t, rec.SubStart.IsZero())
	assert.True(t, rec.TrialStart.IsZero())
}

func TestRecordRowRoundTrip(t *testing.T) {
	rec := Record{
		UserID:     42,
		Username:   "bob",
		SubStart:   ParseDate("01.06.2024"),
		SubEnd:     ParseDate("02.07.2024"),
		ClientUUID: "uuid-1",
		PairUUID:   "uuid-2",
		ReferrerID: 77,
		RefCount:   3,
	}

	got := recordFromRow(rowFromRecord(&rec))
	assert.Equal(t, rec, got)
}

func TestRowFromRecordAbsentFields(t *testing.T) {
	rec := Record{UserID: 1, Username: "x"}
	row := rowFromRecord(&rec)

	// Dates and the referrer render as empty cells, not zero values.
	assert.Equal(t, "", row[2])
	assert.Equal(t, "", row[3])
	assert.Equal(t, "", row[9])
	assert.Equal(t, "0", row[10])
}
