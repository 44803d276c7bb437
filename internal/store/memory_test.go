package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(day time.Time) func() time.Time {
	return func() time.Time { return day }
}

func TestUpsertSubscriptionRecomputesFromNow(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	s := NewMemoryStore()
	s.Now = fixedNow(today)

	require.NoError(t, s.UpsertSubscription(ctx, 42, "alice", 30, "uuid-1"))
	first, err := s.Get(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Repeating the call on the same day is idempotent on sub_start and
	// recomputes sub_end from "now", never from the prior end.
	require.NoError(t, s.UpsertSubscription(ctx, 42, "alice", 30, ""))
	second, err := s.Get(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, first.SubStart, second.SubStart)
	assert.Equal(t, first.SubEnd, second.SubEnd)
	assert.Equal(t, "uuid-1", second.ClientUUID, "empty uuid must not clear the stored one")

	// A renewal ten days later restarts the window from that day.
	later := today.AddDate(0, 0, 10)
	s.Now = fixedNow(later)
	require.NoError(t, s.UpsertSubscription(ctx, 42, "alice", 30, ""))
	third, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, later, third.SubStart)
	assert.Equal(t, later.AddDate(0, 0, 31), third.SubEnd)
}

func TestUpsertTrialCooldown(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	s := NewMemoryStore()
	s.Now = fixedNow(today)

	granted, err := s.UpsertTrial(ctx, 7, "bob", 3, "trial-uuid")
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = s.UpsertTrial(ctx, 7, "bob", 3, "trial-uuid-2")
	require.NoError(t, err)
	assert.False(t, granted, "second trial within the cooldown must be refused")

	s.Now = fixedNow(today.AddDate(0, 0, 180))
	granted, err = s.UpsertTrial(ctx, 7, "bob", 3, "trial-uuid-3")
	require.NoError(t, err)
	assert.True(t, granted, "trial allowed again once the cooldown has passed")
}

func TestUUIDByUserLastMatchWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Seed(
		Record{UserID: 5, ClientUUID: "old-uuid"},
		Record{UserID: 6, ClientUUID: "other"},
		Record{UserID: 5, ClientUUID: "new-uuid"},
	)

	uuid, err := s.UUIDByUser(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "new-uuid", uuid)

	uuid, err = s.UUIDByUser(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, uuid)
}

func TestRegisterFirstReferrerWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Register(ctx, 10, "carol", 77))
	require.NoError(t, s.Register(ctx, 10, "carol_new", 88))

	rec, err := s.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(77), rec.ReferrerID, "referrer must never be overwritten")
	assert.Equal(t, "carol_new", rec.Username, "username is refreshed on every start")
}

func TestExtendSubEndSkipsUsersWithoutSubscription(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Seed(Record{UserID: 1})

	require.NoError(t, s.ExtendSubEnd(ctx, 1, 5))
	rec, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.SubEnd.IsZero())
}
