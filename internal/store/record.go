package store

import (
	"time"

	"github.com/nikkes174/VPNBot/internal/consts"
)

// Record is one subscriber row. A subscriber is created on first contact with
// the bot and never deleted; renewals, trial grants and referral bonuses
// mutate it in place. Zero time values mean "no date".
type Record struct {
	UserID        int64
	Username      string
	SubStart      time.Time
	SubEnd        time.Time
	TrialStart    time.Time
	TrialEnd      time.Time
	LastTrialUsed time.Time
	ClientUUID    string
	PairUUID      string
	ReferrerID    int64
	RefCount      int
}

// SubscriptionActiveOn reports whether the paid subscription covers the given day.
func (r *Record) SubscriptionActiveOn(day time.Time) bool {
	if r.SubEnd.IsZero() {
		return false
	}
	return !r.SubEnd.Before(truncateToDay(day))
}

// TrialEligibleOn reports whether a new trial may be granted on the given day.
// A trial is allowed at most once per rolling cooldown window.
func (r *Record) TrialEligibleOn(day time.Time) bool {
	if r.LastTrialUsed.IsZero() {
		return true
	}
	elapsed := truncateToDay(day).Sub(truncateToDay(r.LastTrialUsed))
	return elapsed >= time.Duration(consts.TrialCooldownDays)*24*time.Hour
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
