package store

import "context"

// Store is the subscriber state behind the bot. Implementations keep one
// record per user id; the backing store (Google Sheet, Postgres) is an
// implementation detail the reconciliation logic never sees.
//
// None of the operations are transactional with each other: two concurrent
// writes to the same user can interleave, which matches how the sheet has
// always behaved.
type Store interface {
	// Get returns the record for a user, or nil when the user is unknown.
	Get(ctx context.Context, userID int64) (*Record, error)

	// Scan returns every record in row order.
	Scan(ctx context.Context) ([]Record, error)

	// Register creates the record on first contact, or refreshes the
	// username on a repeat /start. The referrer is set at most once:
	// the first referrer wins, later ones are ignored.
	Register(ctx context.Context, userID int64, username string, referrerID int64) error

	// UpsertSubscription opens or extends the paid window from "now"
	// (start=today, end=today+days+1) and stores the credential UUID when
	// provided. A missing user gets a fresh record.
	UpsertSubscription(ctx context.Context, userID int64, username string, days int, clientUUID string) error

	// UpsertTrial grants a trial window unless one was already used within
	// the cooldown period. Returns false when the trial was refused.
	UpsertTrial(ctx context.Context, userID int64, username string, days int, clientUUID string) (bool, error)

	// UUIDByUser returns the credential UUID for a user, preferring the
	// most recent row when duplicates exist. Empty string when none.
	UUIDByUser(ctx context.Context, userID int64) (string, error)

	// SetPairUUID stores the second credential of a pair subscription.
	SetPairUUID(ctx context.Context, userID int64, uuid string) error

	// ExtendSubEnd pushes an existing subscription end date by the given
	// number of days. A user without an end date is left untouched.
	ExtendSubEnd(ctx context.Context, userID int64, days int) error

	// IncrementRefCount adds one to the referrer's referral counter.
	IncrementRefCount(ctx context.Context, referrerID int64) error
}
