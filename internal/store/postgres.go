package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/nikkes174/VPNBot/internal/logger"
)

// PostgresStore is the Store implementation for installations that outgrew
// the spreadsheet. Same semantics, one row per user.
type PostgresStore struct {
	conn *sql.DB
	now  func() time.Time
}

// NewPostgresStore opens the connection and creates the table when missing.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{conn: conn, now: time.Now}
	if err := s.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	logger.InfoMsg("Database store initialized successfully")
	return s, nil
}

func (s *PostgresStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *PostgresStore) initTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS subscribers (
		id SERIAL PRIMARY KEY,
		user_id BIGINT UNIQUE NOT NULL,
		username VARCHAR(255) NOT NULL DEFAULT '',
		sub_start DATE,
		sub_end DATE,
		trial_start DATE,
		trial_end DATE,
		last_trial_used DATE,
		client_uuid VARCHAR(64) NOT NULL DEFAULT '',
		pair_uuid VARCHAR(64) NOT NULL DEFAULT '',
		referrer_id BIGINT NOT NULL DEFAULT 0,
		ref_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_subscribers_user_id ON subscribers(user_id);
	`

	_, err := s.conn.Exec(query)
	return err
}

const subscriberColumns = `user_id, username, sub_start, sub_end, trial_start, trial_end,
	last_trial_used, client_uuid, pair_uuid, referrer_id, ref_count`

func scanRecord(row interface{ Scan(...interface{}) error }) (*Record, error) {
	var rec Record
	var subStart, subEnd, trialStart, trialEnd, lastTrial sql.NullTime
	err := row.Scan(&rec.UserID, &rec.Username, &subStart, &subEnd,
		&trialStart, &trialEnd, &lastTrial,
		&rec.ClientUUID, &rec.PairUUID, &rec.ReferrerID, &rec.RefCount)
	if err != nil {
		return nil, err
	}
	rec.SubStart = nullDate(subStart)
	rec.SubEnd = nullDate(subEnd)
	rec.TrialStart = nullDate(trialStart)
	rec.TrialEnd = nullDate(trialEnd)
	rec.LastTrialUsed = nullDate(lastTrial)
	return &rec, nil
}

func nullDate(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return truncateToDay(t.Time)
}

func (s *PostgresStore) Get(ctx context.Context, userID int64) (*Record, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE user_id = $1`
	rec, err := scanRecord(s.conn.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Scan(ctx context.Context) ([]Record, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers ORDER BY id`
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscribers: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Register(ctx context.Context, userID int64, username string, referrerID int64) error {
	// First referrer wins: the referrer_id column is only written when it
	// still holds the default.
	query := `
	INSERT INTO subscribers (user_id, username, referrer_id)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id) DO UPDATE SET
		username = EXCLUDED.username,
		referrer_id = CASE WHEN subscribers.referrer_id = 0 THEN EXCLUDED.referrer_id
			ELSE subscribers.referrer_id END,
		updated_at = NOW()`

	_, err := s.conn.ExecContext(ctx, query, userID, username, referrerID)
	if err != nil {
		return fmt.Errorf("failed to register subscriber: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertSubscription(ctx context.Context, userID int64, username string, days int, clientUUID string) error {
	today := truncateToDay(s.now())
	end := windowEnd(today, days)

	query := `
	INSERT INTO subscribers (user_id, username, sub_start, sub_end, client_uuid)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id) DO UPDATE SET
		sub_start = EXCLUDED.sub_start,
		sub_end = EXCLUDED.sub_end,
		client_uuid = CASE WHEN EXCLUDED.client_uuid <> '' THEN EXCLUDED.client_uuid
			ELSE subscribers.client_uuid END,
		updated_at = NOW()`

	_, err := s.conn.ExecContext(ctx, query, userID, username, today, end, clientUUID)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertTrial(ctx context.Context, userID int64, username string, days int, clientUUID string) (bool, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	today := truncateToDay(s.now())
	if rec != nil && !rec.TrialEligibleOn(today) {
		return false, nil
	}

	end := windowEnd(today, days)
	query := `
	INSERT INTO subscribers (user_id, username, trial_start, trial_end, last_trial_used, client_uuid)
	VALUES ($1, $2, $3, $4, $3, $5)
	ON CONFLICT (user_id) DO UPDATE SET
		trial_start = EXCLUDED.trial_start,
		trial_end = EXCLUDED.trial_end,
		last_trial_used = EXCLUDED.last_trial_used,
		client_uuid = CASE WHEN EXCLUDED.client_uuid <> '' THEN EXCLUDED.client_uuid
			ELSE subscribers.client_uuid END,
		updated_at = NOW()`

	_, err = s.conn.ExecContext(ctx, query, userID, username, today, end, clientUUID)
	if err != nil {
		return false, fmt.Errorf("failed to upsert trial: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) UUIDByUser(ctx context.Context, userID int64) (string, error) {
	var uuid string
	query := `SELECT client_uuid FROM subscribers WHERE user_id = $1 AND client_uuid <> ''
		ORDER BY id DESC LIMIT 1`
	err := s.conn.QueryRowContext(ctx, query, userID).Scan(&uuid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up client uuid: %w", err)
	}
	return uuid, nil
}

func (s *PostgresStore) SetPairUUID(ctx context.Context, userID int64, uuid string) error {
	query := `UPDATE subscribers SET pair_uuid = $2, updated_at = NOW() WHERE user_id = $1`
	res, err := s.conn.ExecContext(ctx, query, userID, uuid)
	if err != nil {
		return fmt.Errorf("failed to set pair uuid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}

func (s *PostgresStore) ExtendSubEnd(ctx context.Context, userID int64, days int) error {
	query := `UPDATE subscribers SET sub_end = sub_end + $2 * INTERVAL '1 day', updated_at = NOW()
		WHERE user_id = $1 AND sub_end IS NOT NULL`
	_, err := s.conn.ExecContext(ctx, query, userID, days)
	if err != nil {
		return fmt.Errorf("failed to extend subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) IncrementRefCount(ctx context.Context, referrerID int64) error {
	query := `UPDATE subscribers SET ref_count = ref_count + 1, updated_at = NOW() WHERE user_id = $1`
	_, err := s.conn.ExecContext(ctx, query, referrerID)
	if err != nil {
		return fmt.Errorf("failed to increment referral count: %w", err)
	}
	return nil
}
