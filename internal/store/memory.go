package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and local development.
// Rows keep insertion order so last-match lookups behave like the sheet.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record

	// Now is overridable so tests can pin "today".
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Now: time.Now}
}

// Seed replaces the stored rows. Test helper.
func (s *MemoryStore) Seed(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]Record(nil), records...)
}

func (s *MemoryStore) find(userID int64) *Record {
	for i := range s.records {
		if s.records[i].UserID == userID {
			return &s.records[i]
		}
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.find(userID); rec != nil {
		copied := *rec
		return &copied, nil
	}
	return nil, nil
}

func (s *MemoryStore) Scan(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...), nil
}

func (s *MemoryStore) Register(_ context.Context, userID int64, username string, referrerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.find(userID); rec != nil {
		rec.Username = username
		if rec.ReferrerID == 0 && referrerID != 0 {
			rec.ReferrerID = referrerID
		}
		return nil
	}
	s.records = append(s.records, Record{UserID: userID, Username: username, ReferrerID: referrerID})
	return nil
}

func (s *MemoryStore) UpsertSubscription(_ context.Context, userID int64, username string, days int, clientUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := truncateToDay(s.Now())
	if rec := s.find(userID); rec != nil {
		rec.SubStart = today
		rec.SubEnd = windowEnd(today, days)
		if clientUUID != "" {
			rec.ClientUUID = clientUUID
		}
		return nil
	}
	s.records = append(s.records, Record{
		UserID:     userID,
		Username:   username,
		SubStart:   today,
		SubEnd:     windowEnd(today, days),
		ClientUUID: clientUUID,
	})
	return nil
}

func (s *MemoryStore) UpsertTrial(_ context.Context, userID int64, username string, days int, clientUUID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := truncateToDay(s.Now())
	if rec := s.find(userID); rec != nil {
		if !rec.TrialEligibleOn(today) {
			return false, nil
		}
		rec.TrialStart = today
		rec.TrialEnd = windowEnd(today, days)
		rec.LastTrialUsed = today
		if clientUUID != "" {
			rec.ClientUUID = clientUUID
		}
		return true, nil
	}
	s.records = append(s.records, Record{
		UserID:        userID,
		Username:      username,
		TrialStart:    today,
		TrialEnd:      windowEnd(today, days),
		LastTrialUsed: today,
		ClientUUID:    clientUUID,
	})
	return true, nil
}

func (s *MemoryStore) UUIDByUser(_ context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].UserID == userID && s.records[i].ClientUUID != "" {
			return strings.TrimSpace(s.records[i].ClientUUID), nil
		}
	}
	return "", nil
}

func (s *MemoryStore) SetPairUUID(_ context.Context, userID int64, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.find(userID); rec != nil {
		rec.PairUUID = uuid
	}
	return nil
}

func (s *MemoryStore) ExtendSubEnd(_ context.Context, userID int64, days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.find(userID)
	if rec == nil || rec.SubEnd.IsZero() {
		return nil
	}
	rec.SubEnd = rec.SubEnd.AddDate(0, 0, days)
	return nil
}

func (s *MemoryStore) IncrementRefCount(_ context.Context, referrerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.find(referrerID); rec != nil {
		rec.RefCount++
	}
	return nil
}
