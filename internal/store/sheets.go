package store

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/nikkes174/VPNBot/internal/logger"
)

// Sheet column order, fixed. The sheet is row 1 header + one row per user:
// A user_id, B username, C sub_start, D sub_end, E trial_start, F trial_end,
// G last_trial_used, H client_uuid, I pair_uuid, J referrer_id, K ref_count.
const (
	sheetDataRange = "A2:K"
	firstDataRow   = 2
)

// SheetStore keeps subscriber state in a single Google Sheet. Lookups are
// linear scans over all rows; updates rewrite the whole row by index.
type SheetStore struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string

	now func() time.Time
}

// NewSheetStore authorizes against the Sheets API with a service-account key
// file and binds to the given spreadsheet.
func NewSheetStore(ctx context.Context, credentialsPath, spreadsheetID string) (*SheetStore, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account key: %w", err)
	}

	conf, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	logger.Info("Sheet store initialized", map[string]interface{}{
		"spreadsheet_id": spreadsheetID,
	})

	return &SheetStore{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     "Sheet1",
		now:           time.Now,
	}, nil
}

func (s *SheetStore) rows(ctx context.Context) ([][]interface{}, error) {
	rng := fmt.Sprintf("%s!%s", s.sheetName, sheetDataRange)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	return resp.Values, nil
}

func (s *SheetStore) writeRow(ctx context.Context, rowNum int, rec *Record) error {
	rng := fmt.Sprintf("%s!A%d:K%d", s.sheetName, rowNum, rowNum)
	vr := &sheets.ValueRange{Values: [][]interface{}{rowFromRecord(rec)}}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update row %d: %w", rowNum, err)
	}
	return nil
}

func (s *SheetStore) appendRow(ctx context.Context, rec *Record) error {
	rng := fmt.Sprintf("%s!A:K", s.sheetName)
	vr := &sheets.ValueRange{Values: [][]interface{}{rowFromRecord(rec)}}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

// findRow returns the record and sheet row number of the first row matching
// the user id, or nil when absent.
func (s *SheetStore) findRow(rows [][]interface{}, userID int64) (*Record, int) {
	for i, row := range rows {
		rec := recordFromRow(row)
		if rec.UserID == userID {
			return &rec, firstDataRow + i
		}
	}
	return nil, 0
}

func (s *SheetStore) Get(ctx context.Context, userID int64) (*Record, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	rec, _ := s.findRow(rows, userID)
	return rec, nil
}

func (s *SheetStore) Scan(ctx context.Context) ([]Record, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, recordFromRow(row))
	}
	return records, nil
}

func (s *SheetStore) Register(ctx context.Context, userID int64, username string, referrerID int64) error {
	rows, err := s.rows(ctx)
	if err != nil {
		return err
	}
	if rec, rowNum := s.findRow(rows, userID); rec != nil {
		rec.Username = username
		if rec.ReferrerID == 0 && referrerID != 0 {
			rec.ReferrerID = referrerID
		}
		return s.writeRow(ctx, rowNum, rec)
	}
	return s.appendRow(ctx, &Record{
		UserID:     userID,
		Username:   username,
		ReferrerID: referrerID,
	})
}

func (s *SheetStore) UpsertSubscription(ctx context.Context, userID int64, username string, days int, clientUUID string) error {
	rows, err := s.rows(ctx)
	if err != nil {
		return err
	}
	today := truncateToDay(s.now())

	if rec, rowNum := s.findRow(rows, userID); rec != nil {
		rec.SubStart = today
		rec.SubEnd = windowEnd(today, days)
		if clientUUID != "" {
			rec.ClientUUID = clientUUID
		}
		return s.writeRow(ctx, rowNum, rec)
	}

	return s.appendRow(ctx, &Record{
		UserID:     userID,
		Username:   username,
		SubStart:   today,
		SubEnd:     windowEnd(today, days),
		ClientUUID: clientUUID,
	})
}

func (s *SheetStore) UpsertTrial(ctx context.Context, userID int64, username string, days int, clientUUID string) (bool, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return false, err
	}
	today := truncateToDay(s.now())

	if rec, rowNum := s.findRow(rows, userID); rec != nil {
		if !rec.TrialEligibleOn(today) {
			return false, nil
		}
		rec.TrialStart = today
		rec.TrialEnd = windowEnd(today, days)
		rec.LastTrialUsed = today
		if clientUUID != "" {
			rec.ClientUUID = clientUUID
		}
		return true, s.writeRow(ctx, rowNum, rec)
	}

	return true, s.appendRow(ctx, &Record{
		UserID:        userID,
		Username:      username,
		TrialStart:    today,
		TrialEnd:      windowEnd(today, days),
		LastTrialUsed: today,
		ClientUUID:    clientUUID,
	})
}

func (s *SheetStore) UUIDByUser(ctx context.Context, userID int64) (string, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return "", err
	}
	// Most recent row wins when duplicates exist.
	for i := len(rows) - 1; i >= 0; i-- {
		rec := recordFromRow(rows[i])
		if rec.UserID == userID && rec.ClientUUID != "" {
			return strings.TrimSpace(rec.ClientUUID), nil
		}
	}
	return "", nil
}

func (s *SheetStore) SetPairUUID(ctx context.Context, userID int64, uuid string) error {
	rows, err := s.rows(ctx)
	if err != nil {
		return err
	}
	rec, rowNum := s.findRow(rows, userID)
	if rec == nil {
		return fmt.Errorf("user %d not found in sheet", userID)
	}
	rec.PairUUID = uuid
	return s.writeRow(ctx, rowNum, rec)
}

func (s *SheetStore) ExtendSubEnd(ctx context.Context, userID int64, days int) error {
	rows, err := s.rows(ctx)
	if err != nil {
		return err
	}
	rec, rowNum := s.findRow(rows, userID)
	if rec == nil || rec.SubEnd.IsZero() {
		return nil
	}
	rec.SubEnd = rec.SubEnd.AddDate(0, 0, days)
	return s.writeRow(ctx, rowNum, rec)
}

func (s *SheetStore) IncrementRefCount(ctx context.Context, referrerID int64) error {
	rows, err := s.rows(ctx)
	if err != nil {
		return err
	}
	rec, rowNum := s.findRow(rows, referrerID)
	if rec == nil {
		return nil
	}
	rec.RefCount++
	return s.writeRow(ctx, rowNum, rec)
}

// recordFromRow maps one sheet row to a Record. Cells arrive loosely typed
// from the API; anything unparseable reads as absent.
func recordFromRow(row []interface{}) Record {
	return Record{
		UserID:        cellInt64(row, 0),
		Username:      cellString(row, 1),
		SubStart:      ParseDate(cellString(row, 2)),
		SubEnd:        ParseDate(cellString(row, 3)),
		TrialStart:    ParseDate(cellString(row, 4)),
		TrialEnd:      ParseDate(cellString(row, 5)),
		LastTrialUsed: ParseDate(cellString(row, 6)),
		ClientUUID:    cellString(row, 7),
		PairUUID:      cellString(row, 8),
		ReferrerID:    cellInt64(row, 9),
		RefCount:      int(cellInt64(row, 10)),
	}
}

func rowFromRecord(rec *Record) []interface{} {
	referrer := ""
	if rec.ReferrerID != 0 {
		referrer = strconv.FormatInt(rec.ReferrerID, 10)
	}
	return []interface{}{
		strconv.FormatInt(rec.UserID, 10),
		rec.Username,
		FormatDate(rec.SubStart),
		FormatDate(rec.SubEnd),
		FormatDate(rec.TrialStart),
		FormatDate(rec.TrialEnd),
		FormatDate(rec.LastTrialUsed),
		rec.ClientUUID,
		rec.PairUUID,
		referrer,
		strconv.Itoa(rec.RefCount),
	}
}

func cellString(row []interface{}, idx int) string {
	if idx >= len(row) {
		return ""
	}
	switch v := row[idx].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func cellInt64(row []interface{}, idx int) int64 {
	s := cellString(row, idx)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
