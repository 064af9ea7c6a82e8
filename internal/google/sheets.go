package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gymaccess/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	accessLogSheet   = "AccessLog"
	accessLogColumns = "A%d:G%d"
	sheetTimeLayout  = "2006-01-02 15:04:05"
)

var ErrRowNotFound = errors.New("access log row not found")

// AccessLogSheet mirrors access log entries into a Google spreadsheet.
// Rows are keyed by entry id in column A so a retried append updates in place.
type AccessLogSheet struct {
	service       *sheets.Service
	spreadsheetID string
	location      *time.Location
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
}

func NewAccessLogSheet(ctx context.Context, credentialsFile, spreadsheetID string, location *time.Location) (*AccessLogSheet, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newAccessLogSheet(srv, spreadsheetID, location), nil
}

func newAccessLogSheet(srv *sheets.Service, spreadsheetID string, location *time.Location) *AccessLogSheet {
	if location == nil {
		location = time.UTC
	}
	return &AccessLogSheet{
		service:       srv,
		spreadsheetID: spreadsheetID,
		location:      location,
		rowCache:      make(map[int64]int),
	}
}

// TestConnection проверяет подключение к таблице
func (s *AccessLogSheet) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, accessLogSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// GetServiceAccountEmail returns the client_email of a service account key file.
// The spreadsheet must be shared with this address.
func GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *AccessLogSheet) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, accessLogSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[int64]int, len(resp.Values))
	for i, row := range resp.Values {
		if id, ok := cellID(row); ok {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

// AppendAccessLog writes the entry, updating its row when it is already present.
func (s *AccessLogSheet) AppendAccessLog(ctx context.Context, entry *models.AccessLogEntry) error {
	if entry == nil || entry.ID == 0 {
		return errors.New("access log entry id is required")
	}

	rowIdx, err := s.FindEntryRow(ctx, entry.ID)
	switch {
	case err == nil:
		rangeData := fmt.Sprintf(accessLogSheet+"!"+accessLogColumns, rowIdx, rowIdx)
		_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
			Values: [][]interface{}{s.rowValues(entry)},
		}).ValueInputOption("RAW").Context(ctx).Do()
		return err
	case !errors.Is(err, ErrRowNotFound):
		return err
	}

	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, accessLogSheet+"!A:A", &sheets.ValueRange{
		Values: [][]interface{}{s.rowValues(entry)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return err
	}

	if resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(entry.ID, row)
		}
	}
	return nil
}

// FindEntryRow locates the 1-based row of an entry id in column A.
func (s *AccessLogSheet) FindEntryRow(ctx context.Context, entryID int64) (int, error) {
	if row, ok := s.getCachedRow(entryID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, accessLogSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if id, ok := cellID(row); ok && id == entryID {
			rowIdx := i + 1 // Values are zero-based; sheet rows are 1-based
			s.setCachedRow(entryID, rowIdx)
			return rowIdx, nil
		}
	}
	return 0, ErrRowNotFound
}

func (s *AccessLogSheet) rowValues(entry *models.AccessLogEntry) []interface{} {
	return []interface{}{
		entry.ID,
		entry.MemberID,
		entry.MemberName,
		entry.AccessDate.In(s.location).Format(sheetTimeLayout),
		entry.AccessCount,
		entry.Gym,
		entry.ReferenceID,
	}
}

func cellID(row []interface{}) (int64, bool) {
	if len(row) == 0 {
		return 0, false
	}
	switch v := row[0].(type) {
	case float64:
		return int64(v), v > 0
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return id, err == nil && id > 0
	}
	return 0, false
}

// rowFromRange extracts the first row number from a range like "AccessLog!A10:G10".
func rowFromRange(r string) (int, bool) {
	if i := strings.LastIndex(r, "!"); i >= 0 {
		r = r[i+1:]
	}
	r = strings.SplitN(r, ":", 2)[0]
	r = strings.TrimLeft(r, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	row, err := strconv.Atoi(r)
	return row, err == nil && row > 0
}

func (s *AccessLogSheet) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *AccessLogSheet) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}
