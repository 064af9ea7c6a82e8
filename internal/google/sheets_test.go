package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gymaccess/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(ctx context.Context, t *testing.T) (*http.ServeMux, *AccessLogSheet) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	srv, err := sheets.NewService(ctx, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("sheets.NewService: %v", err)
	}
	return mux, newAccessLogSheet(srv, "log_tid", time.FixedZone("WAT", 3600))
}

func sampleEntry() *models.AccessLogEntry {
	return &models.AccessLogEntry{
		ID:          42,
		MemberID:    "AV-100",
		MemberName:  "Ada Obi",
		AccessDate:  time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC),
		AccessCount: 3,
		Gym:         "FitFam Ikoyi",
		ReferenceID: "AV/004217",
	}
}

func TestTestConnection(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/log_tid/values/AccessLog!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	if err := s.TestConnection(ctx); err != nil {
		t.Errorf("TestConnection failed: %v", err)
	}
}

func TestWarmUpCache(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/log_tid/values/AccessLog!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"123"}, {}, {456.0}},
		})
	})
	if err := s.WarmUpCache(ctx); err != nil {
		t.Fatalf("WarmUpCache failed: %v", err)
	}
	if row, ok := s.getCachedRow(123); !ok || row != 2 {
		t.Errorf("expected row 2 for ID 123, got %d", row)
	}
	if row, ok := s.getCachedRow(456); !ok || row != 4 {
		t.Errorf("expected row 4 for ID 456, got %d", row)
	}
}

func TestAppendAccessLogNewRow(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/log_tid/values/AccessLog!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})

	var appended sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/log_tid/values/AccessLog!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &appended)
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "AccessLog!A10:G10"},
		})
	})

	if err := s.AppendAccessLog(ctx, sampleEntry()); err != nil {
		t.Fatalf("AppendAccessLog failed: %v", err)
	}
	if row, _ := s.getCachedRow(42); row != 10 {
		t.Errorf("expected cached row 10, got %d", row)
	}
	if len(appended.Values) != 1 || len(appended.Values[0]) != 7 {
		t.Fatalf("unexpected appended values: %v", appended.Values)
	}
	if appended.Values[0][3] != "2026-10-14 10:30:00" {
		t.Errorf("access date should be local time, got %v", appended.Values[0][3])
	}
	if appended.Values[0][6] != "AV/004217" {
		t.Errorf("unexpected reference cell: %v", appended.Values[0][6])
	}
}

func TestAppendAccessLogUpdatesExistingRow(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	s.setCachedRow(42, 5)

	updated := false
	mux.HandleFunc("/v4/spreadsheets/log_tid/values/AccessLog!A5:G5", func(w http.ResponseWriter, r *http.Request) {
		updated = true
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	if err := s.AppendAccessLog(ctx, sampleEntry()); err != nil {
		t.Fatalf("AppendAccessLog failed: %v", err)
	}
	if !updated {
		t.Error("expected existing row to be updated")
	}
}

func TestAppendAccessLogRequiresID(t *testing.T) {
	s := newAccessLogSheet(nil, "log_tid", nil)
	if err := s.AppendAccessLog(context.Background(), &models.AccessLogEntry{}); err == nil {
		t.Error("expected error for entry without id")
	}
}

func TestFindEntryRow(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/log_tid/values/AccessLog!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"999"}},
		})
	})

	row, err := s.FindEntryRow(ctx, 999)
	if err != nil {
		t.Fatalf("FindEntryRow failed: %v", err)
	}
	if row != 2 {
		t.Errorf("expected row 2, got %d", row)
	}

	if _, err := s.FindEntryRow(ctx, 1); err != ErrRowNotFound {
		t.Errorf("expected ErrRowNotFound, got %v", err)
	}
}

func TestRowFromRange(t *testing.T) {
	tests := map[string]int{
		"AccessLog!A10:G10": 10,
		"A3:G3":             3,
		"'Access Log'!B7":   7,
	}
	for in, want := range tests {
		got, ok := rowFromRange(in)
		if !ok || got != want {
			t.Errorf("rowFromRange(%q) = %d, %v; want %d", in, got, ok, want)
		}
	}
	if _, ok := rowFromRange("AccessLog!A:A"); ok {
		t.Error("expected failure for column-only range")
	}
}

func TestGetServiceAccountEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte(`{"client_email": "test@example.com"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	email, err := GetServiceAccountEmail(path)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if email != "test@example.com" {
		t.Errorf("expected test@example.com, got %s", email)
	}

	if _, err := GetServiceAccountEmail("non-existent"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestNewAccessLogSheetMissingCredentials(t *testing.T) {
	if _, err := NewAccessLogSheet(context.Background(), "missing.json", "id", nil); err == nil {
		t.Error("expected error for missing credentials file")
	}
}
