package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gymaccess/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName  = "Access Log"
	dateLayout = "2006-01-02"
)

// AccessLogReader is the slice of the access log store the exporter reads.
type AccessLogReader interface {
	GetAccessLogByDateRange(ctx context.Context, start, end time.Time) ([]*models.AccessLogEntry, error)
}

// Exporter renders access log entries for a date range into an xlsx workbook.
type Exporter struct {
	store  AccessLogReader
	dir    string
	loc    *time.Location
	logger *zerolog.Logger
}

func NewExporter(store AccessLogReader, dir string, loc *time.Location, logger *zerolog.Logger) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "export").Logger()
	return &Exporter{store: store, dir: dir, loc: loc, logger: &l}
}

// DayRange converts inclusive local dates [from, to] into a half-open [start, end) window.
func DayRange(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, from, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q: %w", from, err)
	}
	last, err := time.ParseInLocation(dateLayout, to, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q: %w", to, err)
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("to date %s is before from date %s", to, from)
	}
	return start, last.AddDate(0, 0, 1), nil
}

// Write streams the workbook for [start, end) to w.
func (e *Exporter) Write(ctx context.Context, start, end time.Time, w io.Writer) (int, error) {
	entries, err := e.store.GetAccessLogByDateRange(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrStoreFailure, err)
	}

	f, err := e.build(start, end, entries)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("error writing workbook: %w", err)
	}
	return len(entries), nil
}

// ExportToFile saves the workbook under the export directory and returns its path.
func (e *Exporter) ExportToFile(ctx context.Context, start, end time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	fileName := FileName(start, end, e.loc)
	filePath := filepath.Join(e.dir, fileName)

	out, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("error creating file: %w", err)
	}
	n, err := e.Write(ctx, start, end, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(filePath)
		return "", err
	}

	e.logger.Info().Str("file_path", filePath).Int("entries", n).Msg("access log exported")
	return filePath, nil
}

// FileName names an export for the inclusive local date range covered by [start, end).
func FileName(start, end time.Time, loc *time.Location) string {
	last := end.In(loc).AddDate(0, 0, -1)
	return fmt.Sprintf("access_log_%s_to_%s.xlsx", start.In(loc).Format(dateLayout), last.Format(dateLayout))
}

func (e *Exporter) build(start, end time.Time, entries []*models.AccessLogEntry) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	last := end.In(e.loc).AddDate(0, 0, -1)
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		start.In(e.loc).Format("02.01.2006"), last.Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", "G1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{"Entry", "Member No", "Name", "Access Date", "Access Count", "Gym", "Reference"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, entry := range entries {
		row := i + 3
		values := []any{
			entry.ID,
			entry.MemberID,
			entry.MemberName,
			entry.AccessDate.In(e.loc).Format(models.ReceiptTimeLayout),
			entry.AccessCount,
			entry.Gym,
			entry.ReferenceID,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("error setting cell %s: %w", cell, err)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 10)
	_ = f.SetColWidth(sheetName, "B", "C", 25)
	_ = f.SetColWidth(sheetName, "D", "D", 26)
	_ = f.SetColWidth(sheetName, "E", "E", 14)
	_ = f.SetColWidth(sheetName, "F", "G", 22)

	return f, nil
}
