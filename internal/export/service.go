package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

// RecordLister is the read side of the record repository used for exports.
type RecordLister interface {
	ListRecords(ctx context.Context, orgID string, from, to *time.Time) ([]*entity.VerificationRecord, error)
}

// Service turns verification records into XLSX workbooks.
type Service struct {
	records RecordLister
	clock   func() time.Time
	logger  *slog.Logger
}

func NewService(records RecordLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, clock: time.Now, logger: logger}
}

const sheet = "Verifications"

var headers = []string{
	"Created At",
	"Record ID",
	"Submitter",
	"Provider",
	"Identifier",
	"Amount",
	"Risk Score",
	"Risk Level",
	"Decision",
	"Status",
	"Version",
	"Issues",
}

// ExportXLSX returns an XLSX workbook (as bytes) for the org's records created
// within the date window. Both bounds are whole UTC days and inclusive.
// If only from is provided -> from..today.
// If only to is provided   -> beginning..to.
// If neither is provided   -> every record of the org.
func (s *Service) ExportXLSX(ctx context.Context, orgID string, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	lo, hi := window(from, to, s.clock())
	recs, err := s.records.ListRecords(ctx, orgID, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(idx)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.CreatedAt.UTC().Format(time.RFC3339))
		write(2, r.ID.String())
		write(3, r.SubmitterID)
		write(4, entity.StrOrEmpty(r.Extracted.Provider))
		write(5, entity.StrOrEmpty(r.Extracted.ExternalIdentifier))
		write(6, entity.StrOrEmpty(r.Extracted.Amount))
		write(7, r.Risk.Score)
		write(8, string(r.Risk.Level))
		write(9, string(r.Risk.Decision))
		write(10, string(r.Status))
		write(11, r.Version)
		write(12, truncate(strings.Join(r.Risk.Issues, "; "), 240))
	}

	_ = f.SetColWidth(sheet, "A", "A", 22) // created
	_ = f.SetColWidth(sheet, "B", "B", 38) // id
	_ = f.SetColWidth(sheet, "C", "F", 18)
	_ = f.SetColWidth(sheet, "G", "K", 14)
	_ = f.SetColWidth(sheet, "L", "L", 60) // issues
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"org_id", orgID,
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// window converts inclusive day bounds into the repository's [from, to) range.
func window(from, to *time.Time, now time.Time) (*time.Time, *time.Time) {
	day := func(t time.Time) time.Time {
		t = t.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	var lo, hi *time.Time
	if from != nil {
		d := day(*from)
		lo = &d
		if to == nil {
			end := day(now).AddDate(0, 0, 1)
			hi = &end
		}
	}
	if to != nil {
		end := day(*to).AddDate(0, 0, 1)
		hi = &end
	}
	return lo, hi
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
