// Package export renders an organization's tickets as a spreadsheet.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/xuri/excelize/v2"
)

// Format is an export file format
type Format string

// Supported formats
const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

const sheetName = "Tickets"

var headers = []string{
	"ID", "Title", "Description", "Status", "Asset", "Serial Number",
	"Reported By", "Reporter Email", "Created At", "Updated At",
}

// TicketLister lists an organization's tickets with reporter and asset expanded
type TicketLister interface {
	List(ctx context.Context, orgID int) ([]models.TicketResponse, error)
}

// Service handles ticket exports
type Service struct {
	tickets TicketLister
}

// NewService creates a new export service
func NewService(tickets TicketLister) *Service {
	return &Service{tickets: tickets}
}

// ParseFormat validates a format name; an empty name means XLSX
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", domain.NewValidationError("invalid format: must be xlsx or csv")
	}
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename returns the download name for an export generated at now
func (f Format) Filename(now time.Time) string {
	return fmt.Sprintf("tickets-%s.%s", now.UTC().Format("20060102-150405"), f)
}

// Tickets writes every ticket of the organization to w
func (s *Service) Tickets(ctx context.Context, orgID int, format Format, w io.Writer) error {
	tickets, err := s.tickets.List(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list tickets: %w", err)
	}

	rows := make([][]string, 0, len(tickets))
	for i := range tickets {
		rows = append(rows, row(&tickets[i]))
	}

	if format == FormatCSV {
		return writeCSV(w, rows)
	}
	return writeExcel(w, rows)
}

func row(t *models.TicketResponse) []string {
	var assetName, serial, reporter, reporterEmail string
	if t.Asset != nil {
		assetName, serial = t.Asset.Name, t.Asset.SerialNumber
	}
	if t.User != nil {
		reporter, reporterEmail = t.User.Name, t.User.Email
	}
	return []string{
		strconv.Itoa(t.ID),
		t.Title,
		t.Description,
		t.Status,
		assetName,
		serial,
		reporter,
		reporterEmail,
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeCSV(w io.Writer, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

func writeExcel(w io.Writer, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := make([]interface{}, len(r))
		for j, v := range r {
			values[j] = v
		}
		// The id column stays numeric so it sorts correctly
		if id, err := strconv.Atoi(r[0]); err == nil {
			values[0] = id
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(sheetName, "A", lastCol, 18); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(sheetName, "C", "C", 48); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
