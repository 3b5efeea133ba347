// Package export renders a reviewed order table as a spreadsheet download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gocarina/gocsv"
	"github.com/phuslu/log"
	"github.com/xuri/excelize/v2"

	"github.com/a3tai/order-intake/internal/extract"
)

// SheetName is the single worksheet of every export, and the suffix of the
// download file name.
const SheetName = "訂單明細"

// Formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

const (
	minColWidth = 10
	maxColWidth = 60
)

var contentTypes = map[string]string{
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatCSV:  "text/csv; charset=utf-8",
}

// ContentType returns the MIME type of format.
func ContentType(format string) string {
	return contentTypes[format]
}

// Filename returns the download name for a customer's export.
func Filename(customer, format string) string {
	return fmt.Sprintf("%s_%s.%s", sanitizeFilename(customer), SheetName, format)
}

// Exporter writes tables as XLSX or CSV.
type Exporter struct {
	logger *log.Logger
}

// NewExporter creates an exporter.
func NewExporter(logger *log.Logger) *Exporter {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &Exporter{logger: logger}
}

// Write renders table in format to w.
func (e *Exporter) Write(w io.Writer, format string, table *extract.Table) error {
	switch format {
	case FormatXLSX:
		return e.WriteXLSX(w, table)
	case FormatCSV:
		return e.WriteCSV(w, table)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteXLSX writes a workbook with one sheet: a header row of field names
// followed by the table rows. Every cell is a string.
func (e *Exporter) WriteXLSX(w io.Writer, table *extract.Table) error {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for r, record := range table.Records() {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		row := append([]string(nil), record...)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	for c := range table.Columns {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, columnWidth(table, c)); err != nil {
			return fmt.Errorf("set width of %s: %w", col, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info().
		Int("columns", len(table.Columns)).
		Int("rows", len(table.Rows)).
		Dur("elapsed", time.Since(start)).
		Msg("export.xlsx.ok")
	return nil
}

// WriteCSV writes the same layout as WriteXLSX. A UTF-8 byte order mark is
// prepended so spreadsheet programs detect the encoding.
func (e *Exporter) WriteCSV(w io.Writer, table *extract.Table) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}

	cw := gocsv.NewSafeCSVWriter(csv.NewWriter(w))
	for _, record := range table.Records() {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csv write: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}

	e.logger.Info().
		Int("columns", len(table.Columns)).
		Int("rows", len(table.Rows)).
		Msg("export.csv.ok")
	return nil
}

// columnWidth sizes a column to its widest cell. CJK characters count
// double.
func columnWidth(table *extract.Table, c int) float64 {
	width := displayWidth(table.Columns[c])
	for _, row := range table.Rows {
		width = max(width, displayWidth(row[c]))
	}
	return float64(min(max(width+2, minColWidth), maxColWidth))
}

func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		if utf8.RuneLen(r) > 2 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// sanitizeFilename keeps download names header-safe.
func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\r', '\n':
			return '_'
		}
		return r
	}, name)
}
