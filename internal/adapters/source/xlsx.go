package source

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/okian/debtlens/internal/domain/normalize"
)

// XLSX reads one worksheet of a spreadsheet. The first row is the header.
type XLSX struct {
	path  string
	sheet string
}

// XLSXOption configures an XLSX source.
type XLSXOption func(*XLSX)

// WithSheet selects the worksheet by name. Empty keeps the first sheet.
func WithSheet(name string) XLSXOption {
	return func(x *XLSX) {
		x.sheet = name
	}
}

// NewXLSX creates an XLSX source for path.
func NewXLSX(path string, opts ...XLSXOption) *XLSX {
	x := &XLSX{path: path}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Rows reads the selected worksheet.
func (x *XLSX) Rows(ctx context.Context) ([]normalize.Row, error) {
	f, err := excelize.OpenFile(x.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer func() { _ = f.Close() }()

	sheet := x.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoHeader
		}
		sheet = sheets[0]
	}

	// Number formats only affect display; rows must carry the stored values.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %w", ErrRead, sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}
	return rowsFromTable(ctx, rows[0], rows[1:])
}
