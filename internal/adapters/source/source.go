// Package source reads raw panel rows from CSV and XLSX files.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/okian/debtlens/internal/domain/normalize"
)

// Source yields the raw rows of a panel.
type Source interface {
	Rows(ctx context.Context) ([]normalize.Row, error)
}

// Open returns a Source for path, chosen by file extension. sheet is only
// used for spreadsheets; empty selects the first sheet.
func Open(path, sheet string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSV(path), nil
	case ".xlsx", ".xlsm":
		return NewXLSX(path, WithSheet(sheet)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// rowsFromTable maps a header and its data rows to Rows. Short rows leave the
// trailing columns absent; duplicate headers keep the last cell.
func rowsFromTable(ctx context.Context, header []string, records [][]string) ([]normalize.Row, error) {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	out := make([]normalize.Row, 0, len(records))
	for i, rec := range records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := make(normalize.Row, len(cols))
		for j, cell := range rec {
			if j >= len(cols) || cols[j] == "" {
				continue
			}
			row[cols[j]] = cell
		}
		out = append(out, row)
	}
	return out, nil
}
