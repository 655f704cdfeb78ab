package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/okian/debtlens/internal/domain/normalize"
)

// CSV reads a comma separated panel whose first record is the header.
type CSV struct {
	path string
}

// NewCSV creates a CSV source for path.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// Rows reads every data record of the file.
func (c *CSV) Rows(ctx context.Context) ([]normalize.Row, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(ctx, f)
}

// ReadCSV parses CSV content from r.
func ReadCSV(ctx context.Context, r io.Reader) ([]normalize.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrRead, err)
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return rowsFromTable(ctx, header, records)
}
