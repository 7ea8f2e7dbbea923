package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"time"

	"github.com/pkg/errors"
)

// ReportContentType is the media type of rendered reports and exports.
const ReportContentType = "text/csv; charset=utf-8"

// Report is a rendered error file kept for a later download.
type Report struct {
	ID        string
	SchoolID  string
	Kind      string
	Filename  string
	Content   []byte
	CreatedAt time.Time // UTC
	ExpiresAt time.Time // UTC
}

// ReportStore keeps rendered reports until they expire.
type ReportStore interface {
	// SaveReport stores rep under a new ID and returns it.
	SaveReport(ctx context.Context, rep Report) (Report, error)
	// GetReport returns school.ErrNotFound for unknown, expired or foreign reports.
	GetReport(ctx context.Context, schoolID, id string) (Report, error)
}

// WriteCSV writes a byte-order mark, the header and the records. The mark lets spreadsheet apps detect UTF-8.
func WriteCSV(w io.Writer, header []string, records [][]string) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return errors.Wrap(err, "writing BOM")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	if err := cw.WriteAll(records); err != nil {
		return errors.Wrap(err, "writing records")
	}
	return nil
}

// renderReport renders the failed rows in the kind's column order, with the values as they were uploaded.
func renderReport(kind *Kind, rowErrs []RowError) ([]byte, error) {
	records := make([][]string, 0, len(rowErrs))
	for _, re := range rowErrs {
		rec := make([]string, len(kind.Columns))
		for i, col := range kind.Columns {
			rec[i] = re.Row.Get(col)
		}
		records = append(records, rec)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, kind.Columns, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
