package importer

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
)

const bom = "\uFEFF"

// Parse reads decoded text into rows keyed by the header line.
// A leading byte-order mark is stripped and rows whose cells are all blank are dropped.
func Parse(text string) ([]RawRow, error) {
	lr := &lineReader{s: strings.TrimPrefix(text, bom)}
	r := csv.NewReader(lr)
	r.FieldsPerRecord = -1 // ragged lines are padded or cut to the header
	r.LazyQuotes = true

	var header []string
	rows := make([]RawRow, 0)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.NewValidationError(errors.Wrap(ErrMalformedUpload, err.Error()))
		}
		if blank(record) {
			continue
		}

		if header == nil {
			header = make([]string, len(record))
			for i, h := range record {
				header[i] = core.CleanString(h, true /* lower */)
			}
			continue
		}

		values := make([]string, len(header))
		copy(values, record)
		rows = append(rows, RawRow{Line: lr.recordLine(record), Header: header, Values: values})
	}

	if header == nil {
		return nil, core.NewValidationError(ErrMalformedUpload)
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// lineReader hands out at most one line per Read. The csv reader only asks for more input once its
// buffer holds no complete line, so after each record the lines handed out end with that record.
type lineReader struct {
	s     string
	lines int  // newlines handed out
	atEOL bool // the last byte handed out was a newline
}

func (lr *lineReader) Read(p []byte) (int, error) {
	if lr.s == "" {
		return 0, io.EOF
	}
	end := len(lr.s)
	if i := strings.IndexByte(lr.s, '\n'); i >= 0 {
		end = i + 1
	}
	n := copy(p, lr.s[:end])
	if n == 0 {
		return 0, nil
	}
	if lr.s[n-1] == '\n' {
		lr.lines++
		lr.atEOL = true
	} else {
		lr.atEOL = false
	}
	lr.s = lr.s[n:]
	return n, nil
}

// recordLine returns the 1-based file line the record just read starts on.
// Quoted values spanning several lines keep their line breaks, which tells how far back the record started.
func (lr *lineReader) recordLine(record []string) int {
	line := lr.lines
	if !lr.atEOL {
		line++ // last line of the file, without a newline
	}
	for _, v := range record {
		line -= strings.Count(v, "\n")
	}
	return line
}
