package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

var candidateDelimiters = []rune{',', ';', '\t', '|'}

const sniffLines = 10

// Decode reads delimited text, sniffing the delimiter from the first lines.
func Decode(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmpty
	}

	delim := sniffDelimiter(raw)
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
			return nil, fmt.Errorf("ragged row at line %d: %w", perr.Line, err)
		}
		return nil, fmt.Errorf("parse table: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	return New(records[0], records[1:])
}

// sniffDelimiter picks the candidate that splits the sample into the same,
// largest number of fields on every line.
func sniffDelimiter(raw []byte) rune {
	var sample []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() && len(sample) < sniffLines {
		if line := sc.Text(); len(bytes.TrimSpace([]byte(line))) > 0 {
			sample = append(sample, line)
		}
	}

	best, bestFields := ',', 1
	for _, d := range candidateDelimiters {
		fields, consistent := fieldsPerLine(sample, d)
		if consistent && fields > bestFields {
			best, bestFields = d, fields
		}
	}
	return best
}

func fieldsPerLine(lines []string, delim rune) (int, bool) {
	fields := -1
	for _, line := range lines {
		cr := csv.NewReader(bytes.NewReader([]byte(line)))
		cr.Comma = delim
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
		rec, err := cr.Read()
		if err != nil {
			return 0, false
		}
		if fields == -1 {
			fields = len(rec)
		} else if len(rec) != fields {
			return 0, false
		}
	}
	return fields, fields > 1
}
