package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"weekly-metrics/internal/table"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
)

// ErrParseFailure is returned when no strategy can read a file.
var ErrParseFailure = errors.New("parse failure")

var errNotApplicable = errors.New("strategy not applicable")

// Strategy reads one file into a table. Strategies return errNotApplicable
// (wrapped or not) to let the next one try.
type Strategy interface {
	Name() string
	Parse(path string, data []byte) (*table.Table, error)
}

type delimitedStrategy struct {
	name      string
	delimiter rune
	// strict rejects results with a single column so later strategies get a chance.
	strict bool
}

func (s delimitedStrategy) Name() string { return s.name }

func (s delimitedStrategy) Parse(_ string, data []byte) (*table.Table, error) {
	t, err := readDelimited(data, s.delimiter)
	if err != nil {
		return nil, err
	}
	if s.strict && len(t.Columns) < 2 {
		return nil, fmt.Errorf("%w: single column with %q", errNotApplicable, s.delimiter)
	}
	return t, nil
}

type sniffStrategy struct{}

func (sniffStrategy) Name() string { return "sniff" }

func (sniffStrategy) Parse(_ string, data []byte) (*table.Table, error) {
	d, ok := sniffDelimiter(data)
	if !ok {
		return nil, fmt.Errorf("%w: no consistent delimiter", errNotApplicable)
	}
	return readDelimited(data, d)
}

// DelimitedStrategies is the order used for text exports: semicolon for
// European-style files, then a dialect sniff, then bare comma.
var DelimitedStrategies = []Strategy{
	delimitedStrategy{name: "semicolon", delimiter: ';', strict: true},
	sniffStrategy{},
	delimitedStrategy{name: "comma", delimiter: ','},
}

// ParseFile reads a delimited or spreadsheet file, trying strategies in order.
func ParseFile(path string) (*table.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		t, err := xlsxStrategy{}.Parse(path, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, filepath.Base(path), err)
		}
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrParseFailure, path, err)
	}
	data = normalizeEncoding(data)

	var errs []error
	for _, s := range DelimitedStrategies {
		t, err := s.Parse(path, data)
		if err == nil {
			log.Debug().Str("file", filepath.Base(path)).Str("strategy", s.Name()).Int("rows", t.Len()).Msg("Parsed source file")
			return t, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, filepath.Base(path), errors.Join(errs...))
}

// normalizeEncoding strips a UTF-8 BOM and re-decodes Windows-1252 exports.
func normalizeEncoding(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return data
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		log.Debug().Err(err).Msg("Windows-1252 decoding failed, keeping raw bytes")
		return data
	}
	return decoded
}

func newReader(r io.Reader, delimiter rune) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader
}

func readDelimited(data []byte, delimiter rune) (*table.Table, error) {
	reader := newReader(bytes.NewReader(data), delimiter)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty file", errNotApplicable)
		}
		return nil, err
	}
	columns := cleanHeader(header)

	t := table.New(columns...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(record) {
			continue
		}
		row := make(table.Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = table.Text(strings.TrimSpace(record[i]))
			} else {
				row[col] = table.Missing()
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// cleanHeader strips stray quotes and names empty or duplicate headers.
func cleanHeader(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.Trim(strings.TrimSpace(h), `"'`))
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := seen[h]; n > 0 {
			seen[h]++
			h = fmt.Sprintf("%s.%d", h, n)
		} else {
			seen[h] = 1
		}
		out[i] = h
	}
	return out
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

const sniffLines = 20

// sniffDelimiter picks the candidate that splits the leading lines into the
// same number of fields, preferring the widest split.
func sniffDelimiter(data []byte) (rune, bool) {
	var best rune
	bestWidth := 1
	for _, d := range []rune{',', ';', '\t', '|'} {
		reader := newReader(bytes.NewReader(data), d)
		width := -1
		consistent := true
		for i := 0; i < sniffLines; i++ {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				consistent = false
				break
			}
			if width == -1 {
				width = len(record)
			} else if len(record) != width {
				consistent = false
				break
			}
		}
		if consistent && width > bestWidth {
			best, bestWidth = d, width
		}
	}
	return best, bestWidth > 1
}
