package input

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format selects how an input file is parsed
type Format string

const (
	FormatAuto  Format = ""
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatText  Format = "text"
	FormatExcel Format = "xlsx"
)

// ErrNoIdentifiers is returned when an input holds no usable identifier
var ErrNoIdentifiers = errors.New("input contains no identifiers")

// Load reads product identifiers from the first column of path. "-" reads
// standard input as CSV.
func Load(path string, format Format) ([]string, error) {
	if format == FormatAuto {
		format = DetectFormat(path)
	}

	if path == "-" {
		return Parse(os.Stdin, format)
	}

	if format == FormatExcel {
		values, err := readExcel(path)
		if err != nil {
			return nil, err
		}
		return finish(values)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	return Parse(f, format)
}

// DetectFormat picks a format from the file extension
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatExcel
	case ".tsv", ".tab":
		return FormatTSV
	case ".txt", ".lst":
		return FormatText
	default:
		return FormatCSV
	}
}

// Parse reads identifiers from r
func Parse(r io.Reader, format Format) ([]string, error) {
	var (
		values []string
		err    error
	)
	switch format {
	case FormatExcel:
		values, err = readExcelReader(r)
	case FormatTSV:
		values, err = readDelimited(r, '\t')
	case FormatText:
		values, err = readLines(r)
	default:
		values, err = readDelimited(r, ',')
	}
	if err != nil {
		return nil, err
	}
	return finish(values)
}

func readDelimited(r io.Reader, comma rune) ([]string, error) {
	br := skipBOM(r)
	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var values []string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		values = append(values, row[0])
	}
	return values, nil
}

func readLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(skipBOM(r))
	var values []string
	for sc.Scan() {
		values = append(values, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return values, nil
}

func readExcel(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return firstColumn(f)
}

func readExcelReader(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return firstColumn(f)
}

// firstColumn reads column A of the first sheet
func firstColumn(f *excelize.File) ([]string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoIdentifiers
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
		}
		if len(cols) == 0 {
			values = append(values, "")
			continue
		}
		values = append(values, cols[0])
	}
	return values, rows.Error()
}

func skipBOM(r io.Reader) *bufio.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}

// finish trims values, drops blanks and a header row, and removes
// duplicates keeping first occurrence order
func finish(values []string) ([]string, error) {
	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			trimmed = append(trimmed, v)
		}
	}

	if len(trimmed) > 1 && isHeader(trimmed[0], trimmed[1:]) {
		trimmed = trimmed[1:]
	}

	ids := Dedupe(trimmed)
	if len(ids) == 0 {
		return nil, ErrNoIdentifiers
	}
	return ids, nil
}

// isHeader reports whether first looks like a column title above numeric ids
func isHeader(first string, rest []string) bool {
	if isNumeric(first) {
		return false
	}
	for _, v := range rest {
		if isNumeric(v) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Dedupe removes repeated ids, keeping the first occurrence
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
