package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMaxRows is the row guardrail applied when IngestOptions.MaxRows is unset.
const DefaultMaxRows = 200000

// IngestOptions tunes Ingest.
type IngestOptions struct {
	// MaxRows is the largest number of data rows accepted. Zero means DefaultMaxRows.
	MaxRows int
}

// naTokens are the cell spellings read as null, in addition to the empty cell.
var naTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// numericPattern matches integers, decimals and scientific notation.
var numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Ingest parses CSV text into a Table. The first record is the header; every
// following record is a data row. Column types are inferred independently from
// their non-null cells.
//
// Ingest never touches process state: on failure nothing is returned and on
// success the caller decides what to do with the fresh Table.
func Ingest(r io.Reader, opts IngestOptions) (*Table, error) {
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, Errorf(KindBadInput, "Failed to read CSV: No columns to parse from file")
	}
	if err != nil {
		return nil, readError(err)
	}
	for _, h := range header {
		if !utf8.ValidString(h) {
			return nil, Errorf(KindBadInput, "Failed to read CSV: invalid UTF-8 in header")
		}
	}
	names := uniqueNames(header)

	raw := make([][]string, len(names))
	rows := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readError(err)
		}

		line, _ := cr.FieldPos(0)
		if len(record) > len(names) {
			return nil, Errorf(KindBadInput,
				"Failed to read CSV: Expected %d fields in line %d, saw %d", len(names), line, len(record))
		}

		rows++
		if rows > maxRows {
			return nil, Errorf(KindPayloadTooLarge, "CSV too large (rows > %d).", maxRows)
		}

		for j := range names {
			cell := ""
			if j < len(record) {
				cell = record[j]
				if !utf8.ValidString(cell) {
					return nil, Errorf(KindBadInput, "Failed to read CSV: invalid UTF-8 in line %d", line)
				}
			}
			raw[j] = append(raw[j], cell)
		}
	}

	columns := make([]*Column, len(names))
	for j, name := range names {
		cells := raw[j]
		if cells == nil {
			cells = []string{}
		}
		columns[j] = inferColumn(name, cells)
	}
	return newTable(columns, rows), nil
}

func readError(err error) error {
	return Wrap(KindBadInput, err, "Failed to read CSV: %s", err.Error())
}

// skipBOM drops a leading UTF-8 byte order mark, common in files saved by Excel.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// uniqueNames makes header names unique: blanks become "Unnamed: <i>" and
// repeats get ".1", ".2" suffixes.
func uniqueNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for n := 1; seen[name]; n++ {
			name = fmt.Sprintf("%s.%d", h, n)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// IsNA reports whether a raw cell is read as null.
func IsNA(cell string) bool {
	_, ok := naTokens[cell]
	return ok
}

// inferColumn picks the storage variant for one column of raw cells:
// int64 when every non-null cell is an integer, float64 when every non-null
// cell is a number, text otherwise. Nulls live in the validity mask, so an
// integer column with blanks stays integer. A header-only column is text and
// an all-null column is float64.
func inferColumn(name string, raw []string) *Column {
	n := len(raw)
	valid := make([]bool, n)
	nonNull := 0
	allInt, allFloat := true, true

	for i, cell := range raw {
		if IsNA(cell) {
			continue
		}
		valid[i] = true
		nonNull++
		s := strings.TrimSpace(cell)
		if allFloat {
			if _, ok := parseNumber(s); !ok {
				allFloat = false
			}
		}
		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
	}

	col := &Column{name: name, valid: valid}
	switch {
	case n == 0:
		col.storage = StorageText
		col.strs = []string{}
	case allInt && nonNull > 0:
		col.storage = StorageInt
		col.ints = make([]int64, n)
		for i, cell := range raw {
			if valid[i] {
				col.ints[i], _ = strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
			}
		}
	case allFloat:
		col.storage = StorageFloat
		col.floats = make([]float64, n)
		for i, cell := range raw {
			if valid[i] {
				col.floats[i], _ = parseNumber(strings.TrimSpace(cell))
			}
		}
	default:
		col.storage = StorageText
		col.strs = make([]string, n)
		for i, cell := range raw {
			if valid[i] {
				col.strs[i] = cell
			}
		}
	}
	return col
}

// parseNumber accepts plain decimal literals and the infinity spellings.
// Hex floats and digit separators are left to text.
func parseNumber(s string) (float64, bool) {
	if !numericPattern.MatchString(s) && !isInfinity(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		// Out-of-range literals saturate to ±Inf, which is still a number.
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

func isInfinity(s string) bool {
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	switch strings.ToLower(s) {
	case "inf", "infinity":
		return true
	}
	return false
}
