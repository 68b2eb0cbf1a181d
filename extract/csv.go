package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/nevindra/modulebox"
)

// errNoColumns is returned for a CSV file without a header row.
var errNoColumns = errors.New("no columns to parse from file")

// missingValues are cell texts read as a missing value (JSON null).
var missingValues = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true,
	"None": true, "n/a": true, "nan": true, "null": true,
}

var boolValues = map[string]bool{
	"True": true, "TRUE": true, "true": true,
	"False": false, "FALSE": false, "false": false,
}

func extractCSV(path string) (modulebox.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCSV(f)
}

// readCSV reads a header row followed by data rows and emits one "row"
// record per data row. Cell types are inferred per column.
func readCSV(r io.Reader) (modulebox.Result, error) {
	// Strip a UTF-8 BOM or decode UTF-16 when its BOM is present, then
	// reject bytes that are not UTF-8.
	r = transform.NewReader(r, transform.Chain(
		unicode.BOMOverride(transform.Nop),
		encoding.UTF8Validator,
	))

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errNoColumns
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := columnNames(header)

	var rows [][]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" && len(columns) > 1 {
			continue
		}
		if len(record) > len(columns) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(columns), len(record))
		}
		rows = append(rows, record)
	}

	kinds := make([]cellKind, len(columns))
	for i := range columns {
		kinds[i] = inferKind(rows, i)
	}

	res := make(modulebox.Result, 0, len(rows))
	for _, record := range rows {
		row := make(modulebox.Row, len(columns))
		for i, col := range columns {
			var v any
			if i < len(record) && !missingValues[record[i]] {
				v = kinds[i].convert(record[i])
			}
			row[i] = modulebox.Cell{Column: col, Value: v}
		}
		res = append(res, modulebox.RowRecord(row))
	}
	return res, nil
}

// columnNames names blank header cells "Unnamed: <i>" and suffixes repeated
// names with ".1", ".2", … so every column key is unique.
func columnNames(header []string) []string {
	names := make([]string, len(header))
	counts := make(map[string]int, len(header))
	for i, col := range header {
		if col == "" {
			col = "Unnamed: " + strconv.Itoa(i)
		}
		n := counts[col]
		for n > 0 {
			counts[col] = n + 1
			col = col + "." + strconv.Itoa(n)
			n = counts[col]
		}
		names[i] = col
		counts[col] = n + 1
	}
	return names
}

// cellKind is the inferred type of a CSV column.
type cellKind int

const (
	kindInt cellKind = iota
	kindFloat
	kindBool
	kindString
)

// inferKind picks the narrowest type that every present cell of column col
// parses as: int64, then float64, then bool, falling back to string.
func inferKind(rows [][]string, col int) cellKind {
	isInt, isFloat, isBool := true, true, true
	for _, record := range rows {
		if col >= len(record) || missingValues[record[col]] {
			continue
		}
		s := record[col]
		if isInt {
			if _, ok := parseInt(s); !ok {
				isInt = false
			}
		}
		if isFloat {
			if _, ok := parseFloat(s); !ok {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := boolValues[s]; !ok {
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			return kindString
		}
	}
	switch {
	case isInt:
		return kindInt
	case isFloat:
		return kindFloat
	case isBool:
		return kindBool
	default:
		return kindString
	}
}

func (k cellKind) convert(s string) any {
	switch k {
	case kindInt:
		v, _ := parseInt(s)
		return v
	case kindFloat:
		v, _ := parseFloat(s)
		return v
	case kindBool:
		return boolValues[s]
	default:
		return s
	}
}

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v, err == nil
}

// parseFloat accepts finite decimal floats only. Hex floats, digit
// separators and Inf/NaN spellings stay text.
func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
