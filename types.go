package modulebox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// --- Extraction records ---

// Record type tags that are not paragraph style names.
const (
	TypeRow         = "row"
	TypeUnsupported = "Unsupported"

	// UnsupportedContent is the content of the sentinel record returned for
	// files whose extension has no extractor.
	UnsupportedContent = "File type not supported"
)

// Record is one structured unit of extracted content: a table row, a
// paragraph, or a single line of a page.
//
// Exactly one shape is populated:
//   - tabular: Type == TypeRow and Row != nil
//   - paragraph: Type holds the paragraph style name, Text the paragraph text
//   - page line: Page > 0, Text holds the line
type Record struct {
	Type string
	Page int
	Text string
	Row  Row
}

// RowRecord returns a tabular record.
func RowRecord(row Row) Record {
	return Record{Type: TypeRow, Row: row}
}

// ParagraphRecord returns a paragraph record tagged with its style name.
func ParagraphRecord(style, text string) Record {
	return Record{Type: style, Text: text}
}

// LineRecord returns a record for one line of a 1-based page.
func LineRecord(page int, line string) Record {
	return Record{Page: page, Text: line}
}

// UnsupportedRecord returns the sentinel record for unsupported formats.
func UnsupportedRecord() Record {
	return Record{Type: TypeUnsupported, Text: UnsupportedContent}
}

// MarshalJSON encodes the record in its source-specific shape:
//
//	{"type":"row","content":{...}}
//	{"type":"<style>","content":"..."}
//	{"page":1,"content":"..."}
func (r Record) MarshalJSON() ([]byte, error) {
	switch {
	case r.Page > 0:
		return json.Marshal(struct {
			Page    int    `json:"page"`
			Content string `json:"content"`
		}{r.Page, r.Text})
	case r.Row != nil:
		return json.Marshal(struct {
			Type    string `json:"type"`
			Content Row    `json:"content"`
		}{r.Type, r.Row})
	default:
		return json.Marshal(struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}{r.Type, r.Text})
	}
}

// UnmarshalJSON restores a record written by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    string          `json:"type"`
		Page    int             `json:"page"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record{Type: raw.Type, Page: raw.Page}

	content := bytes.TrimSpace(raw.Content)
	switch {
	case len(content) == 0 || bytes.Equal(content, []byte("null")):
		return nil
	case content[0] == '{':
		var row Row
		if err := json.Unmarshal(content, &row); err != nil {
			return fmt.Errorf("record content: %w", err)
		}
		r.Row = row
		return nil
	default:
		return json.Unmarshal(content, &r.Text)
	}
}

// Cell is one column/value pair of a tabular row. Value is nil (missing),
// int64, float64, bool or string.
type Cell struct {
	Column string
	Value  any
}

// Row is an ordered column→value mapping. Its JSON form is an object whose
// keys keep the source column order.
type Row []Cell

// Get returns the value of the named column.
func (row Row) Get(column string) (any, bool) {
	for _, c := range row {
		if c.Column == column {
			return c.Value, true
		}
	}
	return nil, false
}

// Columns returns the column names in order.
func (row Row) Columns() []string {
	cols := make([]string, len(row))
	for i, c := range row {
		cols[i] = c.Column
	}
	return cols
}

func (row Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range row {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Column)
		if err != nil {
			return nil, err
		}
		val, err := marshalCell(c.Value)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Column, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalCell encodes a cell value. Floats always carry a fraction or an
// exponent so that 2.0 does not read back as an integer.
func marshalCell(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(float64); ok && !bytes.ContainsAny(data, ".eE") {
		data = append(data, ".0"...)
	}
	return data, nil
}

// UnmarshalJSON decodes an object keeping key order. Numbers written
// without a fraction or exponent come back as int64, others as float64.
func (row *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row: expected object, got %v", tok)
	}

	out := make(Row, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row: expected key, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("row: column %q: %w", key, err)
		}
		out = append(out, Cell{Column: key, Value: fromJSONNumber(v)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*row = out
	return nil
}

func fromJSONNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if !strings.ContainsAny(n.String(), ".eE") {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// Result is the ordered sequence of records extracted from one file.
type Result []Record

// MarshalJSON encodes an empty result as [] rather than null.
func (r Result) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Record(r))
}

// --- Domain types (database records) ---

// Module is an uploaded document together with its extracted content.
type Module struct {
	ID          int64
	Title       string
	FilePath    string
	Data        Result
	PublishedAt int64
	Comments    []Comment
}

// Comment is free text attached to a module.
type Comment struct {
	ID        int64
	ModuleID  int64
	Text      string
	CreatedAt int64
}
