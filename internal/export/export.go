// Package export renders a module as an XLSX workbook.
package export

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/nevindra/modulebox"
)

// Sheet names.
const (
	SheetRecords  = "Records"
	SheetTable    = "Table"
	SheetComments = "Comments"
)

// XLSX returns the workbook for m as bytes.
func XLSX(m modulebox.Module) ([]byte, error) {
	f, err := Workbook(m)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// Workbook builds the workbook for m: every record on the Records sheet,
// CSV rows again as a typed grid on the Table sheet, and the comments.
func Workbook(m modulebox.Module) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetRecords); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeRecords(f, m.Data); err != nil {
		f.Close()
		return nil, fmt.Errorf("records sheet: %w", err)
	}
	if isTable(m.Data) {
		if err := writeTable(f, m.Data); err != nil {
			f.Close()
			return nil, fmt.Errorf("table sheet: %w", err)
		}
	}
	if err := writeComments(f, m.Comments); err != nil {
		f.Close()
		return nil, fmt.Errorf("comments sheet: %w", err)
	}
	f.SetActiveSheet(0)
	return f, nil
}

// isTable reports whether res is non-empty and holds only row records.
func isTable(res modulebox.Result) bool {
	for _, rec := range res {
		if rec.Row == nil {
			return false
		}
	}
	return len(res) > 0
}

func writeRecords(f *excelize.File, res modulebox.Result) error {
	w := sheetWriter{f: f, sheet: SheetRecords}
	w.row([]any{"#", "Type", "Page", "Content"})
	for i, rec := range res {
		var page, content any
		if rec.Page > 0 {
			page = rec.Page
		}
		content = rec.Text
		if rec.Row != nil {
			data, err := json.Marshal(rec.Row)
			if err != nil {
				return err
			}
			content = string(data)
		}
		w.row([]any{i + 1, rec.Type, page, content})
	}
	_ = f.SetColWidth(SheetRecords, "A", "A", 6)
	_ = f.SetColWidth(SheetRecords, "B", "B", 18)
	_ = f.SetColWidth(SheetRecords, "C", "C", 8)
	_ = f.SetColWidth(SheetRecords, "D", "D", 80)
	return w.err
}

func writeTable(f *excelize.File, res modulebox.Result) error {
	if _, err := f.NewSheet(SheetTable); err != nil {
		return err
	}
	columns := res[0].Row.Columns()
	w := sheetWriter{f: f, sheet: SheetTable}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	w.row(header)
	for _, rec := range res {
		vals := make([]any, len(columns))
		for i, c := range columns {
			vals[i], _ = rec.Row.Get(c)
		}
		w.row(vals)
	}
	return w.err
}

func writeComments(f *excelize.File, comments []modulebox.Comment) error {
	if _, err := f.NewSheet(SheetComments); err != nil {
		return err
	}
	w := sheetWriter{f: f, sheet: SheetComments}
	w.row([]any{"ID", "Text", "Created At"})
	for _, c := range comments {
		w.row([]any{c.ID, c.Text, time.Unix(c.CreatedAt, 0).UTC().Format(time.RFC3339)})
	}
	_ = f.SetColWidth(SheetComments, "B", "B", 60)
	_ = f.SetColWidth(SheetComments, "C", "C", 22)
	return w.err
}

// sheetWriter appends rows to a sheet and keeps the first error.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	next  int
	err   error
}

func (w *sheetWriter) row(vals []any) {
	w.next++
	for i, v := range vals {
		if w.err != nil {
			return
		}
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			v = clipCell(str)
		}
		cell, err := excelize.CoordinatesToCellName(i+1, w.next)
		if err != nil {
			w.err = err
			return
		}
		w.err = w.f.SetCellValue(w.sheet, cell, v)
	}
}

// clipCell cuts text to the most characters a cell can hold.
func clipCell(s string) string {
	if utf8.RuneCountInString(s) <= excelize.TotalCellChars {
		return s
	}
	return string([]rune(s)[:excelize.TotalCellChars])
}
