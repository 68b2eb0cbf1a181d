package export

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/nevindra/modulebox"
)

func openXLSX(t *testing.T, m modulebox.Module) *excelize.File {
	t.Helper()
	data, err := XLSX(m)
	if err != nil {
		t.Fatalf("XLSX: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func rows(t *testing.T, f *excelize.File, sheet string) [][]string {
	t.Helper()
	r, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows(%s): %v", sheet, err)
	}
	return r
}

func TestCSVModuleWorkbook(t *testing.T) {
	m := modulebox.Module{
		Title: "people.csv",
		Data: modulebox.Result{
			modulebox.RowRecord(modulebox.Row{{Column: "name", Value: "Ann"}, {Column: "age", Value: int64(30)}}),
			modulebox.RowRecord(modulebox.Row{{Column: "name", Value: "Bo"}, {Column: "age", Value: nil}}),
		},
		Comments: []modulebox.Comment{{ID: 7, ModuleID: 1, Text: "nice", CreatedAt: 0}},
	}
	f := openXLSX(t, m)

	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"Records", "Table", "Comments"}) {
		t.Errorf("sheets = %v", got)
	}

	rec := rows(t, f, SheetRecords)
	want := [][]string{
		{"#", "Type", "Page", "Content"},
		{"1", "row", "", `{"name":"Ann","age":30}`},
		{"2", "row", "", `{"name":"Bo","age":null}`},
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("records = %q", rec)
	}

	table := rows(t, f, SheetTable)
	if !reflect.DeepEqual(table, [][]string{{"name", "age"}, {"Ann", "30"}, {"Bo"}}) {
		t.Errorf("table = %q", table)
	}
	typ, err := f.GetCellType(SheetTable, "B2")
	if err != nil {
		t.Fatal(err)
	}
	if typ == excelize.CellTypeSharedString || typ == excelize.CellTypeInlineString {
		t.Errorf("numeric cell stored as text")
	}

	comments := rows(t, f, SheetComments)
	if !reflect.DeepEqual(comments, [][]string{{"ID", "Text", "Created At"}, {"7", "nice", "1970-01-01T00:00:00Z"}}) {
		t.Errorf("comments = %q", comments)
	}
}

func TestPDFModuleWorkbook(t *testing.T) {
	m := modulebox.Module{Data: modulebox.Result{
		modulebox.LineRecord(1, "Title"),
		modulebox.LineRecord(2, "Body"),
	}}
	f := openXLSX(t, m)

	if idx, _ := f.GetSheetIndex(SheetTable); idx != -1 {
		t.Error("table sheet should only exist for CSV rows")
	}
	rec := rows(t, f, SheetRecords)
	if len(rec) != 3 || rec[2][2] != "2" || rec[2][3] != "Body" || rec[2][1] != "" {
		t.Errorf("records = %q", rec)
	}
}

func TestEmptyModuleWorkbook(t *testing.T) {
	f := openXLSX(t, modulebox.Module{})
	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"Records", "Comments"}) {
		t.Errorf("sheets = %v", got)
	}
	if rec := rows(t, f, SheetRecords); len(rec) != 1 {
		t.Errorf("expected header only, got %q", rec)
	}
}

func TestIsTable(t *testing.T) {
	row := modulebox.RowRecord(modulebox.Row{{Column: "a", Value: "1"}})
	tests := []struct {
		res  modulebox.Result
		want bool
	}{
		{nil, false},
		{modulebox.Result{row}, true},
		{modulebox.Result{row, modulebox.ParagraphRecord("Normal", "x")}, false},
		{modulebox.Result{modulebox.UnsupportedRecord()}, false},
	}
	for i, tt := range tests {
		if got := isTable(tt.res); got != tt.want {
			t.Errorf("case %d: isTable = %v, want %v", i, got, tt.want)
		}
	}
}

func TestLongParagraphIsClipped(t *testing.T) {
	long := strings.Repeat("é", excelize.TotalCellChars+500)
	f := openXLSX(t, modulebox.Module{
		Title: "long.docx",
		Data:  modulebox.Result{modulebox.ParagraphRecord("Normal", long)},
	})
	v, err := f.GetCellValue(SheetRecords, "D2")
	if err != nil {
		t.Fatal(err)
	}
	if n := utf8.RuneCountInString(v); n != excelize.TotalCellChars {
		t.Errorf("cell holds %d characters, want %d", n, excelize.TotalCellChars)
	}
}

func TestClipCell(t *testing.T) {
	if got := clipCell("short"); got != "short" {
		t.Errorf("clipCell(short) = %q", got)
	}
	exact := strings.Repeat("a", excelize.TotalCellChars)
	if got := clipCell(exact); got != exact {
		t.Error("text at the limit should be kept whole")
	}
	if got := clipCell(exact + "bc"); got != exact {
		t.Errorf("clipped length = %d", len(got))
	}
}
