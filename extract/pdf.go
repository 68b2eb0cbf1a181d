package extract

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/nevindra/modulebox"
)

func extractPDF(path string) (res modulebox.Result, err error) {
	defer recoverParse(&err)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, pageText(page.Content().Text))
	}
	return pageRecords(pages), nil
}

// lineTolerance is how far apart, in points, two glyph baselines may be
// and still belong to the same line.
const lineTolerance = 2.0

// pageText rebuilds a page's lines from its positioned glyphs. Glyphs
// sharing a baseline form one line, kept in content-stream order; lines
// run top to bottom.
func pageText(texts []pdf.Text) string {
	type line struct {
		y float64
		b strings.Builder
	}
	var lines []*line
	for _, t := range texts {
		var cur *line
		for _, l := range lines {
			if math.Abs(l.y-t.Y) <= lineTolerance {
				cur = l
				break
			}
		}
		if cur == nil {
			cur = &line{y: t.Y}
			lines = append(lines, cur)
		}
		cur.b.WriteString(t.S)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.b.String()
	}
	return strings.Join(out, "\n")
}

// pageRecords turns per-page text (index 0 is page 1) into line records.
// Pages without text contribute nothing. Every other page contributes one
// record per newline-separated line, empty lines included; only trailing
// newlines are dropped.
func pageRecords(pages []string) modulebox.Result {
	res := modulebox.Result{}
	for i, text := range pages {
		text = strings.TrimRight(text, "\n")
		if text == "" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			res = append(res, modulebox.LineRecord(i+1, line))
		}
	}
	return res
}
