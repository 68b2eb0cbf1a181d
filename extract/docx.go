package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nevindra/modulebox"
)

const (
	docxDocumentPart = "word/document.xml"
	docxStylesPart   = "word/styles.xml"

	// defaultStyleName is used when a document carries no styles part.
	defaultStyleName = "Normal"
)

// builtinStyleNames maps the lower-case names Word stores for built-in
// styles to the names it displays.
var builtinStyleNames = map[string]string{
	"caption":   "Caption",
	"footer":    "Footer",
	"header":    "Header",
	"heading 1": "Heading 1",
	"heading 2": "Heading 2",
	"heading 3": "Heading 3",
	"heading 4": "Heading 4",
	"heading 5": "Heading 5",
	"heading 6": "Heading 6",
	"heading 7": "Heading 7",
	"heading 8": "Heading 8",
	"heading 9": "Heading 9",
}

func extractDOCX(path string) (modulebox.Result, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()
	return readDOCX(&zr.Reader)
}

// readDOCX emits one record per body paragraph whose text is not blank.
func readDOCX(zr *zip.Reader) (modulebox.Result, error) {
	var docFile, stylesFile *zip.File
	for _, f := range zr.File {
		switch f.Name {
		case docxDocumentPart:
			docFile = f
		case docxStylesPart:
			stylesFile = f
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("missing %s", docxDocumentPart)
	}

	styles := styleSheet{defaultName: defaultStyleName}
	if stylesFile != nil {
		var err error
		if styles, err = loadStyles(stylesFile); err != nil {
			return nil, fmt.Errorf("read %s: %w", docxStylesPart, err)
		}
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", docxDocumentPart, err)
	}
	defer rc.Close()

	return parseParagraphs(rc, styles)
}

// --- Styles ---

// styleSheet resolves paragraph style ids to display names.
type styleSheet struct {
	names       map[string]string
	defaultName string
}

func (s styleSheet) name(styleID string) string {
	if styleID != "" {
		if n, ok := s.names[styleID]; ok {
			return n
		}
	}
	return s.defaultName
}

type stylesXML struct {
	Styles []struct {
		Type    string `xml:"type,attr"`
		Default string `xml:"default,attr"`
		StyleID string `xml:"styleId,attr"`
		Name    struct {
			Val string `xml:"val,attr"`
		} `xml:"name"`
	} `xml:"style"`
}

func loadStyles(f *zip.File) (styleSheet, error) {
	rc, err := f.Open()
	if err != nil {
		return styleSheet{}, err
	}
	defer rc.Close()

	var doc stylesXML
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return styleSheet{}, err
	}

	sheet := styleSheet{names: make(map[string]string), defaultName: defaultStyleName}
	for _, st := range doc.Styles {
		if st.Type != "paragraph" || st.StyleID == "" {
			continue
		}
		name := st.Name.Val
		if ui, ok := builtinStyleNames[name]; ok {
			name = ui
		}
		if name == "" {
			name = st.StyleID
		}
		sheet.names[st.StyleID] = name
		if st.Default == "1" || st.Default == "true" || st.Default == "on" {
			sheet.defaultName = name
		}
	}
	return sheet, nil
}

// --- Paragraphs ---

// paragraphState tracks one body-level paragraph while its tokens stream by.
type paragraphState struct {
	depth   int // stack depth of the w:p element
	styleID string
	text    strings.Builder
}

// parseParagraphs streams document.xml. Only w:p elements that are direct
// children of w:body count; their text is the concatenation of runs that sit
// directly in the paragraph or in one of its hyperlinks.
func parseParagraphs(r io.Reader, styles styleSheet) (modulebox.Result, error) {
	dec := xml.NewDecoder(r)
	res := modulebox.Result{}

	var (
		stack  []string
		para   *paragraphState
		inText bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			depth := len(stack)

			if t.Name.Local == "p" && para == nil && depth == 3 && stack[1] == "body" {
				para = &paragraphState{depth: depth}
				continue
			}
			if para == nil {
				continue
			}

			rel := stack[para.depth:]
			if t.Name.Local == "pStyle" && len(rel) == 2 && rel[0] == "pPr" {
				para.styleID = attr(t, "val")
				continue
			}
			if !isRunChild(rel) {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab", "ptab":
				para.text.WriteByte('\t')
			case "br":
				if typ := attr(t, "type"); typ == "" || typ == "textWrapping" {
					para.text.WriteByte('\n')
				}
			case "cr":
				para.text.WriteByte('\n')
			case "noBreakHyphen":
				para.text.WriteByte('-')
			}

		case xml.EndElement:
			if para != nil && len(stack) == para.depth {
				text := para.text.String()
				if strings.TrimSpace(text) != "" {
					res = append(res, modulebox.ParagraphRecord(styles.name(para.styleID), text))
				}
				para = nil
			}
			inText = false
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

		case xml.CharData:
			if inText && para != nil {
				para.text.Write(t)
			}
		}
	}

	return res, nil
}

// isRunChild reports whether rel (the element path below a paragraph) names
// a direct child of a run that belongs to the paragraph text: p/r/X or
// p/hyperlink/r/X.
func isRunChild(rel []string) bool {
	switch len(rel) {
	case 2:
		return rel[0] == "r"
	case 3:
		return rel[0] == "hyperlink" && rel[1] == "r"
	default:
		return false
	}
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
