// Package extract turns an uploaded file into an ordered modulebox.Result.
//
// The file extension (case-insensitive) selects one of three readers:
//
//   - .csv:  one "row" record per data row, cells typed per column
//   - .docx: one record per non-blank body paragraph, tagged with its style name
//   - .pdf:  one record per line of every page that has text
//
// Any other extension yields a single "Unsupported" record without touching
// the file. Parser failures for supported formats are returned as
// *modulebox.ErrExtract wrapping the parser's error.
//
// Usage:
//
//	ex := extract.New(extract.WithLogger(logger))
//	res, err := ex.Extract(ctx, "/srv/uploads/report.pdf")
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/nevindra/modulebox"
)

// Format is the closed set of extraction strategies.
type Format int

const (
	FormatUnsupported Format = iota
	FormatCSV
	FormatDOCX
	FormatPDF
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatDOCX:
		return "docx"
	case FormatPDF:
		return "pdf"
	default:
		return "unsupported"
	}
}

// FormatFromPath maps a file path to its extraction format by extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".docx":
		return FormatDOCX
	case ".pdf":
		return FormatPDF
	default:
		return FormatUnsupported
	}
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a structured logger. Without it nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// Extractor implements modulebox.Extractor. It holds no per-call state and
// is safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
}

var _ modulebox.Extractor = (*Extractor)(nil)

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract reads the file at path and returns its records in source order.
// ctx is not consulted: a call always runs to completion.
func (e *Extractor) Extract(_ context.Context, path string) (modulebox.Result, error) {
	format := FormatFromPath(path)
	if format == FormatUnsupported {
		e.logger.Debug("extract: unsupported format", "path", path, "ext", filepath.Ext(path))
		return modulebox.Result{modulebox.UnsupportedRecord()}, nil
	}

	start := time.Now()
	var (
		res modulebox.Result
		err error
	)
	switch format {
	case FormatCSV:
		res, err = extractCSV(path)
	case FormatDOCX:
		res, err = extractDOCX(path)
	case FormatPDF:
		res, err = extractPDF(path)
	}
	if err != nil {
		e.logger.Warn("extract: parse failed", "path", path, "format", format.String(), "error", err)
		return nil, &modulebox.ErrExtract{Path: path, Format: format.String(), Err: err}
	}

	e.logger.Debug("extract: done", "path", path, "format", format.String(), "records", len(res), "duration", time.Since(start))
	return res, nil
}

// File extracts path with a default Extractor.
func File(path string) (modulebox.Result, error) {
	return New().Extract(context.Background(), path)
}

// recoverParse converts a parser panic into an error. Third-party readers
// panic on some corrupt inputs; the caller still sees a parse failure.
func recoverParse(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("parser panic: %v", r)
	}
}
