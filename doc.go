// Package modulebox stores uploaded documents ("modules") together with a
// structured extraction of their text, and lets users comment on them.
//
// The root package holds the shared vocabulary: extraction records, the
// Extractor and Store interfaces, module and comment records, and tracing
// hooks. Implementations live in subpackages:
//
//   - extract: dispatch by file extension to the CSV, DOCX and PDF readers
//   - store/sqlite, store/postgres: Store implementations
//   - observer: OpenTelemetry instrumentation
//   - internal/server: the HTTP API, with internal/upload for stored files
//     and internal/export for XLSX downloads
//
// # Records
//
// Extraction yields a Result, an ordered list of Record values whose JSON
// form depends on the source:
//
//	{"type":"row","content":{"name":"Ann","age":30}}        // CSV
//	{"type":"Heading 1","content":"Introduction"}           // DOCX
//	{"page":2,"content":"one line of page two"}             // PDF
//	{"type":"Unsupported","content":"File type not supported"}
//
// Usage:
//
//	res, err := extract.New().Extract(ctx, "report.docx")
//	if err != nil {
//		return err // parser failure; unsupported formats are not errors
//	}
//	m, err := store.CreateModule(ctx, modulebox.Module{Title: "report.docx", Data: res})
package modulebox
