package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nevindra/modulebox"
	"github.com/nevindra/modulebox/internal/export"
	"github.com/nevindra/modulebox/internal/upload"
)

// Error messages returned to clients.
const (
	msgNoFile         = "No file uploaded"
	msgInvalidRequest = "Invalid request"
	msgNotFound       = "Module not found"
	msgTooLarge       = "File too large"
	msgInternal       = "Internal server error"
)

// --- Response bodies ---

type uploadResponse struct {
	Status        string           `json:"status"`
	ModuleID      int64            `json:"module_id"`
	ExtractedData modulebox.Result `json:"extracted_data"`
}

type uploadErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type commentResponse struct {
	Status    string `json:"status"`
	CommentID int64  `json:"comment_id"`
}

type moduleSummary struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at"`
}

type moduleDetail struct {
	ID            int64            `json:"id"`
	Title         string           `json:"title"`
	ExtractedData modulebox.Result `json:"extracted_data"`
	Comments      []commentDetail  `json:"comments"`
	PublishedAt   string           `json:"published_at"`
}

type commentDetail struct {
	ID        int64  `json:"id"`
	Module    int64  `json:"module"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

func timestamp(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListModules(r.Context(), 1); err != nil {
		s.logger.Error("server: health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload stores the multipart field "file", extracts it and persists
// the module. The stored file is removed again when a later step fails.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.uploadedFile(w, r)
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck
	defer file.Close()

	ctx, span := modulebox.StartSpan(r.Context(), s.tracer, "module.upload",
		modulebox.StringAttr("file_name", header.Filename),
		modulebox.Int64Attr("file_size", header.Size),
	)
	defer span.End()

	path, err := s.uploads.Save(header.Filename, file)
	if err != nil {
		span.Error(err)
		s.logger.Error("server: save upload failed", "file_name", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	res, err := s.extractor.Extract(ctx, path)
	if err != nil {
		span.Error(err)
		s.uploads.Remove(path) //nolint:errcheck
		s.logger.Warn("server: extraction failed", "file_name", header.Filename, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, uploadErrorResponse{Status: "error", Error: extractMessage(err)})
		return
	}
	span.SetAttr(
		modulebox.IntAttr("records", len(res)),
		modulebox.BoolAttr("unsupported", isUnsupported(res)),
	)

	m, err := s.store.CreateModule(ctx, modulebox.Module{
		Title:    upload.BaseName(header.Filename),
		FilePath: path,
		Data:     res,
	})
	if err != nil {
		span.Error(err)
		s.uploads.Remove(path) //nolint:errcheck
		s.logger.Error("server: create module failed", "file_name", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	span.Event("module.created", modulebox.Int64Attr("module_id", m.ID))
	s.logger.Info("server: module uploaded", "module_id", m.ID, "title", m.Title, "records", len(res))

	writeJSON(w, http.StatusOK, uploadResponse{Status: "success", ModuleID: m.ID, ExtractedData: res})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, msgInvalidRequest)
			return
		}
		limit = n
	}

	mods, err := s.store.ListModules(r.Context(), limit)
	if err != nil {
		s.logger.Error("server: list modules failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	out := make([]moduleSummary, len(mods))
	for i, m := range mods {
		out[i] = moduleSummary{ID: m.ID, Title: m.Title, PublishedAt: timestamp(m.PublishedAt)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": out})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadModule(w, r)
	if !ok {
		return
	}
	out := moduleDetail{
		ID:            m.ID,
		Title:         m.Title,
		ExtractedData: m.Data,
		Comments:      make([]commentDetail, len(m.Comments)),
		PublishedAt:   timestamp(m.PublishedAt),
	}
	for i, c := range m.Comments {
		out.Comments[i] = commentDetail{ID: c.ID, Module: c.ModuleID, Text: c.Text, CreatedAt: timestamp(c.CreatedAt)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadModule(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteModule(r.Context(), m.ID); err != nil {
		if errors.Is(err, modulebox.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
		s.logger.Error("server: delete module failed", "module_id", m.ID, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	s.uploads.Remove(m.FilePath) //nolint:errcheck
	s.logger.Info("server: module deleted", "module_id", m.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, err := moduleID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	text, err := s.commentText(w, r)
	if err != nil {
		writeHTTPError(w, err)
		return
	}

	c, err := s.store.AddComment(r.Context(), id, text)
	if errors.Is(err, modulebox.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		s.logger.Error("server: add comment failed", "module_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, commentResponse{Status: "success", CommentID: c.ID})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadModule(w, r)
	if !ok {
		return
	}
	data, err := export.XLSX(m)
	if err != nil {
		s.logger.Error("server: export failed", "module_id", m.ID, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	name := m.Title + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// --- Helpers ---

// uploadedFile parses the multipart body and opens its "file" part. On
// success r.MultipartForm is set and must be cleaned up by the caller.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			return nil, nil, &modulebox.ErrHTTP{Status: http.StatusRequestEntityTooLarge, Body: msgTooLarge}
		}
		return nil, nil, &modulebox.ErrHTTP{Status: http.StatusBadRequest, Body: msgNoFile}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		r.MultipartForm.RemoveAll() //nolint:errcheck
		return nil, nil, &modulebox.ErrHTTP{Status: http.StatusBadRequest, Body: msgNoFile}
	}
	return file, header, nil
}

// commentText reads the sanitised comment text from a form field "text"
// or a JSON body {"text": "..."}.
func (s *Server) commentText(w http.ResponseWriter, r *http.Request) (string, error) {
	invalid := &modulebox.ErrHTTP{Status: http.StatusBadRequest, Body: msgInvalidRequest}

	var text string
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommentBytes)).Decode(&req); err != nil {
			return "", invalid
		}
		text = req.Text
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxCommentBytes)
		text = r.FormValue("text")
	}

	if text = sanitizeComment(s.policy, text); text == "" {
		return "", invalid
	}
	return text, nil
}

func moduleID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid module id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

// loadModule resolves the {id} URL parameter, writing the error response
// itself when the module cannot be returned.
func (s *Server) loadModule(w http.ResponseWriter, r *http.Request) (modulebox.Module, bool) {
	id, err := moduleID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return modulebox.Module{}, false
	}
	m, err := s.store.GetModule(r.Context(), id)
	if errors.Is(err, modulebox.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return modulebox.Module{}, false
	}
	if err != nil {
		s.logger.Error("server: get module failed", "module_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return modulebox.Module{}, false
	}
	return m, true
}

// extractMessage describes an extraction failure without exposing the
// server-side file path.
func extractMessage(err error) string {
	var ee *modulebox.ErrExtract
	if errors.As(err, &ee) {
		cause := ee.Err
		var pe *fs.PathError
		if errors.As(cause, &pe) {
			cause = pe.Err
		}
		return fmt.Sprintf("could not extract %s file: %v", ee.Format, cause)
	}
	return err.Error()
}

// isUnsupported reports whether res is the sentinel result for a file type
// without an extractor.
func isUnsupported(res modulebox.Result) bool {
	return len(res) == 1 && res[0].Type == modulebox.TypeUnsupported && res[0].Row == nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeHTTPError writes err as an error body, using its status when it is
// an *ErrHTTP.
func writeHTTPError(w http.ResponseWriter, err error) {
	var he *modulebox.ErrHTTP
	if errors.As(err, &he) {
		writeError(w, he.Status, he.Body)
		return
	}
	writeError(w, http.StatusInternalServerError, msgInternal)
}
