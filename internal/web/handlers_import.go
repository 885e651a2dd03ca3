package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aeshabb/is-lab3/internal/blob"
	"github.com/aeshabb/is-lab3/internal/importer"
	"github.com/aeshabb/is-lab3/internal/logging"
	"github.com/aeshabb/is-lab3/internal/organization"
)

// importResult is the success response for an upload.
type importResult struct {
	Status         string  `json:"status"`
	ImportedCount  int     `json:"importedCount"`
	FileObjectName *string `json:"fileObjectName"`
}

// historyEntry is the JSON shape of one import history row.
type historyEntry struct {
	ID             int64     `json:"id"`
	Status         string    `json:"status"`
	Username       string    `json:"username"`
	ImportedCount  *int      `json:"importedCount"`
	Timestamp      time.Time `json:"timestamp"`
	ErrorMessage   *string   `json:"errorMessage"`
	FileObjectName *string   `json:"fileObjectName"`
}

// handleImportUpload accepts a multipart upload holding a JSON batch of
// organizations and runs the import for it. Requests missing the file part
// or the username are rejected before the import pipeline is invoked.
func (s *Server) handleImportUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	username := strings.TrimSpace(r.FormValue("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "missing username")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	logging.FromContext(r.Context()).Info("import upload received",
		"file", header.Filename, "size", header.Size, "actor", username)

	history, err := s.imports.Execute(r.Context(), content, header.Filename, contentType, username)
	if err != nil {
		writeError(w, importStatusCode(err), err.Error())
		return
	}

	count := 0
	if history.ImportedCount != nil {
		count = *history.ImportedCount
	}
	writeJSON(w, http.StatusOK, importResult{
		Status:         organization.ImportStatusSuccess,
		ImportedCount:  count,
		FileObjectName: history.FileObjectName,
	})
}

// importStatusCode maps an import failure to an HTTP status: bad input and
// validation failures are the client's fault, infrastructure failures are
// not.
func importStatusCode(err error) int {
	var phaseErr *importer.PhaseError
	if errors.As(err, &phaseErr) {
		switch phaseErr.Phase {
		case importer.PhaseInit, importer.PhaseValidate:
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// handleImportHistory returns the full import audit trail, newest first.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := s.history.ListImportHistory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load import history")
		return
	}

	entries := make([]historyEntry, len(rows))
	for i, h := range rows {
		entries[i] = historyEntry{
			ID:             h.ID,
			Status:         h.Status,
			Username:       h.Username,
			ImportedCount:  h.ImportedCount,
			Timestamp:      h.Timestamp,
			ErrorMessage:   h.ErrorMessage,
			FileObjectName: h.FileObjectName,
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleImportDownload streams a stored import file back as an attachment.
func (s *Server) handleImportDownload(w http.ResponseWriter, r *http.Request) {
	objectName := chi.URLParam(r, "objectName")
	if objectName == "" || strings.Contains(objectName, "..") || strings.HasPrefix(objectName, "/") {
		writeError(w, http.StatusBadRequest, "invalid object name")
		return
	}

	content, err := s.blobs.Get(r.Context(), objectName)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch file")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", objectName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		// Headers are already sent; a broken download is a client disconnect.
		slog.Debug("download write aborted", "object", objectName, "error", err)
	}
}
