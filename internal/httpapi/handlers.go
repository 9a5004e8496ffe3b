// Package httpapi exposes the submission pipeline and the record read paths
// to the UI over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/resumind/resumind/internal/models"
	"github.com/resumind/resumind/internal/services"
)

// maxDocumentSize bounds the multipart form we are willing to buffer.
const maxDocumentSize = 32 << 20

// Submitter runs one submission pipeline per call.
type Submitter interface {
	Submit(ctx context.Context, in services.SubmissionInput, notify func(services.StatusUpdate)) (string, error)
}

// Library is the record read path.
type Library interface {
	Retrieve(ctx context.Context, id string) (*services.RetrievedRecord, error)
	ListAll(ctx context.Context) ([]*models.Record, error)
}

// API holds the HTTP handlers for the three UI-facing operations.
type API struct {
	submitter Submitter
	library   Library
	log       *slog.Logger
}

// New creates the API over a submitter and a library.
func New(submitter Submitter, library Library, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{submitter: submitter, library: library, log: log}
}

// SubmitResume accepts a multipart form (document file plus companyName,
// jobTitle, jobDescription fields) and streams the pipeline's status
// transitions as newline-delimited JSON. The terminal update carries either
// the new record id or the failure message.
func (a *API) SubmitResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxDocumentSize); err != nil {
		a.log.Error("Could not parse multipart form.", "error", err)
		http.Error(w, "Bad Request: could not parse multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		http.Error(w, "Bad Request: document file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	document, err := io.ReadAll(file)
	if err != nil {
		a.log.Error("Could not read uploaded document.", "error", err)
		http.Error(w, "Bad Request: could not read document", http.StatusBadRequest)
		return
	}

	input := services.SubmissionInput{
		CompanyName:    r.FormValue("companyName"),
		JobTitle:       r.FormValue("jobTitle"),
		JobDescription: r.FormValue("jobDescription"),
		FileName:       header.Filename,
		Document:       document,
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)

	// Terminal success or failure travels inside the stream; the HTTP status
	// is already committed by the first update.
	_, err = a.submitter.Submit(r.Context(), input, func(u services.StatusUpdate) {
		if err := enc.Encode(u); err != nil {
			a.log.Error("Failed to write status update.", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	})
	if err != nil {
		a.log.Error("Submission failed.", "error", err)
	}
}

// resumeResponse is the GetResume payload. The blob fields are base64 in
// JSON, ready to display.
type resumeResponse struct {
	Record      *models.Record `json:"record"`
	RawDocument []byte         `json:"rawDocument,omitempty"`
	Preview     []byte         `json:"preview,omitempty"`
}

// GetResume returns one record by ?id=, with its blobs resolved.
func (a *API) GetResume(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Bad Request: id is required", http.StatusBadRequest)
		return
	}

	retrieved, err := a.library.Retrieve(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		a.log.Error("Failed to retrieve record.", "recordId", id, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, a.log, resumeResponse{
		Record:      retrieved.Record,
		RawDocument: retrieved.RawDocument,
		Preview:     retrieved.Preview,
	})
}

// ListResumes returns all persisted records.
func (a *API) ListResumes(w http.ResponseWriter, r *http.Request) {
	records, err := a.library.ListAll(r.Context())
	if err != nil {
		a.log.Error("Failed to list records.", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, a.log, records)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to write response.", "error", err)
	}
}
