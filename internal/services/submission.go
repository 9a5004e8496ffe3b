// Package services contains the submission pipeline and the read paths the
// UI calls, on top of the platform capability facade.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/resumind/resumind/internal/models"
	"github.com/resumind/resumind/internal/platform"
)

// Status is the externally observable pipeline state token.
type Status string

const (
	StatusIdle                  Status = "idle"
	StatusUploadingSource       Status = "uploading_source"
	StatusConvertingPreview     Status = "converting_preview"
	StatusUploadingPreview      Status = "uploading_preview"
	StatusPersistingProvisional Status = "persisting_provisional"
	StatusAnalyzing             Status = "analyzing"
	StatusComplete              Status = "complete"
	StatusError                 Status = "error"
)

// StatusUpdate is one transition emitted by a pipeline run. RecordID is only
// set on the terminal complete update.
type StatusUpdate struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	RecordID string `json:"recordId,omitempty"`
}

// Failure taxonomy of a pipeline run. All failures are terminal for the run;
// the user resubmits manually.
var (
	ErrUploadFailed      = errors.New("upload failed")
	ErrConversionFailed  = errors.New("preview conversion failed")
	ErrPersistFailed     = errors.New("record persistence failed")
	ErrAnalysisFailed    = errors.New("analysis failed")
	ErrMalformedFeedback = errors.New("malformed feedback")
	ErrNotFound          = errors.New("record not found")
)

// Uploader is the blob-upload capability the pipeline needs.
type Uploader interface {
	Upload(ctx context.Context, files ...platform.File) ([]string, error)
}

// RecordStore is the key-value capability the pipeline and library need.
type RecordStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	List(ctx context.Context, pattern string, includeValues bool) ([]platform.KVEntry, error)
}

// Analyzer is the inference capability the pipeline needs.
type Analyzer interface {
	Feedback(ctx context.Context, docRef, instructions string) (*platform.AIResponse, error)
}

// Rasterizer is the external preview-derivation collaborator.
type Rasterizer interface {
	Convert(document []byte) ([]byte, error)
}

// SubmissionInput is what the UI hands over when the user submits.
type SubmissionInput struct {
	CompanyName    string
	JobTitle       string
	JobDescription string
	FileName       string
	Document       []byte
}

// Submitter runs submission pipelines. Each Submit call is an independent
// run with a fresh record id; there is no resumption or deduplication of
// earlier attempts.
type Submitter struct {
	blobs      Uploader
	records    RecordStore
	ai         Analyzer
	rasterizer Rasterizer
	newID      func() string
	log        *slog.Logger
}

// NewSubmitter wires a submitter against the platform facade views and the
// preview collaborator.
func NewSubmitter(blobs Uploader, records RecordStore, ai Analyzer, rasterizer Rasterizer, log *slog.Logger) *Submitter {
	if log == nil {
		log = slog.Default()
	}
	return &Submitter{
		blobs:      blobs,
		records:    records,
		ai:         ai,
		rasterizer: rasterizer,
		newID:      uuid.NewString,
		log:        log,
	}
}

// Submit executes the staged submission sequence, emitting every status
// transition through notify, and stops on the first stage that fails. On
// success it returns the id of the persisted record. No record is written
// before both uploads have succeeded; a failure after the provisional write
// leaves the provisional record readable.
func (s *Submitter) Submit(ctx context.Context, in SubmissionInput, notify func(StatusUpdate)) (string, error) {
	emit := func(u StatusUpdate) {
		if notify != nil {
			notify(u)
		}
	}
	emit(StatusUpdate{Status: StatusIdle})

	emit(StatusUpdate{Status: StatusUploadingSource, Message: "Uploading your resume..."})
	refs, err := s.blobs.Upload(ctx, platform.File{Name: in.FileName, Data: in.Document})
	if err != nil || len(refs) == 0 {
		return "", s.fail(emit, ErrUploadFailed, "Failed to upload the resume document", err)
	}
	rawRef := refs[0]

	emit(StatusUpdate{Status: StatusConvertingPreview, Message: "Converting to preview..."})
	preview, err := s.rasterizer.Convert(in.Document)
	if err != nil || len(preview) == 0 {
		return "", s.fail(emit, ErrConversionFailed, "Failed to convert the resume to a preview", err)
	}

	emit(StatusUpdate{Status: StatusUploadingPreview, Message: "Uploading the preview..."})
	refs, err = s.blobs.Upload(ctx, platform.File{Name: previewName(in.FileName), Data: preview})
	if err != nil || len(refs) == 0 {
		return "", s.fail(emit, ErrUploadFailed, "Failed to upload the preview", err)
	}
	previewRef := refs[0]

	emit(StatusUpdate{Status: StatusPersistingProvisional, Message: "Preparing data..."})
	id := s.newID()
	record := &models.Record{
		ID:             id,
		RawDocumentRef: rawRef,
		PreviewRef:     previewRef,
		CompanyName:    in.CompanyName,
		JobTitle:       in.JobTitle,
		JobDescription: in.JobDescription,
	}
	if err := s.persist(ctx, record); err != nil {
		return "", s.fail(emit, ErrPersistFailed, "Failed to save the submission", err)
	}
	log := s.log.With("recordId", id)
	log.Info("Provisional record persisted.", "rawDocumentRef", rawRef, "previewRef", previewRef)

	emit(StatusUpdate{Status: StatusAnalyzing, Message: "Analyzing..."})
	instructions := RenderFeedbackInstructions(in.JobTitle, in.JobDescription)
	resp, err := s.ai.Feedback(ctx, rawRef, instructions)
	if err != nil || resp == nil {
		return "", s.fail(emit, ErrAnalysisFailed, "Failed to analyze the resume", err)
	}

	feedback, err := models.ParseFeedback(resp.Text)
	if err != nil {
		// The provisional record stays behind so the submission remains
		// visible in the library with empty feedback.
		return "", s.fail(emit, ErrMalformedFeedback, "The analysis response could not be parsed", err)
	}
	record.Feedback = feedback
	if err := s.persist(ctx, record); err != nil {
		return "", s.fail(emit, ErrPersistFailed, "Failed to save the analysis result", err)
	}

	log.Info("Submission complete.")
	emit(StatusUpdate{Status: StatusComplete, Message: "Analysis complete, redirecting...", RecordID: id})
	return id, nil
}

func (s *Submitter) persist(ctx context.Context, record *models.Record) error {
	value, err := models.EncodeRecord(record)
	if err != nil {
		return err
	}
	return s.records.Set(ctx, models.RecordKey(record.ID), value)
}

func (s *Submitter) fail(emit func(StatusUpdate), kind error, message string, cause error) error {
	s.log.Error("Submission pipeline failed.", "stage", message, "error", cause)
	emit(StatusUpdate{Status: StatusError, Message: message})
	if cause != nil {
		return fmt.Errorf("%w: %v", kind, cause)
	}
	return fmt.Errorf("%w: %s", kind, message)
}

// previewName derives the uploaded preview's file name from the source name.
func previewName(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if base == "" || base == "." {
		base = "resume"
	}
	return base + "-preview.pdf"
}
