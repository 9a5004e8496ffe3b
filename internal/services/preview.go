package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PreviewRenderer derives the preview artifact for a submitted document: the
// source PDF is optimized with relaxed validation, then trimmed to its first
// page. The one-page result is what the result view displays.
type PreviewRenderer struct{}

// Convert produces the preview artifact, or an error when the document is
// not a processable PDF.
func (PreviewRenderer) Convert(document []byte) ([]byte, error) {
	tempDir, err := os.MkdirTemp("", "resume-preview-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, "source.pdf")
	if err := os.WriteFile(sourcePath, document, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage source document: %w", err)
	}

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	optimizedPath := filepath.Join(tempDir, "optimized.pdf")
	if err := api.OptimizeFile(sourcePath, optimizedPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}

	previewPath := filepath.Join(tempDir, "preview.pdf")
	if err := api.TrimFile(optimizedPath, previewPath, []string{"1"}, cfg); err != nil {
		return nil, fmt.Errorf("failed to trim PDF to preview page: %w", err)
	}

	preview, err := os.ReadFile(previewPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read preview artifact: %w", err)
	}
	return preview, nil
}
