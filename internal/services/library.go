package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/resumind/resumind/internal/models"
	"github.com/resumind/resumind/internal/platform"
)

// BlobReader is the blob-read capability the library needs to resolve the
// references a record carries into displayable content.
type BlobReader interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

// Library is the read path over persisted records.
type Library struct {
	records RecordStore
	blobs   BlobReader
	log     *slog.Logger
}

// NewLibrary wires the read path against the platform facade views.
func NewLibrary(records RecordStore, blobs BlobReader, log *slog.Logger) *Library {
	if log == nil {
		log = slog.Default()
	}
	return &Library{records: records, blobs: blobs, log: log}
}

// RetrievedRecord is a record with its blob references resolved.
type RetrievedRecord struct {
	Record      *models.Record
	RawDocument []byte
	Preview     []byte
}

// Retrieve loads one record by id and resolves both of its blob references.
func (l *Library) Retrieve(ctx context.Context, id string) (*RetrievedRecord, error) {
	value, err := l.records.Get(ctx, models.RecordKey(id))
	if err != nil {
		if errors.Is(err, platform.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load record %s: %w", id, err)
	}

	record, err := models.DecodeRecord(value)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", id, err)
	}

	result := &RetrievedRecord{Record: record}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := l.blobs.Read(gctx, record.RawDocumentRef)
		if err != nil {
			return fmt.Errorf("failed to resolve raw document %s: %w", record.RawDocumentRef, err)
		}
		result.RawDocument = data
		return nil
	})
	g.Go(func() error {
		data, err := l.blobs.Read(gctx, record.PreviewRef)
		if err != nil {
			return fmt.Errorf("failed to resolve preview %s: %w", record.PreviewRef, err)
		}
		result.Preview = data
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListAll returns every persisted record in discovery order. An entry whose
// payload no longer decodes is skipped with a warning instead of failing the
// whole listing.
func (l *Library) ListAll(ctx context.Context) ([]*models.Record, error) {
	entries, err := l.records.List(ctx, models.RecordKeyPrefix+"*", true)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]*models.Record, 0, len(entries))
	for _, entry := range entries {
		record, err := models.DecodeRecord(entry.Value)
		if err != nil {
			l.log.Warn("Skipping undecodable record entry.", "key", entry.Key, "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
