package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumind/resumind/internal/models"
)

type fakeBlobReader struct {
	blobs map[string][]byte
}

func (f *fakeBlobReader) Read(ctx context.Context, ref string) ([]byte, error) {
	data, ok := f.blobs[ref]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func storedRecord(t *testing.T, store *fakeStore, id string, feedback *models.Feedback) *models.Record {
	t.Helper()
	record := &models.Record{
		ID:             id,
		RawDocumentRef: "gs://test-bucket/uploads/" + id + ".pdf",
		PreviewRef:     "gs://test-bucket/uploads/" + id + "-preview.pdf",
		CompanyName:    "Acme",
		Feedback:       feedback,
	}
	value, err := models.EncodeRecord(record)
	require.NoError(t, err)
	store.values[models.RecordKey(id)] = value
	return record
}

func TestRetrieve_ResolvesBlobs(t *testing.T) {
	store := newFakeStore()
	record := storedRecord(t, store, "id-1", &models.Feedback{OverallScore: 80})
	blobs := &fakeBlobReader{blobs: map[string][]byte{
		record.RawDocumentRef: []byte("raw"),
		record.PreviewRef:     []byte("preview"),
	}}
	library := NewLibrary(store, blobs, slog.Default())

	got, err := library.Retrieve(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, record, got.Record)
	assert.Equal(t, []byte("raw"), got.RawDocument)
	assert.Equal(t, []byte("preview"), got.Preview)
}

func TestRetrieve_UnknownID(t *testing.T) {
	library := NewLibrary(newFakeStore(), &fakeBlobReader{}, slog.Default())

	_, err := library.Retrieve(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRetrieve_BlobResolutionFails(t *testing.T) {
	store := newFakeStore()
	record := storedRecord(t, store, "id-1", nil)
	blobs := &fakeBlobReader{blobs: map[string][]byte{
		record.RawDocumentRef: []byte("raw"),
		// preview ref missing
	}}
	library := NewLibrary(store, blobs, slog.Default())

	_, err := library.Retrieve(context.Background(), "id-1")
	require.Error(t, err)
}

func TestListAll_SkipsUndecodableEntries(t *testing.T) {
	store := newFakeStore()
	storedRecord(t, store, "id-1", nil)
	storedRecord(t, store, "id-2", &models.Feedback{OverallScore: 90})
	store.values[models.RecordKey("id-3")] = "{corrupt"
	library := NewLibrary(store, &fakeBlobReader{}, slog.Default())

	records, err := library.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2, "the corrupt entry is skipped, not fatal")

	ids := map[string]bool{}
	for _, r := range records {
		ids[r.ID] = true
	}
	assert.True(t, ids["id-1"])
	assert.True(t, ids["id-2"])
}

func TestRetrieve_AfterSuccessfulSubmission(t *testing.T) {
	e := newEnv()

	id, err := e.submitter.Submit(context.Background(), validInput(), nil)
	require.NoError(t, err)

	stored, err := models.DecodeRecord(e.store.values[models.RecordKey(id)])
	require.NoError(t, err)
	blobs := &fakeBlobReader{blobs: map[string][]byte{
		stored.RawDocumentRef: []byte("raw"),
		stored.PreviewRef:     []byte("preview"),
	}}
	library := NewLibrary(e.store, blobs, slog.Default())

	got, err := library.Retrieve(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got.Record.Feedback, "a completed submission must retrieve with populated feedback")
	assert.Equal(t, id, got.Record.ID)
	assert.Equal(t, []byte("preview"), got.Preview)
}

func TestListAll_DistinctRecordsPerSubmission(t *testing.T) {
	e := newEnv()
	library := NewLibrary(e.store, &fakeBlobReader{}, slog.Default())

	const n = 4
	for range n {
		_, err := e.submitter.Submit(context.Background(), validInput(), nil)
		require.NoError(t, err)
	}

	records, err := library.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, n)

	ids := map[string]bool{}
	for _, r := range records {
		require.NotNil(t, r.Feedback)
		ids[r.ID] = true
	}
	assert.Len(t, ids, n, "every submission produced a distinct id")
}
