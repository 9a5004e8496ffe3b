package platform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// BlobStore is the blob-storage capability view of the facade. References
// are gs://bucket/object URIs.
type BlobStore struct {
	f *Facade
}

// File is a named payload handed to Upload.
type File struct {
	Name string
	Data []byte
}

// Write stores data at an explicit object path and returns its reference.
// The write is conditional on the object not existing yet; a precondition
// failure means the object is already there and is not treated as an error.
func (b *BlobStore) Write(ctx context.Context, path string, data []byte) (string, error) {
	h, err := b.f.begin()
	if err != nil {
		return "", err
	}

	writer := h.Storage.Bucket(h.Bucket).Object(path).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		if gerr, ok := err.(*googleapi.Error); !ok || gerr.Code != 412 {
			return "", b.f.fail("blob write", err, true)
		}
	} else if err := writer.Close(); err != nil {
		return "", b.f.fail("blob write finalize", err, true)
	}

	b.f.succeed()
	return blobRef(h.Bucket, path), nil
}

// Upload stores each file under a fresh uploads/ object name and returns the
// references in input order.
func (b *BlobStore) Upload(ctx context.Context, files ...File) ([]string, error) {
	h, err := b.f.begin()
	if err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(files))
	for _, file := range files {
		object := fmt.Sprintf("uploads/%s%s", uuid.NewString(), filepath.Ext(file.Name))
		writer := h.Storage.Bucket(h.Bucket).Object(object).NewWriter(ctx)
		if _, err := io.Copy(writer, bytes.NewReader(file.Data)); err != nil {
			_ = writer.Close()
			return nil, b.f.fail("blob upload", err, true)
		}
		if err := writer.Close(); err != nil {
			return nil, b.f.fail("blob upload finalize", err, true)
		}
		refs = append(refs, blobRef(h.Bucket, object))
	}

	b.f.succeed()
	return refs, nil
}

// Read fetches the content behind a reference.
func (b *BlobStore) Read(ctx context.Context, ref string) ([]byte, error) {
	h, err := b.f.begin()
	if err != nil {
		return nil, err
	}

	bucket, object, err := splitRef(ref, h.Bucket)
	if err != nil {
		return nil, b.f.fail("blob read", err, true)
	}
	reader, err := h.Storage.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, b.f.fail("blob read", err, true)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, b.f.fail("blob read", err, true)
	}
	b.f.succeed()
	return data, nil
}

// Delete removes the object behind a reference.
func (b *BlobStore) Delete(ctx context.Context, ref string) error {
	h, err := b.f.begin()
	if err != nil {
		return err
	}

	bucket, object, err := splitRef(ref, h.Bucket)
	if err != nil {
		return b.f.fail("blob delete", err, true)
	}
	if err := h.Storage.Bucket(bucket).Object(object).Delete(ctx); err != nil {
		return b.f.fail("blob delete", err, true)
	}
	b.f.succeed()
	return nil
}

// List returns the references of all objects under a path prefix.
func (b *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	h, err := b.f.begin()
	if err != nil {
		return nil, err
	}

	var refs []string
	it := h.Storage.Bucket(h.Bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, b.f.fail("blob list", err, true)
		}
		refs = append(refs, blobRef(h.Bucket, attrs.Name))
	}

	b.f.succeed()
	return refs, nil
}

func blobRef(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

// splitRef resolves a gs:// URI, or a bare object path against the default
// bucket, into its bucket and object components.
func splitRef(ref, defaultBucket string) (string, string, error) {
	if rest, ok := strings.CutPrefix(ref, "gs://"); ok {
		bucket, object, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || object == "" {
			return "", "", fmt.Errorf("malformed blob reference %q", ref)
		}
		return bucket, object, nil
	}
	if ref == "" {
		return "", "", fmt.Errorf("empty blob reference")
	}
	return defaultBucket, ref, nil
}
