package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrKeyNotFound is returned by Get for keys that have no entry.
var ErrKeyNotFound = errors.New("key not found")

// KVStore is the key-value capability view of the facade. Keys are opaque
// strings; callers own serialization and namespacing.
type KVStore struct {
	f *Facade
}

// KVEntry is one listed key, with its value when requested.
type KVEntry struct {
	Key   string
	Value string
}

// kvDocument is the Firestore layout of a single entry. The key is stored as
// a field as well as the document ID so listings can range over it.
type kvDocument struct {
	Key   string `firestore:"key"`
	Value string `firestore:"value"`
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (kv *KVStore) Get(ctx context.Context, key string) (string, error) {
	h, err := kv.f.begin()
	if err != nil {
		return "", err
	}

	snap, err := h.KV.Collection(h.Collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			kv.f.succeed()
			return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
		}
		return "", kv.f.fail("kv get", err, true)
	}

	var doc kvDocument
	if err := snap.DataTo(&doc); err != nil {
		return "", kv.f.fail("kv get decode", err, true)
	}
	kv.f.succeed()
	return doc.Value, nil
}

// Set writes value under key, overwriting any previous entry.
func (kv *KVStore) Set(ctx context.Context, key, value string) error {
	h, err := kv.f.begin()
	if err != nil {
		return err
	}

	if _, err := h.KV.Collection(h.Collection).Doc(key).Set(ctx, kvDocument{Key: key, Value: value}); err != nil {
		return kv.f.fail("kv set", err, true)
	}
	kv.f.succeed()
	return nil
}

// Delete removes the entry under key. Deleting a missing key is not an error.
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	h, err := kv.f.begin()
	if err != nil {
		return err
	}

	if _, err := h.KV.Collection(h.Collection).Doc(key).Delete(ctx); err != nil {
		return kv.f.fail("kv delete", err, true)
	}
	kv.f.succeed()
	return nil
}

// List returns all entries whose key matches pattern, in key order. A
// trailing "*" makes the pattern a prefix match; anything else is an exact
// key match. Values are only fetched into the result when includeValues is
// set.
func (kv *KVStore) List(ctx context.Context, pattern string, includeValues bool) ([]KVEntry, error) {
	h, err := kv.f.begin()
	if err != nil {
		return nil, err
	}

	col := h.KV.Collection(h.Collection)
	var query firestore.Query
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		query = col.Where("key", ">=", prefix).Where("key", "<", prefix+"\uf8ff").OrderBy("key", firestore.Asc)
	} else {
		query = col.Where("key", "==", pattern)
	}

	var entries []KVEntry
	it := query.Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, kv.f.fail("kv list", err, true)
		}
		var doc kvDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, kv.f.fail("kv list decode", err, true)
		}
		entry := KVEntry{Key: doc.Key}
		if includeValues {
			entry.Value = doc.Value
		}
		entries = append(entries, entry)
	}

	kv.f.succeed()
	return entries, nil
}

// Flush removes every entry in the collection.
func (kv *KVStore) Flush(ctx context.Context) error {
	h, err := kv.f.begin()
	if err != nil {
		return err
	}

	it := h.KV.Collection(h.Collection).Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return kv.f.fail("kv flush", err, true)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return kv.f.fail("kv flush delete", err, true)
		}
	}

	kv.f.succeed()
	return nil
}
