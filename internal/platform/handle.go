package platform

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
)

// DefaultDialer builds the production platform handle: Cloud Storage for
// blobs, Firestore for key-value persistence, Vertex AI for inference, and
// the auth service for identity. Credential lookup can lag behind process
// start on a cold boot, which is why dialing is retried by the readiness
// handshake rather than treated as fatal on the first attempt.
func DefaultDialer(cfg *Config) Dialer {
	return func(ctx context.Context) (*Handle, error) {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}

		kvClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			_ = storageClient.Close()
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}

		aiModels, err := NewVertexModels(ctx, cfg.ProjectID, cfg.VertexAIRegion)
		if err != nil {
			_ = storageClient.Close()
			_ = kvClient.Close()
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}

		return &Handle{
			Storage:    storageClient,
			KV:         kvClient,
			AI:         aiModels,
			Identity:   NewIdentityClient(cfg.AuthBaseURL, cfg.AuthClientID, cfg.AuthClientSecret),
			Bucket:     cfg.ResumeBucket,
			Collection: cfg.KVCollection,
		}, nil
	}
}
