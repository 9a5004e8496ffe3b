package platform

import (
	"fmt"
	"os"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Config holds everything the default dialer needs to reach the platform.
type Config struct {
	ProjectID        string
	VertexAIRegion   string
	ResumeBucket     string
	KVCollection     string
	AuthBaseURL      string
	AuthClientID     string
	AuthClientSecret string
}

// LoadConfig loads and validates the platform configuration from the
// environment.
func LoadConfig() (*Config, error) {
	projectID := GetEnv("GOOGLE_CLOUD_PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID environment variable must be set")
	}
	resumeBucket := GetEnv("RESUME_BUCKET", "")
	if resumeBucket == "" {
		return nil, fmt.Errorf("RESUME_BUCKET environment variable must be set")
	}

	return &Config{
		ProjectID:        projectID,
		VertexAIRegion:   GetEnv("VERTEX_AI_REGION", "us-central1"),
		ResumeBucket:     resumeBucket,
		KVCollection:     GetEnv("FIRESTORE_COLLECTION", "kv"),
		AuthBaseURL:      GetEnv("AUTH_BASE_URL", ""),
		AuthClientID:     GetEnv("AUTH_CLIENT_ID", ""),
		AuthClientSecret: GetEnv("AUTH_CLIENT_SECRET", ""),
	}, nil
}
