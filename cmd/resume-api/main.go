package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/resumind/resumind/internal/httpapi"
	"github.com/resumind/resumind/internal/platform"
	"github.com/resumind/resumind/internal/services"
)

var (
	apiInstance *httpapi.API
	once        sync.Once
	initErr     error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("SubmitResume", withAPI(func(a *httpapi.API) http.HandlerFunc { return a.SubmitResume }))
	functions.HTTP("GetResume", withAPI(func(a *httpapi.API) http.HandlerFunc { return a.GetResume }))
	functions.HTTP("ListResumes", withAPI(func(a *httpapi.API) http.HandlerFunc { return a.ListResumes }))
}

// main is required by the Go Functions Framework.
func main() {}

// withAPI defers service construction to the first request, sync.Once style,
// so a cold start that cannot reach the platform fails every request loudly
// instead of crashing the process.
func withAPI(pick func(*httpapi.API) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			apiInstance, initErr = buildAPI(context.Background())
		})
		if initErr != nil {
			slog.Error("Critical error during service initialization", "error", initErr)
			http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
			return
		}
		pick(apiInstance)(w, r)
	}
}

// buildAPI loads configuration, runs the platform readiness handshake, and
// wires the pipeline and read paths.
func buildAPI(ctx context.Context) (*httpapi.API, error) {
	cfg, err := platform.LoadConfig()
	if err != nil {
		return nil, err
	}

	facade := platform.New(ctx, platform.DefaultDialer(cfg), platform.Options{})
	if err := facade.WaitReady(ctx); err != nil {
		return nil, err
	}

	submitter := services.NewSubmitter(facade.Blob(), facade.KV(), facade.AI(), services.PreviewRenderer{}, slog.Default())
	library := services.NewLibrary(facade.KV(), facade.Blob(), slog.Default())
	slog.Info("Resume API initialized.", "bucket", cfg.ResumeBucket, "collection", cfg.KVCollection)
	return httpapi.New(submitter, library, slog.Default()), nil
}
