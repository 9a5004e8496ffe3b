// Package platform exposes the remote capability groups the application
// depends on — identity, blob storage, inference, and key-value persistence —
// behind a single facade whose backing clients become available
// asynchronously after process start.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
)

// ErrUnavailable is returned by every capability call that runs before the
// platform handle became ready, or after the readiness handshake failed.
var ErrUnavailable = errors.New("platform unavailable")

// ReadyState tracks the one-time readiness handshake.
type ReadyState string

const (
	ReadyStateUnready ReadyState = "unready"
	ReadyStateReady   ReadyState = "ready"
	ReadyStateFailed  ReadyState = "failed"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultReadyTimeout = 10 * time.Second
)

// Identity is the payload the platform reports for a signed-in user.
type Identity struct {
	ID       string `json:"sub"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Session is the ephemeral, facade-owned state: it is rebuilt on every
// process start by the readiness handshake and never persisted.
type Session struct {
	SignedIn  bool
	Identity  *Identity
	Ready     ReadyState
	LastError string
	InFlight  bool
}

// Handle bundles the remote clients behind the facade. It is produced by a
// Dialer once the platform is reachable.
type Handle struct {
	Storage    *storage.Client
	KV         *firestore.Client
	AI         *VertexModels
	Identity   *IdentityClient
	Bucket     string
	Collection string
}

// Dialer attempts to construct the platform handle. It is called repeatedly
// by the readiness handshake until it succeeds or the handshake times out.
type Dialer func(ctx context.Context) (*Handle, error)

// Options tune the readiness handshake.
type Options struct {
	PollInterval time.Duration
	ReadyTimeout time.Duration
	Logger       *slog.Logger
}

// Facade is the single owner of session state and the sole entry point to
// the capability groups. Capability calls never panic on an unready
// platform; they record the failure in session state and return an error
// the caller must check.
type Facade struct {
	mu      sync.Mutex
	session Session
	handle  *Handle

	ready chan struct{}
	log   *slog.Logger
}

// New creates a facade and starts its readiness handshake. The handshake
// runs at most once per facade: it dials immediately, then polls at the
// configured interval until the handle appears or the timeout fires.
func New(ctx context.Context, dial Dialer, opts Options) *Facade {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReadyTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	f := &Facade{
		session: Session{Ready: ReadyStateUnready},
		ready:   make(chan struct{}),
		log:     opts.Logger,
	}
	go f.handshake(ctx, dial, opts.PollInterval, opts.ReadyTimeout)
	return f
}

// handshake polls the dialer until the platform handle exists. On success it
// stops the timers deterministically, transitions to Ready and triggers an
// identity check; on timeout it transitions to Failed exactly once and never
// polls again.
func (f *Facade) handshake(ctx context.Context, dial Dialer, interval, timeout time.Duration) {
	defer close(f.ready)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		handle, err := dial(ctx)
		if err == nil {
			f.mu.Lock()
			f.handle = handle
			f.session.Ready = ReadyStateReady
			f.mu.Unlock()
			f.log.Info("Platform handle ready.")
			if _, err := f.CheckStatus(ctx); err != nil {
				f.log.Warn("Initial identity check failed.", "error", err)
			}
			return
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			msg := fmt.Sprintf("platform did not become ready within %s: %v", timeout, err)
			f.mu.Lock()
			f.session.Ready = ReadyStateFailed
			f.session.LastError = msg
			f.mu.Unlock()
			f.log.Error("Platform readiness handshake failed.", "timeout", timeout.String(), "error", err)
			return
		case <-ctx.Done():
			f.mu.Lock()
			f.session.Ready = ReadyStateFailed
			f.session.LastError = fmt.Sprintf("platform readiness aborted: %v", ctx.Err())
			f.mu.Unlock()
			return
		}
	}
}

// WaitReady blocks until the readiness handshake settles or the context is
// cancelled. It returns an error if the handshake ended in the failed state.
func (f *Facade) WaitReady(ctx context.Context) error {
	select {
	case <-f.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session.Ready != ReadyStateReady {
		return fmt.Errorf("%w: %s", ErrUnavailable, f.session.LastError)
	}
	return nil
}

// Session returns a copy of the current session state.
func (f *Facade) Session() Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

// Blob returns the blob-storage capability view.
func (f *Facade) Blob() *BlobStore { return &BlobStore{f: f} }

// KV returns the key-value capability view.
func (f *Facade) KV() *KVStore { return &KVStore{f: f} }

// AI returns the inference capability view.
func (f *Facade) AI() *AI { return &AI{f: f} }

// begin marks a capability call in flight and returns the platform handle,
// or records the unavailability and fails fast when there is none.
func (f *Facade) begin() (*Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handle == nil || f.session.Ready != ReadyStateReady {
		f.session.LastError = ErrUnavailable.Error()
		f.session.InFlight = false
		return nil, ErrUnavailable
	}
	f.session.InFlight = true
	return f.handle, nil
}

// succeed settles a capability call without touching the error channel.
func (f *Facade) succeed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session.InFlight = false
}

// fail records a single human-readable message in the shared error state and
// settles the in-flight flag. Failures reachable from authenticated
// operations also collapse the session to signed-out: most failures stem
// from an expired or missing session, so forcing re-authentication beats
// silently retrying with a stale one.
func (f *Facade) fail(op string, err error, authenticated bool) error {
	wrapped := fmt.Errorf("%s: %w", op, err)
	f.mu.Lock()
	f.session.LastError = wrapped.Error()
	f.session.InFlight = false
	if authenticated {
		f.session.SignedIn = false
		f.session.Identity = nil
	}
	f.mu.Unlock()
	f.log.Error("Platform call failed.", "op", op, "error", err)
	return wrapped
}
