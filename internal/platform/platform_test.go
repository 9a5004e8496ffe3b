package platform

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offlineIdentity returns an identity client whose Status short-circuits to
// the signed-out negative result, so readiness tests never touch the network.
func offlineIdentity() *IdentityClient {
	return NewIdentityClient("http://127.0.0.1:0", "client", "secret")
}

func TestHandshake_ReadyOnFirstDial(t *testing.T) {
	dial := func(ctx context.Context) (*Handle, error) {
		return &Handle{Identity: offlineIdentity()}, nil
	}
	f := New(context.Background(), dial, Options{})

	require.NoError(t, f.WaitReady(context.Background()))

	session := f.Session()
	assert.Equal(t, ReadyStateReady, session.Ready)
	assert.False(t, session.SignedIn, "no token yet, identity check reports signed-out")
	assert.Nil(t, session.Identity)
}

func TestHandshake_PollsUntilHandleAppears(t *testing.T) {
	var attempts atomic.Int32
	dial := func(ctx context.Context) (*Handle, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("credentials not mounted yet")
		}
		return &Handle{Identity: offlineIdentity()}, nil
	}
	f := New(context.Background(), dial, Options{PollInterval: 5 * time.Millisecond, ReadyTimeout: time.Second})

	require.NoError(t, f.WaitReady(context.Background()))
	assert.GreaterOrEqual(t, attempts.Load(), int32(3))
	assert.Equal(t, ReadyStateReady, f.Session().Ready)
}

func TestHandshake_FailsOnceAfterTimeout(t *testing.T) {
	var attempts atomic.Int32
	dial := func(ctx context.Context) (*Handle, error) {
		attempts.Add(1)
		return nil, errors.New("platform never came up")
	}
	f := New(context.Background(), dial, Options{PollInterval: 5 * time.Millisecond, ReadyTimeout: 40 * time.Millisecond})

	err := f.WaitReady(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	session := f.Session()
	assert.Equal(t, ReadyStateFailed, session.Ready)
	assert.Contains(t, session.LastError, "did not become ready")

	// No further polling after the timeout fired.
	settled := attempts.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, attempts.Load())
}

func TestCapabilityCalls_FailFastWhileUnready(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	dial := func(ctx context.Context) (*Handle, error) {
		<-block
		return nil, errors.New("blocked")
	}
	f := New(context.Background(), dial, Options{PollInterval: time.Hour, ReadyTimeout: time.Hour})

	ctx := context.Background()

	_, err := f.KV().Get(ctx, "record:x")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = f.Blob().Upload(ctx, File{Name: "r.pdf", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = f.AI().Feedback(ctx, "gs://b/o.pdf", "rate this")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = f.CheckStatus(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	session := f.Session()
	assert.Equal(t, ReadyStateUnready, session.Ready)
	assert.Equal(t, ErrUnavailable.Error(), session.LastError)
	assert.False(t, session.InFlight)
}

func TestWaitReady_ContextCancelled(t *testing.T) {
	dial := func(ctx context.Context) (*Handle, error) {
		return nil, errors.New("never ready")
	}
	f := New(context.Background(), dial, Options{PollInterval: time.Hour, ReadyTimeout: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.WaitReady(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSplitRef(t *testing.T) {
	tests := []struct {
		ref     string
		bucket  string
		object  string
		wantErr bool
	}{
		{ref: "gs://resumes/uploads/a.pdf", bucket: "resumes", object: "uploads/a.pdf"},
		{ref: "uploads/a.pdf", bucket: "default", object: "uploads/a.pdf"},
		{ref: "gs://only-bucket", wantErr: true},
		{ref: "", wantErr: true},
	}
	for _, tt := range tests {
		bucket, object, err := splitRef(tt.ref, "default")
		if tt.wantErr {
			assert.Error(t, err, tt.ref)
			continue
		}
		require.NoError(t, err, tt.ref)
		assert.Equal(t, tt.bucket, bucket)
		assert.Equal(t, tt.object, object)
	}
}
