package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// IdentityClient talks to the platform auth service. Tokens are held in
// memory only; the session is rebuilt from scratch on every process start.
type IdentityClient struct {
	baseURL string
	conf    *oauth2.Config
	http    *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

// NewIdentityClient creates a client for the auth service rooted at baseURL.
func NewIdentityClient(baseURL, clientID, clientSecret string) *IdentityClient {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &IdentityClient{
		baseURL: baseURL,
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: baseURL + "/oauth/token",
			},
		},
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Authenticate exchanges user credentials for a token and fetches the
// identity payload.
func (c *IdentityClient) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	token, err := c.conf.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return c.fetchIdentity(ctx, token)
}

// Status reports whether a session exists. A nil identity with a nil error
// is the platform explicitly saying "not signed in" — it is not a failure.
func (c *IdentityClient) Status(ctx context.Context) (*Identity, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == nil {
		return nil, nil
	}
	return c.fetchIdentity(ctx, token)
}

// Refresh forces a token refresh and re-fetches the identity payload.
func (c *IdentityClient) Refresh(ctx context.Context) (*Identity, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == nil {
		return nil, nil
	}

	// Expire the held token so the token source performs a real refresh.
	stale := *token
	stale.Expiry = time.Now().Add(-time.Minute)
	fresh, err := c.conf.TokenSource(ctx, &stale).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	c.mu.Lock()
	c.token = fresh
	c.mu.Unlock()
	return c.fetchIdentity(ctx, fresh)
}

// Revoke invalidates the remote session and always drops the local token,
// regardless of whether the remote call succeeded.
func (c *IdentityClient) Revoke(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.token = nil
	c.mu.Unlock()
	if token == nil {
		return nil
	}

	form := url.Values{"token": {token.AccessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/revoke", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("revoke call failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("revoke call returned status %d", resp.StatusCode)
	}
	return nil
}

// fetchIdentity resolves the identity payload for a token. An HTTP 401 is
// the negative result (nil, nil): the platform reports no session.
func (c *IdentityClient) fetchIdentity(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo call returned status %d", resp.StatusCode)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("failed to decode identity payload: %w", err)
	}
	return &identity, nil
}

// CheckStatus asks the platform whether a session exists and updates the
// local session state accordingly. A detected "not signed in" answer sets
// the session to signed-out without surfacing an error.
func (f *Facade) CheckStatus(ctx context.Context) (*Identity, error) {
	h, err := f.begin()
	if err != nil {
		return nil, err
	}

	identity, err := h.Identity.Status(ctx)
	if err != nil {
		return nil, f.fail("identity status check", err, true)
	}
	f.setIdentity(identity)
	return identity, nil
}

// SignIn authenticates with the platform and records the signed-in session.
func (f *Facade) SignIn(ctx context.Context, username, password string) (*Identity, error) {
	h, err := f.begin()
	if err != nil {
		return nil, err
	}

	identity, err := h.Identity.Authenticate(ctx, username, password)
	if err != nil {
		return nil, f.fail("sign in", err, true)
	}
	f.setIdentity(identity)
	return identity, nil
}

// RefreshIdentity re-fetches the identity payload, refreshing the token.
func (f *Facade) RefreshIdentity(ctx context.Context) (*Identity, error) {
	h, err := f.begin()
	if err != nil {
		return nil, err
	}

	identity, err := h.Identity.Refresh(ctx)
	if err != nil {
		return nil, f.fail("identity refresh", err, true)
	}
	f.setIdentity(identity)
	return identity, nil
}

// SignOut clears the local session unconditionally once the remote call
// settles, so a sign-out attempt never leaves the session signed-in.
func (f *Facade) SignOut(ctx context.Context) error {
	h, err := f.begin()
	if err != nil {
		return err
	}

	revokeErr := h.Identity.Revoke(ctx)
	f.mu.Lock()
	f.session.SignedIn = false
	f.session.Identity = nil
	f.session.InFlight = false
	f.mu.Unlock()
	if revokeErr != nil {
		f.log.Warn("Remote sign-out failed; local session cleared anyway.", "error", revokeErr)
	}
	return nil
}

func (f *Facade) setIdentity(identity *Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session.SignedIn = identity != nil
	f.session.Identity = identity
	f.session.InFlight = false
}
