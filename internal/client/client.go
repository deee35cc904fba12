// Package client is the CLI's HTTP client for the gitsweep backend.
//
// CREDENTIAL ATTACHMENT:
// When a CredentialSource supplies a credential it is sent as
// "Authorization: Bearer". Otherwise the request relies on the cookie jar to
// carry the accessToken cookie, the same way a browser would.
//
// ERROR HANDLING:
// Non-2xx responses are decoded from the backend's {"error","code"} envelope
// into *apperror.AppError. Every 401 also fires the OnAuthInvalid hook before
// the error is returned, which is how the Session Resolver learns that the
// stored credential is dead. Nothing is retried.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/model"
)

// CredentialSource supplies the credential to attach as a Bearer header.
type CredentialSource interface {
	Credential() (model.Credential, bool)
}

// Client talks to one backend.
type Client struct {
	baseURL string
	http    *http.Client

	mu            sync.RWMutex
	source        CredentialSource
	onAuthInvalid func(ctx context.Context, rejected model.Credential)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Jar and
// CheckRedirect are overwritten.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.http = &cp
	}
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: backend URL %q must be absolute", baseURL)
	}

	c := &Client{baseURL: u.String(), http: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("client: creating cookie jar: %w", err)
	}
	c.http.Jar = jar
	// Redirects from the backend (logout) point at the web client, which the
	// CLI has no business fetching.
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c, nil
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetCredentialSource installs where Bearer credentials come from.
func (c *Client) SetCredentialSource(src CredentialSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = src
}

// OnAuthInvalid installs the hook run on every 401. rejected is the Bearer
// credential the request carried, or empty when it relied on the cookie jar.
func (c *Client) OnAuthInvalid(fn func(ctx context.Context, rejected model.Credential)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAuthInvalid = fn
}

// SetCookie seeds the jar with the backend's accessToken cookie, as a browser
// would hold it after a cookie-delivery login.
func (c *Client) SetCookie(cookie *http.Cookie) {
	u, _ := url.Parse(c.baseURL)
	c.http.Jar.SetCookies(u, []*http.Cookie{cookie})
}

// WhoAmI asks the backend who the credential belongs to. A non-empty cred is
// sent as the Bearer header regardless of the CredentialSource; an empty one
// falls back to the source, then to the cookie jar.
//
// HTTP: GET /auth/user
func (c *Client) WhoAmI(ctx context.Context, cred model.Credential) (*model.Profile, error) {
	var body model.UserResponse
	if err := c.do(ctx, http.MethodGet, "/auth/user", cred, &body); err != nil {
		return nil, fmt.Errorf("client: who am I: %w", err)
	}
	if !body.IsLoggedIn || body.User == nil {
		return nil, apperror.AuthInvalid(orDefault(body.Message, "not logged in"))
	}
	return body.User, nil
}

// ListRepositories fetches one page (up to 100) of the user's repositories.
//
// HTTP: GET /repos[?page=N]
func (c *Client) ListRepositories(ctx context.Context, page int) ([]model.Repository, error) {
	path := "/repos"
	if page > 1 {
		path += "?page=" + strconv.Itoa(page)
	}

	repos := []model.Repository{}
	if err := c.do(ctx, http.MethodGet, path, "", &repos); err != nil {
		return nil, fmt.Errorf("client: listing repositories: %w", err)
	}
	return repos, nil
}

// DeleteRepository deletes owner/repo.
//
// HTTP: DELETE /repos/{owner}/{repo}
func (c *Client) DeleteRepository(ctx context.Context, owner, repo string) error {
	path := "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
	if err := c.do(ctx, http.MethodDelete, path, "", nil); err != nil {
		return fmt.Errorf("client: deleting %s/%s: %w", owner, repo, err)
	}
	return nil
}

// Logout asks the backend to clear its credential cookie. The backend answers
// with a redirect to the web client, which is not followed.
//
// HTTP: GET /auth/logout
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/auth/logout", "", nil); err != nil {
		return fmt.Errorf("client: logging out: %w", err)
	}
	return nil
}

// envelope is the backend's error body.
type envelope struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"` // /auth/user uses this instead of "error"
}

func (c *Client) do(ctx context.Context, method, path string, cred model.Credential, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if cred == "" {
		c.mu.RLock()
		src := c.source
		c.mu.RUnlock()
		if src != nil {
			cred, _ = src.Credential()
		}
	}
	if cred != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Value())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperror.Network("backend is unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		if out == nil || resp.StatusCode == http.StatusNoContent || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	appErr := decodeError(resp)
	if resp.StatusCode == http.StatusUnauthorized {
		c.mu.RLock()
		hook := c.onAuthInvalid
		c.mu.RUnlock()
		if hook != nil {
			hook(ctx, cred)
		}
	}
	return appErr
}

// decodeError rebuilds the classified error from the envelope. The code is
// trusted when known; otherwise the status decides, as for any upstream.
func decodeError(resp *http.Response) *apperror.AppError {
	var env envelope
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env)

	message := orDefault(env.Error, env.Message)
	appErr := apperror.FromStatus(resp.StatusCode, message)
	if sentinel := apperror.FromCode(env.Code); sentinel != nil {
		appErr.Err = sentinel
	}
	return appErr
}

// Friendly returns the one-line message the CLI shows for err.
func Friendly(err error) string {
	var appErr *apperror.AppError
	switch {
	case errors.Is(err, apperror.ErrAuthMissing), errors.Is(err, apperror.ErrAuthInvalid):
		return "Your session has expired or is invalid. Run `gitsweep login` to sign in again."
	case errors.Is(err, apperror.ErrForbidden):
		if errors.As(err, &appErr) && appErr.Message != "" {
			return appErr.Message
		}
		return "Access forbidden. Check the permissions granted to gitsweep."
	case errors.Is(err, apperror.ErrNotFound):
		return "Repository not found. It may already have been deleted."
	case errors.Is(err, apperror.ErrUpstreamUnavailable):
		return "GitHub is having trouble right now. Please try again later."
	case errors.Is(err, apperror.ErrNetwork):
		return "Could not reach the gitsweep backend. Check your connection and --backend-url."
	case errors.As(err, &appErr) && appErr.Message != "":
		return appErr.Message
	default:
		return err.Error()
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
