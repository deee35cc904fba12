// Package github is the backend's client for the GitHub REST API.
//
// Every method borrows the caller's credential for exactly one request: the
// credential is attached as a Bearer header by an oauth2 transport built per
// call, and is never stored on the Client or written to a log.
//
// ERROR CLASSIFICATION:
// Non-2xx responses become *apperror.AppError via apperror.FromStatus, so
// handlers can map them with errors.Is without knowing about GitHub:
//
//	401 → ErrAuthInvalid   403 → ErrForbidden   404 → ErrNotFound
//	5xx → ErrUpstreamUnavailable   other → ErrUpstream
//
// A request that never got a response (DNS, refused, reset) is ErrNetwork.
// Nothing here retries.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/model"
)

const (
	// DefaultAPIURL is GitHub's public REST endpoint.
	DefaultAPIURL = "https://api.github.com"

	// PerPage is the page size for repository listings (GitHub's maximum).
	PerPage = 100

	apiVersion = "2022-11-28"
	mediaType  = "application/vnd.github+json"
)

// Client talks to the GitHub REST API on behalf of a user.
type Client struct {
	baseURL string
	base    *http.Client
}

// New creates a Client for the given API base URL. base is the transport the
// per-call oauth2 client wraps; nil means http.DefaultClient.
func New(baseURL string, base *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if base == nil {
		base = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), base: base}
}

// User returns the profile of the credential's owner.
//
// HTTP: GET /user
func (c *Client) User(ctx context.Context, cred model.Credential) (*model.Profile, error) {
	var p model.Profile
	if err := c.do(ctx, cred, http.MethodGet, "/user", nil, &p); err != nil {
		return nil, fmt.Errorf("github: fetching user: %w", err)
	}
	return &p, nil
}

// ListRepositories returns one page of the user's repositories, at most
// PerPage entries. page <= 1 requests the first page.
//
// HTTP: GET /user/repos?per_page=100[&page=N]
func (c *Client) ListRepositories(ctx context.Context, cred model.Credential, page int) ([]model.Repository, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(PerPage))
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}

	repos := []model.Repository{}
	if err := c.do(ctx, cred, http.MethodGet, "/user/repos", q, &repos); err != nil {
		return nil, fmt.Errorf("github: listing repositories: %w", err)
	}
	return repos, nil
}

// DeleteRepository deletes owner/repo. GitHub answers 204 on success.
//
// HTTP: DELETE /repos/{owner}/{repo}
func (c *Client) DeleteRepository(ctx context.Context, cred model.Credential, owner, repo string) error {
	path := "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
	if err := c.do(ctx, cred, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("github: deleting %s/%s: %w", owner, repo, err)
	}
	return nil
}

// do sends one authenticated request and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, cred model.Credential, method, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", mediaType)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	resp, err := c.httpClient(ctx, cred).Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperror.Network("GitHub is unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// httpClient builds a client that injects cred as a Bearer token on top of
// the configured base transport.
func (c *Client) httpClient(ctx context.Context, cred model.Credential) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.Value(), TokenType: "Bearer"})
	return oauth2.NewClient(ctx, src)
}

// errorBody is GitHub's error document.
type errorBody struct {
	Message string `json:"message"`
}

func classify(resp *http.Response) error {
	var body errorBody
	// Best effort: a 502 from a proxy may not carry JSON at all.
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	return apperror.FromStatus(resp.StatusCode, body.Message)
}

// IsUnavailable reports whether err means GitHub itself could not serve the
// request, as opposed to rejecting it.
func IsUnavailable(err error) bool {
	return errors.Is(err, apperror.ErrUpstreamUnavailable) || errors.Is(err, apperror.ErrNetwork)
}
