// Package session decides, on the client, whether the user is signed in.
//
// RESOLUTION ORDER (Resolve):
//  1. The Credential Store holds credential + profile → authenticated, no
//     network round-trip. This is optimistic; a later 401 undoes it.
//  2. Otherwise ask the backend (GET /auth/user), sending the stored
//     credential as a Bearer header if there is one and the cookie jar
//     otherwise. A positive answer is written back to the store.
//  3. Anything else → anonymous.
//
// The Resolver is the single writer of the in-memory view and the store.
// The client's OnAuthInvalid hook is wired to HandleAuthInvalid, so a 401 for
// the active or stored credential clears both. A 401 for a candidate that was
// never accepted (a mistyped `login --token`) leaves the session alone.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/client"
	"github.com/sakif/gitsweep/internal/model"
	"github.com/sakif/gitsweep/internal/repository"
)

// Resolver owns the client-side session for one backend origin.
type Resolver struct {
	client *client.Client
	store  repository.CredentialStore
	key    string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	current *model.Session
}

// New creates a Resolver for c's backend and installs itself as c's
// credential source and 401 hook.
func New(c *client.Client, store repository.CredentialStore, logger *slog.Logger) (*Resolver, error) {
	key, err := repository.Key(c.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	r := &Resolver{
		client: c,
		store:  store,
		key:    key,
		logger: logger,
		now:    time.Now,
	}
	c.SetCredentialSource(r)
	c.OnAuthInvalid(r.HandleAuthInvalid)
	return r, nil
}

// Credential implements client.CredentialSource from the in-memory view.
func (r *Resolver) Credential() (model.Credential, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil || r.current.Credential == "" {
		return "", false
	}
	return r.current.Credential, true
}

// Current returns a copy of the in-memory session, or nil when anonymous.
func (r *Resolver) Current() *model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	s := *r.current
	return &s
}

// Resolve determines the session at startup. It returns nil, nil when the
// user is anonymous; errors are reserved for failures that leave the answer
// unknown (store unreadable, backend unreachable).
func (r *Resolver) Resolve(ctx context.Context) (*model.Session, error) {
	entry, err := r.store.Get(ctx, r.key)
	switch {
	case err == nil && entry.Profile != nil:
		// STEP 1: optimistic, no network
		r.set(&model.Session{Credential: entry.Credential, Profile: entry.Profile, Source: model.LocationStorage})
		return r.Current(), nil
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("session: reading store: %w", err)
	}

	// STEP 2: ask the backend. With a credential-only entry it goes as a
	// header; with nothing stored the cookie jar is all there is.
	var cred model.Credential
	source := model.LocationCookie
	if entry != nil {
		cred = entry.Credential
		source = model.LocationStorage
	}

	profile, err := r.client.WhoAmI(ctx, cred)
	if err != nil {
		if apperror.IsAuth(err) {
			// HandleAuthInvalid already ran via the hook.
			return nil, nil
		}
		return nil, fmt.Errorf("session: checking with backend: %w", err)
	}

	if cred == "" {
		// Cookie-only session: the credential itself is HttpOnly on the
		// backend's side and never visible here.
		r.set(&model.Session{Profile: profile, Source: source})
		return r.Current(), nil
	}

	if err := r.persist(ctx, cred, profile); err != nil {
		return nil, err
	}
	r.set(&model.Session{Credential: cred, Profile: profile, Source: source})
	return r.Current(), nil
}

// Login verifies cred with the backend and, if it is valid, makes it the
// active session. Used by `gitsweep login --token` and the callback listener.
func (r *Resolver) Login(ctx context.Context, cred model.Credential) (*model.Session, error) {
	if cred == "" {
		return nil, apperror.AuthMissing("no token provided")
	}

	profile, err := r.client.WhoAmI(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("session: verifying token: %w", err)
	}

	if err := r.persist(ctx, cred, profile); err != nil {
		return nil, err
	}
	r.set(&model.Session{Credential: cred, Profile: profile, Source: model.LocationStorage})
	r.logger.Debug("session established", slog.String("login", profile.Login))
	return r.Current(), nil
}

// CompleteCallback handles the client-side callback page of query delivery:
// it takes the token from callbackURL, establishes the session with it and
// returns the same URL with the token removed and the path replaced by
// /dashboard, for a history-replacing redirect.
func (r *Resolver) CompleteCallback(ctx context.Context, callbackURL *url.URL) (*url.URL, error) {
	cred := model.Credential(callbackURL.Query().Get("token"))
	if cred == "" {
		return nil, apperror.AuthMissing("callback carried no token")
	}

	if _, err := r.Login(ctx, cred); err != nil {
		return nil, err
	}
	return ScrubToken(callbackURL), nil
}

// HandleAuthInvalid is the one place a 401 turns into "logged out": it clears
// the store and the in-memory view when rejected is the credential they hold.
// An empty rejected credential means the cookie jar session was refused. The
// backend cookie is left alone; only Logout clears that.
func (r *Resolver) HandleAuthInvalid(ctx context.Context, rejected model.Credential) {
	if !r.holds(ctx, rejected) {
		r.logger.Debug("rejected credential is not the active one; session kept")
		return
	}
	if err := r.store.Clear(ctx, r.key); err != nil {
		r.logger.Warn("clearing stored credential failed", slog.String("error", err.Error()))
	}
	r.set(nil)
}

// holds reports whether rejected is the active or stored credential.
func (r *Resolver) holds(ctx context.Context, rejected model.Credential) bool {
	if rejected == "" {
		return true
	}
	if active, ok := r.Credential(); ok && active == rejected {
		return true
	}
	entry, err := r.store.Get(ctx, r.key)
	return err == nil && entry.Credential == rejected
}

// Logout clears local state first, then asks the backend to clear its cookie.
// Local state is gone even if the backend call fails.
func (r *Resolver) Logout(ctx context.Context) error {
	if err := r.store.Clear(ctx, r.key); err != nil {
		return fmt.Errorf("session: clearing store: %w", err)
	}
	r.set(nil)

	if err := r.client.Logout(ctx); err != nil {
		return fmt.Errorf("session: backend logout: %w", err)
	}
	return nil
}

func (r *Resolver) persist(ctx context.Context, cred model.Credential, profile *model.Profile) error {
	entry := &model.StoredCredential{Credential: cred, Profile: profile, UpdatedAt: r.now().UTC()}
	if err := r.store.Set(ctx, r.key, entry); err != nil {
		return fmt.Errorf("session: storing credential: %w", err)
	}
	return nil
}

// set replaces the in-memory view. Last write wins.
func (r *Resolver) set(s *model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = s
}

// ScrubToken returns u pointing at /dashboard without the token parameter.
func ScrubToken(u *url.URL) *url.URL {
	out := *u
	q := out.Query()
	q.Del("token")
	out.RawQuery = q.Encode()
	out.Path = "/dashboard"
	out.RawPath = ""
	return &out
}
