// Package auth implements the backend half of the GitHub login: the OAuth
// exchange, the signed state that protects the redirect round-trip, the
// accessToken cookie and extraction of the credential from incoming requests.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. GET /auth/github → a signed state is stored in a cookie, browser goes to GitHub
//  2. GitHub calls back /auth/github/callback with code + state
//  3. State cookie and query state must match and verify
//  4. Code is exchanged for an access token (the credential)
//  5. Credential is delivered as an HttpOnly cookie, or via ?token= to the client
//  6. Every later call presents it as a Bearer header or that cookie
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const (
	stateIssuer = "gitsweep"

	// StateTTL bounds how long a user may sit on GitHub's consent page.
	StateTTL = 10 * time.Minute
)

// StateSigner issues and verifies OAuth state values.
//
// The state is an HS256 JWT with a random xid as its ID. Signing it means the
// backend needs no table of pending logins: the cookie and the value GitHub
// echoes back are compared, and the signature plus expiry prove this server
// minted it recently.
type StateSigner struct {
	secret []byte
	now    func() time.Time
}

// NewStateSigner creates a StateSigner. An empty secret generates a random
// 32-byte key, which is fine for a single instance but invalidates in-flight
// logins on restart.
func NewStateSigner(secret string) (*StateSigner, error) {
	if secret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("auth: generating state key: %w", err)
		}
		return &StateSigner{secret: key, now: time.Now}, nil
	}
	if len(secret) < 16 {
		return nil, errors.New("auth: state secret must be at least 16 characters")
	}
	return &StateSigner{secret: []byte(secret), now: time.Now}, nil
}

// Issue creates a new signed state valid for StateTTL.
func (s *StateSigner) Issue() (string, error) {
	return s.issueWithTTL(StateTTL)
}

func (s *StateSigner) issueWithTTL(ttl time.Duration) (string, error) {
	now := s.now()

	c := jwt.RegisteredClaims{
		ID:        xid.New().String(),
		Issuer:    stateIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing state: %w", err)
	}
	return signed, nil
}

// Verify checks that the state returned by GitHub equals the one in the
// cookie and that it is a valid, unexpired state minted by this signer.
func (s *StateSigner) Verify(cookieState, queryState string) error {
	if cookieState == "" {
		return errors.New("auth: missing state cookie")
	}
	if cookieState != queryState {
		return errors.New("auth: state mismatch")
	}

	token, err := jwt.ParseWithClaims(
		queryState,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("auth: state expired")
		}
		return fmt.Errorf("auth: invalid state: %w", err)
	}

	c, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || c.ID == "" {
		return fmt.Errorf("auth: invalid state claims")
	}
	return nil
}
