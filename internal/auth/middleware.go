package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/gitsweep/internal/model"
)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow the credential.
type contextKey string

const (
	credentialKey contextKey = "credential"
	locationKey   contextKey = "credentialLocation"
)

// CredentialFromRequest finds the bearer credential on an incoming request.
//
// The lookup order is fixed: an explicit "Authorization: Bearer" header wins,
// and only when it is absent does the accessToken cookie count. A malformed
// Authorization header does not fall through to the cookie.
func CredentialFromRequest(r *http.Request, cookieName string) (model.Credential, model.Location, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		value = strings.TrimSpace(value)
		if !ok || !strings.EqualFold(scheme, "Bearer") || value == "" {
			return "", "", false
		}
		return model.Credential(value), model.LocationHeader, true
	}

	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", "", false
	}
	return model.Credential(cookie.Value), model.LocationCookie, true
}

// RequireCredential rejects requests without a credential before they reach a
// handler. It does not validate the credential: only GitHub can, and it will
// on the proxied call. onMissing writes the rejection.
func RequireCredential(cookieName string, onMissing http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, loc, ok := CredentialFromRequest(r, cookieName)
			if !ok {
				onMissing(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCredential(r.Context(), cred, loc)))
		})
	}
}

// WithCredential stores the credential and where it came from in ctx.
func WithCredential(ctx context.Context, cred model.Credential, loc model.Location) context.Context {
	ctx = context.WithValue(ctx, credentialKey, cred)
	return context.WithValue(ctx, locationKey, loc)
}

// CredentialFromContext returns the credential placed by RequireCredential.
func CredentialFromContext(ctx context.Context) (model.Credential, bool) {
	cred, ok := ctx.Value(credentialKey).(model.Credential)
	return cred, ok && cred != ""
}

// LocationFromContext returns where the credential in ctx was found.
func LocationFromContext(ctx context.Context) model.Location {
	loc, _ := ctx.Value(locationKey).(model.Location)
	return loc
}
