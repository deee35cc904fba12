// Package service contains the business logic layer of the backend.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses, sets cookies
//	Service (Business layer) → validates input, orchestrates upstream calls
//	Upstream (Data layer)    → GitHub's REST API, via internal/github
//
// There is no database behind the backend: GitHub owns every record this
// application touches. The service layer still earns its place because it
// keeps validation and the login orchestration away from HTTP, and because it
// depends on the GitHub interface below rather than on *github.Client, so
// tests can swap in an in-memory fake.
//
// CREDENTIALS ARE BORROWED:
// Every method takes the caller's credential as a parameter and hands it to
// exactly one upstream call. Nothing here stores or logs it.
package service

import (
	"context"

	"github.com/sakif/gitsweep/internal/github"
	"github.com/sakif/gitsweep/internal/model"
)

// GitHub is the subset of the GitHub REST API the backend proxies.
type GitHub interface {
	User(ctx context.Context, cred model.Credential) (*model.Profile, error)
	ListRepositories(ctx context.Context, cred model.Credential, page int) ([]model.Repository, error)
	DeleteRepository(ctx context.Context, cred model.Credential, owner, repo string) error
}

// compile-time check that the real client satisfies the interface
var _ GitHub = (*github.Client)(nil)

// Exchanger turns an OAuth authorization code into a credential.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (model.Credential, error)
}
