// Package directory is the CLI's in-memory view of the user's repositories:
// the last listing fetched from the backend, narrowed by kind and name.
//
// A Listing never outlives one command. Deleting a repository removes it
// from the Listing only after the backend confirmed the delete.
package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/model"
)

// PageSize is the backend's page size. A shorter page is the last one.
const PageSize = 100

// Kind selects repositories by visibility or state.
type Kind string

const (
	KindAll      Kind = "all"
	KindPublic   Kind = "public"
	KindPrivate  Kind = "private"
	KindForked   Kind = "forked"
	KindArchived Kind = "archived"
)

// Kinds lists every Kind in display order.
var Kinds = []Kind{KindAll, KindPublic, KindPrivate, KindForked, KindArchived}

// ParseKind accepts a Kind name, case-insensitively. Empty means all.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindAll, nil
	}
	k := Kind(strings.ToLower(s))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", apperror.ValidationFailed("filter",
		fmt.Sprintf("unknown filter %q (want one of all, public, private, forked, archived)", s))
}

// Matches reports whether r belongs to k.
func (k Kind) Matches(r model.Repository) bool {
	switch k {
	case KindPublic:
		return !r.Private
	case KindPrivate:
		return r.Private
	case KindForked:
		return r.Fork
	case KindArchived:
		return r.Archived
	default:
		return true
	}
}

// Listing holds fetched repositories in the order the backend returned them.
type Listing struct {
	repos []model.Repository
}

// NewListing wraps repos. The slice is copied.
func NewListing(repos []model.Repository) *Listing {
	return &Listing{repos: append([]model.Repository(nil), repos...)}
}

// Len returns the number of repositories held.
func (l *Listing) Len() int {
	return len(l.repos)
}

// All returns every repository held.
func (l *Listing) All() []model.Repository {
	return append([]model.Repository{}, l.repos...)
}

// View returns the repositories matching kind whose name contains query,
// ignoring case. Both narrowings apply together. The result is never nil.
func (l *Listing) View(kind Kind, query string) []model.Repository {
	query = strings.ToLower(strings.TrimSpace(query))
	out := []model.Repository{}
	for _, r := range l.repos {
		if !kind.Matches(r) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(r.Name), query) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Find returns the repository with fullName.
func (l *Listing) Find(fullName string) (model.Repository, bool) {
	for _, r := range l.repos {
		if strings.EqualFold(r.FullName, fullName) {
			return r, true
		}
	}
	return model.Repository{}, false
}

// Remove drops fullName from the listing and reports whether it was there.
func (l *Listing) Remove(fullName string) bool {
	for i, r := range l.repos {
		if strings.EqualFold(r.FullName, fullName) {
			l.repos = append(l.repos[:i], l.repos[i+1:]...)
			return true
		}
	}
	return false
}

// PageFunc fetches one page, 1-based.
type PageFunc func(ctx context.Context, page int) ([]model.Repository, error)

// FetchAll walks pages from 1 until a page comes back shorter than PageSize.
func FetchAll(ctx context.Context, fetch PageFunc) (*Listing, error) {
	var all []model.Repository
	for page := 1; ; page++ {
		repos, err := fetch(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("directory: fetching page %d: %w", page, err)
		}
		all = append(all, repos...)
		if len(repos) < PageSize {
			return &Listing{repos: all}, nil
		}
	}
}

// SplitFullName splits "owner/repo". Name validation is left to the backend.
func SplitFullName(fullName string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", apperror.ValidationFailed("repository",
			fmt.Sprintf("%q is not in OWNER/REPO form", fullName))
	}
	return owner, repo, nil
}
