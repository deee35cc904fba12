package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/model"
)

// Name rules GitHub enforces. Checking them here turns a malformed path into
// a 400 before any upstream call is spent on it.
var (
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
	repoPattern  = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)
)

// RepoService lists and deletes the authenticated user's repositories.
type RepoService struct {
	github GitHub
	logger *slog.Logger
}

// NewRepoService creates a RepoService.
func NewRepoService(gh GitHub, logger *slog.Logger) *RepoService {
	return &RepoService{github: gh, logger: logger}
}

// List returns one page (up to 100) of the user's repositories.
func (s *RepoService) List(ctx context.Context, cred model.Credential, page int) ([]model.Repository, error) {
	if page < 0 {
		return nil, apperror.ValidationFailed("page", "page must not be negative")
	}

	repos, err := s.github.ListRepositories(ctx, cred, page)
	if err != nil {
		return nil, fmt.Errorf("service/repo: listing: %w", err)
	}

	s.logger.Info("repositories fetched", slog.Int("count", len(repos)))
	return repos, nil
}

// Delete removes owner/repo. It is not idempotent: deleting a repository that
// is already gone reports apperror.ErrNotFound.
func (s *RepoService) Delete(ctx context.Context, cred model.Credential, owner, repo string) error {
	if err := ValidateFullName(owner, repo); err != nil {
		return err
	}

	if err := s.github.DeleteRepository(ctx, cred, owner, repo); err != nil {
		return fmt.Errorf("service/repo: deleting %s/%s: %w", owner, repo, err)
	}

	s.logger.Info("repository deleted",
		slog.String("owner", owner),
		slog.String("repo", repo),
	)
	return nil
}

// ValidateFullName checks owner and repo against GitHub's naming rules.
func ValidateFullName(owner, repo string) error {
	if !ownerPattern.MatchString(owner) {
		return apperror.ValidationFailed("owner", fmt.Sprintf("invalid repository owner %q", owner))
	}
	if repo == "." || repo == ".." || !repoPattern.MatchString(repo) {
		return apperror.ValidationFailed("repo", fmt.Sprintf("invalid repository name %q", repo))
	}
	return nil
}
