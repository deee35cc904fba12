// Package repositorytest holds the behaviour every repository.CredentialStore
// must share, so each implementation runs the same checks.
package repositorytest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/model"
	"github.com/sakif/gitsweep/internal/repository"
)

const (
	originA = "http://localhost:8080"
	originB = "https://gitsweep.example.com"
)

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) repository.CredentialStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("get unknown is not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, originA)
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
	})

	t.Run("set then get", func(t *testing.T) {
		s := newStore(t)
		in := &model.StoredCredential{
			Credential: "gho_abc",
			Profile:    &model.Profile{ID: 1, Login: "octocat", AvatarURL: "https://a/1"},
			UpdatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		require.NoError(t, s.Set(ctx, originA, in))

		got, err := s.Get(ctx, originA)
		require.NoError(t, err)
		assert.Equal(t, model.Credential("gho_abc"), got.Credential)
		require.NotNil(t, got.Profile)
		assert.Equal(t, "octocat", got.Profile.Login)
		assert.True(t, in.UpdatedAt.Equal(got.UpdatedAt), "updatedAt %v != %v", got.UpdatedAt, in.UpdatedAt)
	})

	t.Run("credential without profile", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, originA, &model.StoredCredential{Credential: "gho_abc"}))

		got, err := s.Get(ctx, originA)
		require.NoError(t, err)
		assert.Equal(t, model.Credential("gho_abc"), got.Credential)
		assert.Nil(t, got.Profile)
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("set replaces", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, originA, &model.StoredCredential{Credential: "gho_old", Profile: &model.Profile{Login: "old"}}))
		require.NoError(t, s.Set(ctx, originA, &model.StoredCredential{Credential: "gho_new"}))

		got, err := s.Get(ctx, originA)
		require.NoError(t, err)
		assert.Equal(t, model.Credential("gho_new"), got.Credential)
		assert.Nil(t, got.Profile, "profile is written together with the credential")
	})

	t.Run("empty credential rejected", func(t *testing.T) {
		s := newStore(t)
		err := s.Set(ctx, originA, &model.StoredCredential{})
		assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
	})

	t.Run("origins are independent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, originA, &model.StoredCredential{Credential: "gho_a"}))
		require.NoError(t, s.Set(ctx, originB, &model.StoredCredential{Credential: "gho_b"}))
		require.NoError(t, s.Clear(ctx, originA))

		_, err := s.Get(ctx, originA)
		assert.True(t, errors.Is(err, apperror.ErrNotFound))

		got, err := s.Get(ctx, originB)
		require.NoError(t, err)
		assert.Equal(t, model.Credential("gho_b"), got.Credential)
	})

	t.Run("clear absent is fine", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Clear(ctx, originA))
		assert.NoError(t, s.Clear(ctx, originA))
	})
}
