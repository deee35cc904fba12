package memory

import (
	"testing"

	"github.com/sakif/gitsweep/internal/repository"
	"github.com/sakif/gitsweep/internal/repository/repositorytest"
)

func TestCredentialStore(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T) repository.CredentialStore {
		return New()
	})
}
