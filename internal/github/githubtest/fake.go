// Package githubtest provides an in-memory GitHub for tests: the OAuth token
// endpoint plus the three REST routes the backend proxies.
package githubtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/gitsweep/internal/model"
)

const (
	// Code is the only authorization code the fake token endpoint accepts.
	Code = "good-code"
	// Token is the credential issued for Code.
	Token = "gho_fake_token"
)

// Server is a fake GitHub. Mutations through the REST API are visible to
// later calls, so delete round-trips can be tested.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	valid   map[string]bool
	profile model.Profile
	repos   map[string]model.Repository

	forceStatus int
	requests    map[string]int
}

// NewServer starts a fake GitHub that accepts Token and knows the given
// repositories. It is closed when the test ends.
func NewServer(t testing.TB, repos ...model.Repository) *Server {
	t.Helper()

	s := &Server{
		valid:    map[string]bool{Token: true},
		profile:  model.Profile{ID: 583231, Login: "octocat", Name: "The Octocat", AvatarURL: "https://avatars.githubusercontent.com/u/583231"},
		repos:    make(map[string]model.Repository),
		requests: make(map[string]int),
	}
	for _, r := range repos {
		s.repos[r.FullName] = r
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", s.handleToken)
	mux.HandleFunc("GET /user", s.rest(s.handleUser))
	mux.HandleFunc("GET /user/repos", s.rest(s.handleList))
	mux.HandleFunc("DELETE /repos/{owner}/{repo}", s.rest(s.handleDelete))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Repo builds a repository record owned by owner.
func Repo(id int64, owner, name string) model.Repository {
	return model.Repository{
		ID:       id,
		Name:     name,
		FullName: owner + "/" + name,
		Owner:    model.Owner{Login: owner},
		HTMLURL:  "https://github.com/" + owner + "/" + name,
	}
}

// AuthURL and TokenURL are the OAuth endpoints to configure a provider with.
func (s *Server) AuthURL() string  { return s.URL + "/login/oauth/authorize" }
func (s *Server) TokenURL() string { return s.URL + "/login/oauth/access_token" }

// Revoke makes token invalid, as if the user revoked it on GitHub.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.valid, token)
}

// Fail makes every REST call answer status until Fail(0).
func (s *Server) Fail(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceStatus = status
}

// Has reports whether fullName still exists.
func (s *Server) Has(fullName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.repos[fullName]
	return ok
}

// Count returns how many REST calls matched "METHOD path".
func (s *Server) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != Code {
		writeJSON(w, http.StatusOK, map[string]string{
			"error":             "bad_verification_code",
			"error_description": "The code passed is incorrect or expired.",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": Token,
		"token_type":   "bearer",
		"scope":        "repo,delete_repo,user",
	})
}

// rest guards a REST route with the Bearer check and any forced failure.
func (s *Server) rest(next func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.Method+" "+r.URL.Path]++
		force := s.forceStatus
		token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		ok := s.valid[token]
		s.mu.Unlock()

		if force != 0 {
			writeJSON(w, force, map[string]string{"message": http.StatusText(force)})
			return
		}
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p := s.profile
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 30
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	all := make([]model.Repository, 0, len(s.repos))
	for _, repo := range s.repos {
		all = append(all, repo)
	}
	s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := (page - 1) * perPage
	if start > len(all) {
		start = len(all)
	}
	end := min(start+perPage, len(all))
	writeJSON(w, http.StatusOK, all[start:end])
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("owner") + "/" + r.PathValue("repo")

	s.mu.Lock()
	_, ok := s.repos[key]
	delete(s.repos, key)
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
