package session

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sakif/gitsweep/internal/model"
)

// ErrCookieDelivery is returned by Callback.Wait when the browser reached the
// dashboard without ever passing a token through the callback page. The
// backend is using cookie delivery, and its HttpOnly cookie lives in the
// browser where the CLI cannot read it.
var ErrCookieDelivery = errors.New("backend delivered the credential as a browser cookie; use `gitsweep login --token`")

// ErrLoginFailed is returned when the backend sent the browser to the client
// root, which it does for every failed or denied login.
var ErrLoginFailed = errors.New("login was denied or failed")

// Callback stands in for the web client on its own address, so the backend's
// redirects after login land on the CLI.
//
// ROUTES:
//
//	/auth/callback?token=  verify and store the token, then 303 to the scrubbed /dashboard URL
//	/dashboard             success page (or cookie delivery, if no token came first)
//	/                      the backend's failure redirect
type Callback struct {
	resolver *Resolver
	logger   *slog.Logger
	listener net.Listener
	server   *http.Server

	done      chan result
	once      sync.Once
	closeOnce sync.Once

	mu      sync.Mutex
	session *model.Session
}

type result struct {
	session *model.Session
	err     error
}

// ListenCallback binds addr and starts serving. addr is the host:port of the
// backend's CLIENT URL.
func ListenCallback(addr string, r *Resolver, logger *slog.Logger) (*Callback, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("session: listening on %s: %w", addr, err)
	}

	c := &Callback{
		resolver: r,
		logger:   logger,
		listener: ln,
		done:     make(chan result, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/callback", c.handleCallback)
	mux.HandleFunc("/dashboard", c.handleDashboard)
	mux.HandleFunc("/", c.handleRoot)

	c.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Debug("callback listener started", slog.String("addr", ln.Addr().String()))
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.finish(nil, fmt.Errorf("session: callback listener: %w", err))
		}
	}()
	return c, nil
}

// Addr returns the bound address.
func (c *Callback) Addr() string {
	return c.listener.Addr().String()
}

// Wait blocks until the login completes, fails, or ctx is done, then shuts
// the listener down.
func (c *Callback) Wait(ctx context.Context) (*model.Session, error) {
	defer c.Close()

	select {
	case res := <-c.done:
		return res.session, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("session: waiting for login: %w", ctx.Err())
	}
}

// Close stops the listener. Safe to call more than once.
func (c *Callback) Close() {
	c.closeOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("callback listener shutdown failed", slog.String("error", err.Error()))
		}
	})
}

// finish reports the first outcome only.
func (c *Callback) finish(s *model.Session, err error) {
	c.once.Do(func() {
		c.done <- result{session: s, err: err}
	})
}

func (c *Callback) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	callbackURL := &url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	scrubbed, err := c.resolver.CompleteCallback(r.Context(), callbackURL)
	if err != nil {
		writeErrorPage(w, c.logger, err)
		c.finish(nil, err)
		return
	}

	c.mu.Lock()
	c.session = c.resolver.Current()
	c.mu.Unlock()

	// 303 so the token never stays in the browser history.
	http.Redirect(w, r, scrubbed.RequestURI(), http.StatusSeeOther)
}

func (c *Callback) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil {
		writeErrorPage(w, c.logger, ErrCookieDelivery)
		c.finish(nil, ErrCookieDelivery)
		return
	}

	writeSuccessPage(w, c.logger, s.Profile)
	c.finish(s, nil)
}

func (c *Callback) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeErrorPage(w, c.logger, ErrLoginFailed)
	c.finish(nil, ErrLoginFailed)
}

// setSecurityHeaders sets the headers shared by every page.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline';")
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
        .container { max-width: 600px; margin: 0 auto; }
        .message { padding: 20px; border-radius: 5px; margin: 20px 0; }
        .success { background-color: #e7f6e7; border: 1px solid #b3e6b3; color: #006600; }
        .error { background-color: #ffe7e7; border: 1px solid #ffb3b3; color: #cc0000; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <div class="message %s">
            <p>%s</p>
            <p>You can close this window and return to the terminal.</p>
        </div>
    </div>
</body>
</html>`

func writeSuccessPage(w http.ResponseWriter, logger *slog.Logger, p *model.Profile) {
	setSecurityHeaders(w)
	msg := "Signed in to gitsweep."
	if p != nil {
		msg = "Signed in to gitsweep as " + html.EscapeString(p.Login) + "."
	}
	if _, err := fmt.Fprintf(w, pageTemplate, "Signed in", "Signed in", "success", msg); err != nil {
		logger.Warn("writing success page failed", slog.String("error", err.Error()))
	}
}

func writeErrorPage(w http.ResponseWriter, logger *slog.Logger, cause error) {
	setSecurityHeaders(w)
	w.WriteHeader(http.StatusBadRequest)
	msg := html.EscapeString(cause.Error())
	if _, err := fmt.Fprintf(w, pageTemplate, "Sign-in failed", "Sign-in failed", "error", msg); err != nil {
		logger.Warn("writing error page failed", slog.String("error", err.Error()))
	}
}
