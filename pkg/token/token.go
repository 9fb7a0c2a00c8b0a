// Package token supplies the bearer credential used for backend calls.
//
// Hosting front-ends pick the variant at construction time: the stdio server
// uses [Env], which reads the process environment once, while the hosted
// HTTP server binds a [Request] provider to each inbound connection.
package token

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/Subconscious-ai/ghostshell/pkg/apierror"
)

// DefaultEnvVars are consulted in order by FromEnv when no names are given.
// AUTH0_JWT_TOKEN is the legacy name kept for older installations.
var DefaultEnvVars = []string{"SUBCONSCIOUS_ACCESS_TOKEN", "AUTH0_JWT_TOKEN"}

// Provider produces the bearer token for the current call.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// Env resolves a token from environment variables on first use and caches
// the outcome, success or failure, for the life of the process.
type Env struct {
	names  []string
	lookup func(string) (string, bool)

	once  sync.Once
	token string
	err   error
}

// FromEnv returns a provider reading the first non-empty variable among
// names, or DefaultEnvVars when names is empty.
func FromEnv(names ...string) *Env {
	if len(names) == 0 {
		names = DefaultEnvVars
	}
	return &Env{names: names, lookup: os.LookupEnv}
}

// Token returns the cached token or an Authentication error when none of the
// variables was set at first call.
func (e *Env) Token(_ context.Context) (string, error) {
	e.once.Do(func() {
		for _, name := range e.names {
			if v, ok := e.lookup(name); ok && strings.TrimSpace(v) != "" {
				e.token = strings.TrimSpace(v)
				return
			}
		}
		e.err = apierror.Newf(apierror.Authentication,
			"%s required. Get your token from app.subconscious.ai → Settings → Access Token", e.names[0])
	})
	return e.token, e.err
}

// Static is a fixed token supplied by configuration.
type Static string

// Token returns the configured token, failing when it is empty.
func (s Static) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", apierror.New(apierror.Authentication, "no access token configured")
	}
	return string(s), nil
}

// Request carries the credential presented by one inbound request or
// connection.
type Request struct {
	token string
}

// ForRequest binds a provider to a caller-supplied token.
func ForRequest(token string) Request {
	return Request{token: strings.TrimSpace(token)}
}

// FromHTTPRequest extracts the token from the Authorization header, falling
// back to the "token" query parameter used by SSE clients that cannot set
// headers.
func FromHTTPRequest(r *http.Request) Request {
	return ForRequest(Extract(r))
}

// Token returns the bound token or an Authentication error when the inbound
// request carried none.
func (r Request) Token(_ context.Context) (string, error) {
	if r.token == "" {
		return "", apierror.New(apierror.Authentication,
			"Authorization required. Include 'Authorization: Bearer YOUR_TOKEN' header")
	}
	return r.token, nil
}

// Present reports whether a token was supplied.
func (r Request) Present() bool { return r.token != "" }

// Extract returns the bearer token of r, or "" when absent.
func Extract(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > len("Bearer ") && strings.EqualFold(h[:len("Bearer ")], "Bearer ") {
			return strings.TrimSpace(h[len("Bearer "):])
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
