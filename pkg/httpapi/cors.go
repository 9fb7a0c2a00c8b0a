package httpapi

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/Subconscious-ai/ghostshell/pkg/config"
)

const (
	allowMethods  = "GET, POST, DELETE, OPTIONS"
	allowHeaders  = "Authorization, Content-Type, Mcp-Session-Id, Mcp-Protocol-Version, Last-Event-ID"
	exposeHeaders = "Mcp-Session-Id"
)

// cors decides which browser origins may call the server.
type cors struct {
	all     bool
	origins map[string]bool
	re      *regexp.Regexp
}

func newCORS(c config.CORSConfig) (*cors, error) {
	p := &cors{all: c.AllowAll, origins: make(map[string]bool, len(c.AllowedOrigins))}
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			p.all = true
		}
		p.origins[o] = true
	}

	if c.OriginRegex != "" {
		re, err := regexp.Compile("^(?:" + c.OriginRegex + ")$")
		if err != nil {
			return nil, fmt.Errorf("httpapi: origin regex: %w", err)
		}
		p.re = re
	}

	return p, nil
}

func (p *cors) allowed(origin string) bool {
	return p.all || p.origins[origin] || (p.re != nil && p.re.MatchString(origin))
}

// middleware sets the CORS response headers and answers preflight requests.
// Credentials are only allowed for explicitly matched origins, never with a
// wildcard.
func (p *cors) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		ok := origin != "" && p.allowed(origin)

		if ok {
			h := w.Header()
			if p.all {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Expose-Headers", exposeHeaders)
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if ok {
				h := w.Header()
				h.Set("Access-Control-Allow-Methods", allowMethods)
				if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
					h.Set("Access-Control-Allow-Headers", req)
				} else {
					h.Set("Access-Control-Allow-Headers", allowHeaders)
				}
				h.Set("Access-Control-Max-Age", "600")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
