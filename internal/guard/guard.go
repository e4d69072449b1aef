// Package guard decides whether a destination may be shown for the current
// session and redirects unauthenticated users to the login page.
package guard

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/hongminglow/portal-gateway/internal/http/respond"
	"github.com/hongminglow/portal-gateway/internal/models"
)

// LoginPath is where unauthenticated navigation is sent.
const LoginPath = "/login"

// SessionSource exposes the current session without I/O.
type SessionSource interface {
	Current() (models.Session, bool)
}

// Decision is the outcome of evaluating one navigation.
type Decision struct {
	Allow    bool
	Redirect string
}

// Guard gates protected destinations on an established session.
type Guard struct {
	sessions SessionSource
	public   map[string]bool
}

// New builds a guard. The login page and the health probe are always
// public; extra public paths may be added.
func New(sessions SessionSource, public ...string) *Guard {
	g := &Guard{
		sessions: sessions,
		public:   map[string]bool{LoginPath: true, "/health": true, "/api/login": true},
	}
	for _, p := range public {
		g.public[p] = true
	}
	return g
}

// Evaluate reports whether dest may mount now. It performs no I/O.
func (g *Guard) Evaluate(dest string) Decision {
	path := dest
	if u, err := url.Parse(dest); err == nil && u.Path != "" {
		path = u.Path
	}
	if g.public[path] {
		return Decision{Allow: true}
	}
	if _, ok := g.sessions.Current(); ok {
		return Decision{Allow: true}
	}
	return Decision{Redirect: LoginPath + "?from=" + url.QueryEscape(dest)}
}

// Middleware enforces Evaluate on every request. Browser navigation is
// redirected; API callers get 401 with the redirect target.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dest := r.URL.RequestURI()
		d := g.Evaluate(dest)
		if !d.Allow {
			if wantsJSON(r) {
				respond.JSON(w, http.StatusUnauthorized, "authentication required", map[string]string{
					"redirect": d.Redirect,
					"from":     dest,
				})
				return
			}
			http.Redirect(w, r, d.Redirect, http.StatusFound)
			return
		}
		if sess, ok := g.sessions.Current(); ok {
			r = r.WithContext(WithSession(r.Context(), sess))
		}
		next.ServeHTTP(w, r)
	})
}

// ReturnTo sanitizes a remembered destination for the post-login redirect.
// Only same-origin relative paths are honoured and never the login page.
func ReturnTo(from string) string {
	from = strings.TrimSpace(from)
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.Contains(from, `\`) {
		return "/"
	}
	u, err := url.Parse(from)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	if u.Path == LoginPath || strings.HasPrefix(u.Path, LoginPath+"/") {
		return "/"
	}
	return from
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

type sessionKey struct{}

// WithSession stores sess on ctx for handlers behind the middleware.
func WithSession(ctx context.Context, sess models.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFrom returns the session the middleware admitted the request with.
func SessionFrom(ctx context.Context) (models.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(models.Session)
	return sess, ok
}
