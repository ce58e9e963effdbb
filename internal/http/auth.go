package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/seralabs/tokend/internal/cache"
	"github.com/seralabs/tokend/internal/store/core"
)

// Authenticator resolves a bearer access string to its live token.
type Authenticator interface {
	Authenticate(ctx context.Context, access string) (*core.Token, error)
}

type ctxKey int

const tokenKey ctxKey = iota

// TokenFromContext returns the bearer token attached by WithBearerAuth.
func TokenFromContext(ctx context.Context) (*core.Token, bool) {
	tok, ok := ctx.Value(tokenKey).(*core.Token)
	return tok, ok
}

func bearer(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// WithBearerAuth authenticates the Authorization header against the store,
// short-circuiting repeat lookups through the cache. A revoked token can
// outlive its revocation by at most the cache TTL.
func WithBearerAuth(auth Authenticator, c cache.Client, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access := bearer(r)
			if access == "" {
				WriteError(w, http.StatusUnauthorized, "invalid_token", "missing bearer token")
				return
			}

			if tok, ok := cachedToken(c, access); ok {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey, tok)))
				return
			}

			tok, err := auth.Authenticate(r.Context(), access)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "invalid_token", "token is missing or expired")
				return
			}
			cacheToken(c, access, tok, ttl)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey, tok)))
		})
	}
}

func cachedToken(c cache.Client, access string) (*core.Token, bool) {
	if c == nil {
		return nil, false
	}
	b, ok := c.Get("access:" + access)
	if !ok {
		return nil, false
	}
	var tok core.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		c.Delete("access:" + access)
		return nil, false
	}
	if tok.Accessibility(time.Now()) == 0 {
		c.Delete("access:" + access)
		return nil, false
	}
	return &tok, true
}

func cacheToken(c cache.Client, access string, tok *core.Token, ttl time.Duration) {
	if c == nil || tok == nil {
		return
	}
	if b, err := json.Marshal(tok); err == nil {
		c.Set("access:"+access, b, ttl)
	}
}

// DropCachedToken evicts a cached access lookup, used on revocation so the
// token stops authenticating immediately on this node.
func DropCachedToken(c cache.Client, access string) {
	if c != nil {
		c.Delete("access:" + access)
	}
}
