package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// publicPaths are reachable without a token so probes and scrapers keep working.
var publicPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

type scope int

const (
	scopeNone scope = iota
	scopeRead
	scopeAdmin
)

type keyring struct {
	admin [][]byte
	read  [][]byte
}

func newKeyring(adminKeys, readKeys []string) keyring {
	var kr keyring
	for _, k := range adminKeys {
		if k != "" {
			kr.admin = append(kr.admin, []byte(k))
		}
	}
	for _, k := range readKeys {
		if k != "" {
			kr.read = append(kr.read, []byte(k))
		}
	}
	return kr
}

func (kr keyring) empty() bool { return len(kr.admin) == 0 && len(kr.read) == 0 }

// scopeOf compares the token against every key in constant time.
func (kr keyring) scopeOf(token string) scope {
	t := []byte(token)
	admin, read := 0, 0
	for _, k := range kr.admin {
		admin |= subtle.ConstantTimeCompare(k, t)
	}
	for _, k := range kr.read {
		read |= subtle.ConstantTimeCompare(k, t)
	}
	switch {
	case admin == 1:
		return scopeAdmin
	case read == 1:
		return scopeRead
	default:
		return scopeNone
	}
}

// BearerAuthMiddleware guards the admin API. Admin keys may call any route;
// read keys only GET and HEAD, so they can inspect resources and mappings
// but never provision or drop indexes. With no keys configured the API is open.
func BearerAuthMiddleware(adminKeys, readKeys []string) func(http.Handler) http.Handler {
	kr := newKeyring(adminKeys, readKeys)

	return func(next http.Handler) http.Handler {
		if kr.empty() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "bearer token required")
				return
			}

			switch kr.scopeOf(token) {
			case scopeAdmin:
			case scopeRead:
				if r.Method != http.MethodGet && r.Method != http.MethodHead {
					writeError(w, http.StatusForbidden, CodeForbidden, "read-only key cannot "+r.Method)
					return
				}
			default:
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
