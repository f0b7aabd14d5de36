package auth

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"vortex/internal/config"
	"vortex/internal/logger"
)

type ctxKey string

const userKey ctxKey = "vortex.user"

// dummyHash is compared against when the user is unknown so that a miss
// costs as much as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("vortex-dummy-password"), bcrypt.DefaultCost)

func UserFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userKey).(string)
	return v
}

func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// Enabled reports whether any users are configured.
func Enabled(cfg config.SecurityConfig) bool {
	return len(cfg.Users) > 0
}

// RequireAuth wraps a handler with BasicAuth. With no users configured the
// handler is returned unchanged.
func RequireAuth(cfg config.SecurityConfig, next http.Handler) http.Handler {
	if !Enabled(cfg) {
		return next
	}
	realm := cfg.Realm
	if realm == "" {
		realm = "vortex"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := parseBasicAuth(r.Header.Get("Authorization"))
		if !ok {
			deny(w, realm)
			return
		}
		hash := dummyHash
		user, known := cfg.Users[u]
		if known {
			hash = []byte(user.Bcrypt)
		}
		if err := bcrypt.CompareHashAndPassword(hash, []byte(p)); err != nil || !known {
			logger.Info("Rejected credentials for %q from %s", u, r.RemoteAddr)
			deny(w, realm)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// Hash returns the bcrypt hash stored in a users entry.
func Hash(password string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func deny(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`", charset="UTF-8"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func parseBasicAuth(v string) (user, pass string, ok bool) {
	const prefix = "Basic "
	if len(v) < len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(v[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	s := string(raw)
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return "", "", false
	}
	u := s[:i]
	p := s[i+1:]
	if u == "" {
		return "", "", false
	}
	if strings.Contains(u, "\x00") || strings.Contains(p, "\x00") {
		return "", "", false
	}
	return u, p, true
}
