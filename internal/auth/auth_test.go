package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"vortex/internal/config"
)

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestRequireAuth(t *testing.T) {
	hash, err := Hash("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	cfg := config.SecurityConfig{
		Users: map[string]config.User{"alice": {Bcrypt: hash}},
		Realm: "test",
	}

	var seenUser string
	h := RequireAuth(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"NoHeader", "", http.StatusUnauthorized},
		{"WrongPassword", basic("alice", "nope"), http.StatusUnauthorized},
		{"UnknownUser", basic("mallory", "s3cret"), http.StatusUnauthorized},
		{"Garbage", "Basic !!!", http.StatusUnauthorized},
		{"Bearer", "Bearer abc", http.StatusUnauthorized},
		{"NoColon", "Basic " + base64.StdEncoding.EncodeToString([]byte("alice")), http.StatusUnauthorized},
		{"Valid", basic("alice", "s3cret"), http.StatusNoContent},
		{"LowercaseScheme", "basic " + base64.StdEncoding.EncodeToString([]byte("alice:s3cret")), http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenUser = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `realm="test"`)
				assert.Empty(t, seenUser)
			} else {
				assert.Equal(t, "alice", seenUser)
			}
		})
	}
}

func TestRequireAuth_DisabledWithoutUsers(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := RequireAuth(config.SecurityConfig{}, next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
