package storefront

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminAuth guards the back office with HTTP basic auth checked against a
// bcrypt hash.
type AdminAuth struct {
	user string
	hash []byte
}

// NewAdminAuth prefers passwordHash; a plaintext password is hashed once here.
func NewAdminAuth(user, passwordHash, password string) (*AdminAuth, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, errors.New("admin user is required")
	}
	if passwordHash = strings.TrimSpace(passwordHash); passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("admin password hash: %w", err)
		}
		return &AdminAuth{user: user, hash: []byte(passwordHash)}, nil
	}
	if password == "" {
		return nil, errors.New("admin password or password hash is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &AdminAuth{user: user, hash: hash}, nil
}

func (a *AdminAuth) check(user, password string) bool {
	if subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
}

func (a *AdminAuth) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || !a.check(user, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "invalid admin credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}
