package dashboard

import (
	"net/http"
	"strings"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/config"
	"github.com/ethpandaops/llmsentinel/pkg/metrics"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

// requestLogger logs and counts incoming HTTP requests.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.ObserveHTTPRequest(r.Method, status)

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", status).
			WithField("remote", r.RemoteAddr).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

// hashUsers bcrypt-hashes configured passwords. Values that already look
// like bcrypt hashes are kept as they are.
func hashUsers(users []config.BasicAuthUser) (map[string][]byte, error) {
	hashed := make(map[string][]byte, len(users))

	for _, u := range users {
		if isBcryptHash(u.Password) {
			hashed[u.Username] = []byte(u.Password)

			continue
		}

		h, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}

		hashed[u.Username] = h
	}

	return hashed, nil
}

func isBcryptHash(s string) bool {
	return len(s) == 60 &&
		(strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

// dummyHash keeps the response time of unknown users close to that of
// known ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("llmsentinel"), bcrypt.MinCost)

// requireBasicAuth rejects requests without valid credentials.
func (s *server) requireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if ok {
			hash, known := s.users[username]
			if !known {
				hash = dummyHash
			}

			err := bcrypt.CompareHashAndPassword(hash, []byte(password))
			if known && err == nil {
				next.ServeHTTP(w, r)

				return
			}
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="llmsentinel", charset="UTF-8"`)
		writeJSON(w, http.StatusUnauthorized, errorResponse{"authentication required"})
	})
}
