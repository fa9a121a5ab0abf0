package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"polaris/internal/auth"
	"polaris/pkg/polaris"
)

// responseWriter wraps http.ResponseWriter to capture status code & size,
// for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.size += n
	return n, err
}

// withMiddleware wraps the router in logging, CORS, and panic recovery,
// applied outermost-first so a panic anywhere is still caught and every
// request is still logged.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return s.recoverPanics(s.logRequests(s.corsHeaders(next)))
}

// logRequests stamps every request with a fresh correlation id (so a
// request can be traced across the one log line it produces here and
// any error logs further down the handler chain) and logs the outcome.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rw.statusCode,
			"bytes":      rw.size,
			"duration":   time.Since(start).Round(time.Millisecond).String(),
		}).Info("request")
	})
}

func (s *Server) corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept-Version")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("X-Api-Version", apiVersion)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  rec,
				}).Error("panic recovered")
				writeError(w, perrInternal("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireAuth wraps a handler so it only runs for a request bearing a
// valid Login or AuthCookie token, per 4.6's "missing/invalid
// credentials -> Unauthorized".
func (s *Server) requireAuth(next func(http.ResponseWriter, *http.Request, *polaris.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, user)
	}
}

// requireAdmin additionally enforces the admin flag, per 4.6's
// "non-admin attempting admin -> Forbidden".
func (s *Server) requireAdmin(next func(http.ResponseWriter, *http.Request, *polaris.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := auth.RequireAdmin(user); err != nil {
			writeError(w, err)
			return
		}
		next(w, r, user)
	}
}

func (s *Server) authenticate(r *http.Request) (*polaris.User, error) {
	token, ok := auth.TokenFromRequest(r)
	if !ok {
		if qt := r.URL.Query().Get("auth_token"); qt != "" {
			token, ok = qt, true
		}
	}
	if !ok {
		return nil, perrUnauthorized("missing credentials")
	}
	return s.authSvc.Authorize(token)
}
