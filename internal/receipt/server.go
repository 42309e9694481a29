package receipt

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
)

// Server exposes the scan pipeline and history over HTTP. CORS policy and
// basic auth are process-wide configuration applied at this layer only; the
// core pipeline below never sees them.
type Server struct {
	service   *Service
	basicAuth BasicAuth
	version   string
	mux       *http.ServeMux
}

// BasicAuth holds optional basic authentication credentials. Empty
// credentials disable authentication.
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a Server with a default mux.
func NewServer(service *Service, basicAuth BasicAuth, version string) *Server {
	return NewServerWithMux(service, basicAuth, version, http.NewServeMux())
}

// NewServerWithMux creates a Server with a custom mux for testing.
func NewServerWithMux(service *Service, basicAuth BasicAuth, version string, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		version:   version,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials.
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers and answers preflight requests.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth guards the scan and history endpoints. The probes stay open so
// orchestrators can check liveness without credentials.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Receipt OCR"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all routes, most specific first.
func (s *Server) registerRoutes() {
	// Scan pipeline
	s.mux.HandleFunc("POST /scan/base64", s.requireAuth(s.handleScanBase64))
	s.mux.HandleFunc("POST /scan", s.requireAuth(s.handleScan))

	// Scan history
	s.mux.HandleFunc("GET /api/scans/{id}/file", s.requireAuth(s.handleGetScanFile))
	s.mux.HandleFunc("GET /api/scans/{id}", s.requireAuth(s.handleGetScan))
	s.mux.HandleFunc("DELETE /api/scans/{id}", s.requireAuth(s.handleDeleteScan))
	s.mux.HandleFunc("GET /api/scans", s.requireAuth(s.handleListScans))

	// Probes, no auth
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /", s.handleServiceInfo)
}

// Start starts the HTTP server with CORS applied to every request,
// including preflights.
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
