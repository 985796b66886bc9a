// Package server exposes the credential list over a read-only HTTP API,
// together with Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systmms/smcreds/internal/logging"
	"github.com/systmms/smcreds/internal/pipeline"
	"github.com/systmms/smcreds/pkg/credential"
)

// Config holds configuration for the HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":9090".
	Addr string

	// MetricsEnabled mounts the Prometheus handler on MetricsPath.
	MetricsEnabled bool
	MetricsPath    string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":9090",
		MetricsPath:  "/metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// CredentialSource is the part of pipeline.Provider the server uses.
type CredentialSource interface {
	Credentials(ctx context.Context) ([]credential.Credential, error)
	Lookup(ctx context.Context, id string) (credential.Credential, error)
	Delete(ctx context.Context, id string) error
}

// Server serves credential metadata. Secret values are never served.
type Server struct {
	config   Config
	source   CredentialSource
	gatherer prometheus.Gatherer
	logger   *logging.Logger
	server   *http.Server
	listener net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the registry served on the metrics path. The default
// is prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a server over source.
func New(config Config, source CredentialSource, opts ...Option) *Server {
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	s := &Server{
		config:   config,
		source:   source,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/credentials", func(r chi.Router) {
		r.Get("/", s.listCredentials)
		r.Post("/", s.readOnly)
		// Credential ids keep store names such as "ci/deploy-key", so the id
		// is the whole remaining path.
		r.Get("/*", s.getCredential)
		r.Put("/*", s.readOnly)
		r.Patch("/*", s.readOnly)
		r.Delete("/*", s.deleteCredential)
	})

	if s.config.MetricsEnabled {
		r.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error: %v", err)
		}
	}()

	s.logger.Info("Serving credentials on %s", ln.Addr())
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// CredentialView is the metadata of a credential as served and printed.
type CredentialView struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	StoreID     string            `json:"storeId"`
	Description string            `json:"description,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// NewCredentialView returns the metadata of c.
func NewCredentialView(c credential.Credential) CredentialView {
	return CredentialView{
		ID:          c.ID(),
		Type:        string(c.Type()),
		StoreID:     c.StoreID(),
		Description: c.Description(),
		Tags:        c.Tags(),
	}
}

func (s *Server) listCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := s.source.Credentials(r.Context())
	if err != nil {
		s.logger.Error("Listing credentials failed: %v", err)
		writeError(w, http.StatusBadGateway, "credentials are unavailable")
		return
	}

	views := make([]CredentialView, 0, len(creds))
	for _, c := range creds {
		views = append(views, NewCredentialView(c))
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	writeJSON(w, http.StatusOK, views)
}

// credentialID returns the id addressed by the wildcard route. chi matches
// on the raw path when the request escapes characters, so the parameter is
// unescaped in that case only.
func credentialID(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(id)
		if err != nil {
			return "", false
		}
		id = unescaped
	}
	return id, id != ""
}

func (s *Server) getCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := credentialID(r)
	if !ok {
		writeError(w, http.StatusNotFound, pipeline.ErrCredentialNotFound.Error())
		return
	}
	c, err := s.source.Lookup(r.Context(), id)
	switch {
	case errors.Is(err, pipeline.ErrCredentialNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.Error("Looking up credential failed: %v", err)
		writeError(w, http.StatusBadGateway, "credentials are unavailable")
	default:
		writeJSON(w, http.StatusOK, NewCredentialView(c))
	}
}

func (s *Server) deleteCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := credentialID(r)
	if !ok {
		s.readOnly(w, r)
		return
	}
	err := s.source.Delete(r.Context(), id)
	if errors.Is(err, pipeline.ErrReadOnly) {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) readOnly(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	writeError(w, http.StatusMethodNotAllowed, pipeline.ErrReadOnly.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
