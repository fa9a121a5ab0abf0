// Package server exposes Polaris's core components over HTTP, per
// spec.md 6's endpoint table. It is adapted from the teacher's
// internal/server package: one Server struct holding every dependency,
// one handler file per concern, stdlib net/http routing with ServeMux
// wildcard patterns (read through PathValue) for virtual paths, and the
// teacher's logging/CORS/panic-recovery middleware chain.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"polaris/internal/auth"
	"polaris/internal/cache"
	"polaris/internal/collection"
	"polaris/internal/config"
	"polaris/internal/orchestrator"
	"polaris/internal/store"
	"polaris/internal/thumbnail"
)

// apiVersion is the current Accept-Version the core backs, per 6.
const apiVersion = "8"

// Server ties every core component to the HTTP surface.
type Server struct {
	cfg    *config.Manager
	store  *store.Store
	authSvc *auth.Service
	index  *collection.Index
	thumbs *thumbnail.Cache
	orch   *orchestrator.Orchestrator
	search *cache.SearchCache
	logger *logrus.Logger

	addr          string
	secureCookies bool

	httpServer *http.Server
}

// Dependencies bundles everything New needs, mirroring the teacher's
// single-constructor wiring style.
type Dependencies struct {
	Config        *config.Manager
	Store         *store.Store
	Auth          *auth.Service
	Index         *collection.Index
	Thumbnails    *thumbnail.Cache
	Orchestrator  *orchestrator.Orchestrator
	Logger        *logrus.Logger
	Addr          string
	SecureCookies bool
}

// New creates a Server ready to Start.
func New(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		cfg:           deps.Config,
		store:         deps.Store,
		authSvc:       deps.Auth,
		index:         deps.Index,
		thumbs:        deps.Thumbnails,
		orch:          deps.Orchestrator,
		search:        cache.NewSearchCache(),
		logger:        logger,
		addr:          deps.Addr,
		secureCookies: deps.SecureCookies,
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth", s.handleLogin)

	mux.HandleFunc("GET /browse/{path...}", s.requireAuth(s.handleBrowse))
	mux.HandleFunc("GET /flatten/{path...}", s.requireAuth(s.handleFlatten))
	mux.HandleFunc("POST /get_songs", s.requireAuth(s.handleGetSongs))

	mux.HandleFunc("GET /albums", s.requireAuth(s.handleAlbums))
	mux.HandleFunc("GET /albums/random", s.requireAuth(s.handleAlbumsRandom))
	mux.HandleFunc("GET /albums/recent", s.requireAuth(s.handleAlbumsRecent))
	mux.HandleFunc("GET /artists", s.requireAuth(s.handleArtists))
	mux.HandleFunc("GET /artists/{name...}", s.requireAuth(s.handleArtist))
	mux.HandleFunc("GET /genres", s.requireAuth(s.handleGenres))
	mux.HandleFunc("GET /genres/{name...}", s.requireAuth(s.handleGenre))
	mux.HandleFunc("GET /search/{query...}", s.requireAuth(s.handleSearch))

	mux.HandleFunc("GET /thumbnail/{path...}", s.requireAuth(s.handleThumbnail))
	mux.HandleFunc("GET /audio/{path...}", s.requireAuth(s.handleAudio))
	mux.HandleFunc("GET /peaks/{path...}", s.requireAuth(s.handlePeaks))

	mux.HandleFunc("GET /index_status", s.requireAuth(s.handleIndexStatus))
	mux.HandleFunc("POST /trigger_index", s.requireAuth(s.handleTriggerIndex))

	mux.HandleFunc("GET /settings", s.requireAdmin(s.handleGetSettings))
	mux.HandleFunc("PUT /settings", s.requireAdmin(s.handlePutSettings))
	mux.HandleFunc("GET /mount_dirs", s.requireAdmin(s.handleListMountDirs))
	mux.HandleFunc("PUT /mount_dirs", s.requireAdmin(s.handlePutMountDirs))
	mux.HandleFunc("GET /users", s.requireAdmin(s.handleListUsers))
	mux.HandleFunc("POST /users", s.requireAdmin(s.handleCreateUser))
	mux.HandleFunc("DELETE /users/{name}", s.requireAdmin(s.handleDeleteUser))

	mux.HandleFunc("GET /playlists", s.requireAuth(s.handleListPlaylists))
	mux.HandleFunc("PUT /playlists/{name}", s.requireAuth(s.handleSavePlaylist))
	mux.HandleFunc("DELETE /playlists/{name}", s.requireAuth(s.handleDeletePlaylist))

	mux.HandleFunc("GET /health", s.handleHealth)

	return s.withMiddleware(mux)
}

// Start launches the HTTP server and blocks until it exits. The
// orchestrator must already be started by the caller (cmd/polaris).
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        s.addr,
		Handler:     s.routes(),
		ReadTimeout: 30 * time.Second,
	}
	s.logger.WithField("addr", s.addr).Info("polaris server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("polaris server shutting down")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
