// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tylerlaw/portfolio/internal/database"
	"github.com/tylerlaw/portfolio/internal/gallery"
	"github.com/tylerlaw/portfolio/internal/google"
	"github.com/tylerlaw/portfolio/internal/importer"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

//go:embed static/*
var staticFS embed.FS

// OwnerAuth is the owner's Google credential state.
type OwnerAuth interface {
	IsAuthenticated() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// GoogleAPI is the part of the Google client exposed through the proxy routes.
type GoogleAPI interface {
	CreatePickerSession(ctx context.Context) (*google.PickerSession, error)
	GetPickerSession(ctx context.Context, id string) (*google.PickerSession, error)
	ListPickedMediaItems(ctx context.Context, sessionID string) ([]google.PickedMediaItem, error)
	ListAlbums(ctx context.Context) ([]google.Album, error)
	SearchAlbumMediaItems(ctx context.Context, albumID string) ([]google.LibraryMediaItem, error)
}

// Importer runs imports into a section.
type Importer interface {
	ImportSession(ctx context.Context, slug, title, sessionID string) (*importer.Result, error)
	ImportFeed(ctx context.Context, slug, title, feedURL string) (*importer.Result, error)
}

// Options holds everything the server needs.
type Options struct {
	Store    database.Store
	Gallery  *gallery.Service
	Importer Importer
	Google   GoogleAPI
	Auth     OwnerAuth
	Logger   *zap.Logger

	// Media serves stored files under MediaPrefix; nil when files live elsewhere.
	Media       http.Handler
	MediaPrefix string

	AllowedOrigins    []string
	SessionSecret     string
	PostLoginRedirect string
	SecureCookies     bool
}

// Server is the main HTTP server.
type Server struct {
	opts     Options
	logger   *zap.Logger
	sessions *sessionSigner
	router   chi.Router
}

// handlerFunc handles one request and returns what to send back.
type handlerFunc func(r *http.Request) (*response, error)

// route is one entry of the routing table.
type route struct {
	method  string
	pattern string
	owner   bool
	handle  handlerFunc
}

// New creates a new server.
func New(opts Options) *Server {
	if opts.PostLoginRedirect == "" {
		opts.PostLoginRedirect = "/picker"
	}
	s := &Server{
		opts:     opts,
		logger:   opts.Logger,
		sessions: newSessionSigner(opts.SessionSecret),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() []route {
	return []route{
		{http.MethodGet, "/api/health", false, s.handleHealth},
		{http.MethodGet, "/_debug/db", true, s.handleDebugDB},

		{http.MethodGet, "/api/gallery", false, s.handleGallery},
		{http.MethodGet, "/api/gallery/sections/{slug}/items", false, s.handleSectionItems},
		{http.MethodPost, "/api/gallery/sections/{slug}/import", true, s.handleImport},
		{http.MethodPost, "/api/gallery/sections/{slug}/import-feed", true, s.handleImportFeed},
		{http.MethodPost, "/api/gallery/sections/{slug}/delete", true, s.handleDeleteItems},
		{http.MethodDelete, "/api/gallery/sections/{slug}/items/{id}", true, s.handleDeleteItem},

		{http.MethodGet, "/auth/google", false, s.handleAuthStart},
		{http.MethodGet, "/auth/google/callback", false, s.handleAuthCallback},

		{http.MethodPost, "/picker/sessions", true, s.handleCreateSession},
		{http.MethodGet, "/picker/sessions/{id}", true, s.handleGetSession},
		{http.MethodGet, "/picker/mediaItems", true, s.handlePickedItems},
		{http.MethodGet, "/picker", true, s.handlePickerPage},

		{http.MethodGet, "/api/albums", true, s.handleAlbums},
		{http.MethodGet, "/api/albums/{albumID}/items", true, s.handleAlbumItems},
	}
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	for _, rt := range s.routes() {
		r.Method(rt.method, rt.pattern, s.adapt(rt))
	}

	if s.opts.Media != nil {
		prefix := "/" + strings.Trim(s.opts.MediaPrefix, "/")
		r.Handle(prefix+"/*", s.opts.Media)
	}

	s.router = r
}

// adapt turns a route into an http.Handler, enforcing owner access.
func (s *Server) adapt(rt route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt.owner && !s.isOwner(r) {
			http.Redirect(w, r, "/auth/google", http.StatusFound)
			return
		}
		resp, err := rt.handle(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.write(w, r)
	})
}

// isOwner requires stored Google credentials and a signed owner session cookie.
func (s *Server) isOwner(r *http.Request) bool {
	if !s.opts.Auth.IsAuthenticated() {
		return false
	}
	c, err := r.Cookie(ownerCookie)
	if err != nil {
		return false
	}
	_, err = s.sessions.verify(c.Value, ownerSubject)
	return err == nil
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// slugParam returns the validated {slug} path parameter.
func slugParam(r *http.Request) (string, error) {
	slug := chi.URLParam(r, "slug")
	if !slugPattern.MatchString(slug) {
		return "", badRequest("Invalid section slug")
	}
	return slug, nil
}

func (s *Server) handlePickerPage(r *http.Request) (*response, error) {
	page, err := fs.ReadFile(staticFS, "static/picker.html")
	if err != nil {
		return nil, err
	}
	return &response{status: http.StatusOK, contentType: "text/html; charset=utf-8", raw: page}, nil
}
