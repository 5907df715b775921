package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/obsidian-tools/plugin-manager/internal/app"
	"github.com/obsidian-tools/plugin-manager/internal/config"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

type Server struct {
	router          chi.Router
	log             *logrus.Logger
	app             *app.App
	config          *config.Config
	cache           *cache.Cache
	updateSemaphore *semaphore.Weighted
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONError(w, r, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"service": "obsidian plugin manager",
		"stage":   s.config.Stage,
		"version": s.config.Version,
		"vault":   s.app.Vault.ConfigDir(),
	})
}

func New(log *logrus.Logger, a *app.App) *Server {
	router := chi.NewRouter()
	server := &Server{
		router:          router,
		log:             log,
		app:             a,
		config:          a.Config,
		cache:           cache.New(5*time.Minute, 10*time.Minute),
		updateSemaphore: semaphore.NewWeighted(1),
	}
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(server.logMiddleware)
	router.Use(server.recoverMiddleware)

	router.Use(middleware.Timeout(5 * time.Minute))

	router.NotFound(server.notFoundHandler)
	router.MethodNotAllowed(server.methodNotAllowedHandler)

	router.Get("/", server.indexHandler)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/plugins", func(r chi.Router) {
			r.With(server.cacheMiddleware).Group(func(r chi.Router) {
				r.Get("/", server.listInstalled(registry.KindPlugin))
				r.Get("/{plugin}", server.checkPlugin)
			})

			r.With(server.authMiddleware).Group(func(r chi.Router) {
				r.Put("/", server.updateAll(registry.KindPlugin))
				r.Put("/{plugin}", server.updatePlugin)
				r.Put("/{plugin}/enabled", server.setPluginEnabled(true))
				r.Delete("/{plugin}/enabled", server.setPluginEnabled(false))
			})
		})

		r.Route("/themes", func(r chi.Router) {
			r.With(server.cacheMiddleware).Get("/", server.listInstalled(registry.KindTheme))
			r.With(server.authMiddleware).Put("/", server.updateAll(registry.KindTheme))
		})

		r.Get("/history", server.listHistory)
	})

	return server
}
