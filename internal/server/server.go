// Package server wires the dependency graph and runs the HTTP server.
//
// This is the composition root: the database, the identity resolver, the
// billing client, the services, and the handlers are all constructed and
// connected here, nowhere else. Handlers never touch the database;
// services never touch HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/billing"
	"github.com/sakif/microblog/internal/config"
	"github.com/sakif/microblog/internal/handler"
	"github.com/sakif/microblog/internal/middleware"
	"github.com/sakif/microblog/internal/model"
	sqliteRepo "github.com/sakif/microblog/internal/repository/sqlite"
	"github.com/sakif/microblog/internal/service"
)

// Server owns the router, the configuration, and the database handle.
// The database is closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency graph from the configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	s.setupRoutes()

	return s, nil
}

// setupRoutes constructs services and handlers and binds them to routes.
func (s *Server) setupRoutes() {
	// Middleware order: request id → real ip → recoverer → logging.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	resolver := auth.NewOAuthResolver(map[string]auth.ProviderCredentials{
		model.ProviderGoogle: {
			ClientID:     s.config.Google.ClientID,
			ClientSecret: s.config.Google.ClientSecret,
			CallbackURL:  s.config.CallbackURL(model.ProviderGoogle),
		},
		model.ProviderFacebook: {
			ClientID:     s.config.Facebook.ClientID,
			ClientSecret: s.config.Facebook.ClientSecret,
			CallbackURL:  s.config.CallbackURL(model.ProviderFacebook),
		},
		model.ProviderGitHub: {
			ClientID:     s.config.GitHub.ClientID,
			ClientSecret: s.config.GitHub.ClientSecret,
			CallbackURL:  s.config.CallbackURL(model.ProviderGitHub),
		},
		model.ProviderTwitter: {
			ClientID:     s.config.Twitter.ClientID,
			ClientSecret: s.config.Twitter.ClientSecret,
			CallbackURL:  s.config.CallbackURL(model.ProviderTwitter),
		},
	}, s.config.IdentityTimeout)

	passwords := auth.NewPasswordService()
	tokens := auth.NewTokenService(s.db)
	billingClient := billing.NewHTTPClient(s.config.BillingBaseURL, s.config.BillingAPIKey, s.config.BillingTimeout)

	accounts := service.NewAccountProvisioner(s.db, s.db, passwords, s.logger)
	billingProv := service.NewBillingProvisioner(s.db, billingClient, s.logger)
	authenticator := service.NewAuthenticator(accounts, billingProv, resolver, tokens, passwords, s.db, s.logger)
	tweets := service.NewTweetService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authenticator, s.logger)
	tweetHandler := handler.NewTweetHandler(tweets, s.logger)

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)

	// Public authentication surface.
	s.router.Post("/register", authHandler.HandleRegister)
	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Get("/auth/redirect/{provider}", authHandler.HandleProviderRedirect)
	s.router.Get("/auth/callback/{provider}", authHandler.HandleProviderCallback)

	// Authenticated account surface.
	s.router.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/me", authHandler.HandleMe)
		r.Put("/me/password", authHandler.HandleUpdatePassword)
	})

	// Content API: reads public, writes authenticated. Reads still
	// resolve a bearer token when one is presented, so handlers can
	// personalize for a logged-in caller.
	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/tweets", tweetHandler.HandleList)
			r.Get("/tweets/{id}", tweetHandler.HandleGetByID)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/tweets", tweetHandler.HandleCreate)
			r.Delete("/tweets/{id}", tweetHandler.HandleDelete)
		})
	})
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully:
// stop accepting connections, drain in-flight requests (30s), close the
// database so the WAL is flushed.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
