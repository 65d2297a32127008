package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nightmap/docs" // registers the swagger spec served at /v1/swagger
	"nightmap/internal/auth"
	"nightmap/internal/catalog"
	"nightmap/internal/domain/accesscontrol"
	"nightmap/internal/domain/storage"
	"nightmap/internal/metrics"
	"nightmap/internal/moderation"
	"nightmap/internal/ratelimiter"
	"nightmap/internal/syncer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
	moderation    *moderation.Service
	syncer        *syncer.Orchestrator
	catalog       *catalog.Catalog
	metrics       *metrics.Collector
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// A sync cycle can take a while on slow providers; everything else is fast.
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		docsURL := fmt.Sprintf("%s/v1/swagger/doc.json", app.config.apiURL)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)
		if app.metrics != nil {
			r.With(app.BasicAuthMiddleware()).Handle("/metrics", app.metrics.Handler())
		}

		r.Route("/pois", func(r chi.Router) {
			r.Get("/", app.listPOIsHandler)
			r.Get("/{poiID}", app.getPOIHandler)
			r.With(app.AuthTokenMiddleware, app.RateLimiterMiddleware).Post("/", app.submitPOIHandler)
		})

		r.Route("/users/push-tokens", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/", app.savePushTokenHandler)
			r.Delete("/", app.removePushTokenHandler)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)

			r.Route("/pois", func(r chi.Router) {
				r.Use(app.RequireCapability(accesscontrol.Role.CanAdjudicate))
				r.Get("/pending", app.listPendingPOIsHandler)
				r.Post("/{poiID}/approve", app.approvePOIHandler)
				r.Post("/{poiID}/reject", app.rejectPOIHandler)
			})

			r.Route("/sync", func(r chi.Router) {
				r.Use(app.RequireCapability(accesscontrol.Role.CanRunSync))
				r.Post("/", app.triggerSyncHandler)
				r.Get("/last", app.lastSyncHandler)
			})

			r.Group(func(r chi.Router) {
				r.Use(app.RequireCapability(accesscontrol.Role.CanManageRoles))
				r.Put("/users/{userID}/role", app.adminAssignUserRoleHandler)
				r.Post("/push-tokens/prune", app.pruneStaleTokensHandler)
				r.Post("/push-tokens/bulk-remove", app.bulkRemoveTokensHandler)
			})
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	// Docs
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: 3 * time.Minute,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
