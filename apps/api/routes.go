package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	schoolshandler "github.com/zenGate-Global/schoolspace/domains/schools/be/handler"
	usershandler "github.com/zenGate-Global/schoolspace/domains/users/be/handler"
	"github.com/zenGate-Global/schoolspace/platform/go/access"
	platformauth "github.com/zenGate-Global/schoolspace/platform/go/auth"
	platformlogging "github.com/zenGate-Global/schoolspace/platform/go/logging"
	platformmiddleware "github.com/zenGate-Global/schoolspace/platform/go/middleware"
	tenantmiddleware "github.com/zenGate-Global/schoolspace/platform/go/tenant/middleware"
)

type routerDeps struct {
	Logger         *zap.Logger
	RequestTimeout time.Duration
	CORS           platformmiddleware.CORSConfig
	Auth           func(http.Handler) http.Handler
	Resolver       *tenantmiddleware.Resolver
	Verifier       *access.Verifier
	Schools        *schoolshandler.Handler
	Users          *usershandler.Handler
	// Ready reports whether backing services answer; nil means always ready.
	Ready func(ctx context.Context) error
}

func buildRouter(d routerDeps) http.Handler {
	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(d.RequestTimeout),
		platformmiddleware.CORS(d.CORS),
	)
	rootRouter.Use(platformlogging.RequestLogger(d.Logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				platformlogging.FromRequest(r, d.Logger).Warn("readiness check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Handle("/metrics", promhttp.Handler())

	apiRouter := chi.NewRouter()
	apiRouter.Use(d.Auth)

	// Host, session and dev-override bound routes.
	apiRouter.Group(func(r chi.Router) {
		r.Use(tenantmiddleware.Bind(d.Resolver, tenantmiddleware.BindOptions{Mode: tenantmiddleware.Optional, Logger: d.Logger}))
		r.Use(platformmiddleware.RequestTrace)

		r.Route("/users", func(r chi.Router) {
			r.Use(platformauth.RequireAuthenticated)
			r.Use(tenantmiddleware.RequireSchool)
			r.Use(access.Middleware(d.Verifier))
			d.Users.Routes(r)
		})

		r.Route("/platform/schools", func(r chi.Router) {
			r.Use(platformauth.RequirePlatformAdmin)
			d.Schools.Routes(r)
		})
	})

	// Routes naming the school explicitly by code.
	apiRouter.Route("/schools/{"+tenantmiddleware.DefaultCodeParam+"}", func(r chi.Router) {
		r.Use(platformauth.RequireAuthenticated)
		r.Use(tenantmiddleware.Bind(d.Resolver, tenantmiddleware.BindOptions{
			Mode:          tenantmiddleware.Strict,
			CodeTargeting: true,
			Logger:        d.Logger,
		}))
		r.Use(platformmiddleware.RequestTrace)
		r.Use(access.Middleware(d.Verifier))

		r.Route("/users", d.Users.Routes)
	})

	rootRouter.Mount("/api/v1", apiRouter)
	return rootRouter
}
