// Package httpapi is the REST boundary: routing, request validation, authentication and
// the response envelope.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/UkralStul/blog-service/internal/dataloader"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const apiPrefix = "/api/v1"

type Deps struct {
	Accounts Accounts
	Posts    Posts
	Events   Subscriber

	// AccountStore backs the per-request author loaders.
	AccountStore storage.AccountStore

	CookieSecure bool
	RefreshTTL   time.Duration

	// Ping reports storage health for /healthz. Optional.
	Ping func(ctx context.Context) error
}

// moduleRoute mounts one module below apiPrefix.
type moduleRoute struct {
	path  string
	mount func(chi.Router)
}

func moduleRoutes(d Deps) []moduleRoute {
	accounts := &accountHandler{accounts: d.Accounts, cookieSecure: d.CookieSecure, refreshTTL: d.RefreshTTL}
	posts := &blogHandler{posts: d.Posts, auth: d.Accounts, events: d.Events}

	return []moduleRoute{
		{path: "/auth", mount: accounts.routes},
		{path: "/blog", mount: func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler { return dataloader.Middleware(d.AccountStore, next) })
			posts.routes(r)
		}},
	}
}

func NewRouter(d Deps) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{
			StatusCode:    http.StatusNotFound,
			Message:       "API not found",
			ErrorMessages: []ErrorMessage{{Path: r.URL.Path, Message: "API not found"}},
		})
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ping != nil {
			if err := d.Ping(r.Context()); err != nil {
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})

	router.Route(apiPrefix, func(r chi.Router) {
		for _, m := range moduleRoutes(d) {
			r.Route(m.path, m.mount)
		}
	})

	return router
}
