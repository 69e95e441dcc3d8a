package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"goimovel/internal/api/listing"
	"goimovel/internal/api/moderation"
	"goimovel/internal/api/user"
	"goimovel/internal/domain"
	"goimovel/internal/pkg/cache"
	"goimovel/internal/pkg/logger"
	"goimovel/internal/pkg/middleware"
)

// Options reúne as dependências do roteador, já inicializadas pelo main.
type Options struct {
	ListingHandler    *listing.Handler
	ModerationHandler *moderation.Handler
	UserHandler       *user.Handler
	TokenSvc          middleware.TokenService

	// Cache nil desliga o rate limiter.
	Cache           cache.Client
	RateLimitMax    int
	RateLimitPeriod time.Duration

	AllowedOrigins []string
	Logger         logger.Logger
}

// NewRouter configura e retorna o roteador HTTP principal.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	// --- Middlewares globais ---
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Metrics)
	if opts.Cache != nil {
		r.Use(middleware.RateLimiter(opts.Cache, opts.RateLimitMax, opts.RateLimitPeriod, opts.Logger))
	}

	// --- Operacionais ---
	r.Get("/ping", PingHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	requireAuth := middleware.RequireAuth(opts.TokenSvc)
	optionalAuth := middleware.OptionalAuth(opts.TokenSvc)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/register", opts.UserHandler.RegisterUserHandler)
		v1.Post("/login", opts.UserHandler.LoginUserHandler)

		lh := opts.ListingHandler

		// Leitura: anônimos são aceitos, a visibilidade depende do viewer.
		v1.Group(func(pub chi.Router) {
			pub.Use(optionalAuth)
			pub.Get("/listings/{kind}", lh.ListHandler)
			pub.Get("/listings/{kind}/public", lh.PublicHandler)
			pub.Get("/listings/{kind}/map", lh.MapHandler)
			pub.Get("/listings/{kind}/{id}", lh.GetHandler)
			pub.Get("/users/{id}/listings/{kind}", lh.UserListingsHandler)
		})

		v1.Group(func(auth chi.Router) {
			auth.Use(requireAuth)

			auth.Post("/listings/{kind}", lh.SubmitHandler)
			auth.Put("/listings/{kind}/{id}", lh.UpdateHandler)
			auth.Delete("/listings/{kind}/{id}", lh.DeleteHandler)
			auth.Patch("/listings/{kind}/{id}/resubmit", lh.ResubmitHandler)
			auth.Post("/listings/{kind}/{id}/favorite", lh.AddFavoriteHandler)
			auth.Delete("/listings/{kind}/{id}/favorite", lh.RemoveFavoriteHandler)

			auth.Get("/me/listings/{kind}", lh.MyListingsHandler)
			auth.Get("/me/favorites/{kind}", lh.FavoritesHandler)
			auth.Get("/users/{id}/listing-limit", lh.ListingLimitHandler)

			mh := opts.ModerationHandler
			auth.Route("/moderation", func(mod chi.Router) {
				mod.Use(middleware.PermissionMiddleware(domain.RoleAdmin))
				mod.Get("/{kind}/pending", mh.QueueHandler(domain.StatusPending))
				mod.Get("/{kind}/approved", mh.QueueHandler(domain.StatusApproved))
				mod.Get("/{kind}/rejected", mh.QueueHandler(domain.StatusRejected))
				mod.Patch("/{kind}/{id}", mh.ApproveHandler)
				mod.Post("/{kind}/{id}/reject", mh.RejectHandler)
				mod.Get("/{kind}/{id}/events", mh.EventsHandler)
			})
		})
	})

	return r
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}
