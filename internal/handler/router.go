package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hospitalbooking/internal/apiclient"
	"github.com/hospitalbooking/internal/guard"
	"github.com/hospitalbooking/internal/middleware"
	"github.com/hospitalbooking/internal/storage"
	"github.com/hospitalbooking/internal/ws"
)

// Deps — зависимости HTTP-поверхности консоли.
type Deps struct {
	Store          storage.Store
	API            *apiclient.Client
	Hub            *ws.Hub
	Table          *guard.Table
	APIBaseURL     string
	AllowedOrigins string
	ProfileCookie  string
	CookieSecure   bool
	// AccessLog включает chi Logger (в тестах выключен).
	AccessLog bool
}

func NewRouter(d Deps) http.Handler {
	if d.Table == nil {
		d.Table = guard.DefaultTable()
	}
	if d.ProfileCookie == "" {
		d.ProfileCookie = "hb_profile"
	}
	pages := NewPageHandler(d.Store, d.Table)
	auth := NewAuthHandler(d.Store, d.API)
	dash := NewDashboardHandler(d.Store, d.API)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	if d.AccessLog {
		r.Use(chimw.Logger)
	}
	r.Use(middleware.RecoverJSON)
	r.Use(middleware.RequestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(d.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/api/config/console", NewConfigHandler(d.APIBaseURL).GetConsoleConfig)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Profile(d.ProfileCookie, d.CookieSecure))

		limit := middleware.RateLimitAuth()
		r.Route("/auth", func(r chi.Router) {
			r.With(limit).Post("/login", auth.Login)
			r.With(limit).Post("/register", auth.Register)
			r.Post("/logout", auth.Logout)
		})

		r.Route("/api/console", func(r chi.Router) {
			r.Get("/reservations", dash.Reservations)
			r.Get("/call-logs", dash.CallLogs)
			r.Get("/customers", dash.Customers)
			r.Get("/settings", dash.Settings)
			r.Get("/analytics", dash.Analytics)
		})

		if d.Hub != nil {
			r.Get("/ws", NewWSHandler(d.Hub, d.AllowedOrigins).ServeWS)
		}

		r.Get("/*", pages.Serve)
	})
	return r
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
