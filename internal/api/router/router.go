package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/bl-concierge/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/bl-concierge/internal/http/middleware"
	"github.com/wolfman30/bl-concierge/internal/messaging"
	"github.com/wolfman30/bl-concierge/internal/webchat"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// Config holds router configuration. Optional handlers left nil are not
// mounted.
type Config struct {
	Logger             *logging.Logger
	MessagesHandler    *messaging.Handler
	WebChat            *webchat.Handler
	AdminSessions      *handlers.AdminSessionsHandler
	AdminActivity      *handlers.AdminActivityHandler
	AdminReceipts      *handlers.AdminReceiptsHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	// ChatRateLimiter throttles the public message endpoints per client.
	ChatRateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.MessagesHandler == nil {
		panic("router: messages handler cannot be nil")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", healthz)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.RateLimit(cfg.ChatRateLimiter))
		public.Route("/v1/messages", func(r chi.Router) {
			r.Post("/", cfg.MessagesHandler.PostMessage)
			r.Get("/{jobID}", cfg.MessagesHandler.GetJob)
		})
		if cfg.WebChat != nil {
			public.Post("/chat/message", cfg.WebChat.HandleMessage)
			public.Get("/chat/history", cfg.WebChat.HandleHistory)
		}
	})
	// The socket is long-lived, so it stays outside the rate limiter.
	if cfg.WebChat != nil {
		r.Get("/ws/chat", cfg.WebChat.HandleWebSocket)
	}

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.AdminSessions != nil {
				admin.Get("/sessions/{sender}", cfg.AdminSessions.GetSession)
				admin.Delete("/sessions/{sender}", cfg.AdminSessions.ResetSession)
			}
			if cfg.AdminActivity != nil {
				admin.Get("/activity/{sender}", cfg.AdminActivity.ListActivity)
			}
			if cfg.AdminReceipts != nil {
				admin.Get("/receipts/{filename}", cfg.AdminReceipts.GetReceipt)
			}
		})
	}

	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}
