package httpapi

import (
	"embed"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
)

//go:embed templates/index.html
var templatesFS embed.FS

type RouterConfig struct {
	ServiceName    string
	RequestTimeout time.Duration
	// AccessLog enables httplog request logging.
	AccessLog bool
	JSONLogs  bool
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.AccessLog {
		accessLog := httplog.NewLogger(cfg.ServiceName, httplog.Options{
			JSON:    cfg.JSONLogs,
			Concise: true,
		})
		r.Use(httplog.RequestLogger(accessLog))
	}
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/", h.Index)
	r.Get("/healthz", h.Health)
	r.Post("/validate_api_key", h.ValidateKey)
	r.Post("/compare", h.Compare)
	r.Post("/compare/{path}", h.ComparePath)

	return r
}
