package server

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/card-scanner/internal/auth"
	"github.com/joseph-ayodele/card-scanner/internal/cards"
	"github.com/joseph-ayodele/card-scanner/internal/export"
	"github.com/joseph-ayodele/card-scanner/internal/utils"
)

const (
	sessionCookie         = "session"
	DefaultMaxUploadBytes = 10 << 20
)

//go:embed templates/*.html
var templateFS embed.FS

// Pinger reports database health.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

type Options struct {
	SecureCookies  bool
	MaxUploadBytes int64
}

// Server holds the services the HTTP handlers need.
type Server struct {
	auth   *auth.Service
	cards  *cards.Service
	export *export.Service
	db     Pinger
	opts   Options
	tmpl   *template.Template
	logger *slog.Logger
}

func New(authSvc *auth.Service, cardSvc *cards.Service, exportSvc *export.Service, db Pinger, opts Options, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"uploadedOn": utils.FormatUploadedOn,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{
		auth:   authSvc,
		cards:  cardSvc,
		export: exportSvc,
		db:     db,
		opts:   opts,
		tmpl:   tmpl,
		logger: logger,
	}, nil
}

// Handler returns the routed handler with request id and logging middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	mux.HandleFunc("GET /login", s.loginPage)
	mux.HandleFunc("GET /register", s.loginPage)
	mux.HandleFunc("POST /login", s.login)
	mux.HandleFunc("POST /register", s.register)
	mux.HandleFunc("GET /healthz", s.health)

	mux.Handle("GET /dashboard", s.requireUser(http.HandlerFunc(s.dashboard)))
	mux.Handle("POST /dashboard", s.requireUser(http.HandlerFunc(s.upload)))
	mux.Handle("GET /cards", s.requireUser(http.HandlerFunc(s.listCards)))
	mux.Handle("POST /cards", s.requireUser(http.HandlerFunc(s.listCards)))
	mux.Handle("GET /export", s.requireUser(http.HandlerFunc(s.exportCSV)))
	mux.Handle("GET /export.xlsx", s.requireUser(http.HandlerFunc(s.exportXLSX)))
	mux.Handle("GET /logout", s.requireUser(http.HandlerFunc(s.logout)))

	return s.withRequestID(s.withLogging(mux))
}
