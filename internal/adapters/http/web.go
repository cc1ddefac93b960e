package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"memberdesk/internal/adapters/http/middleware"
	"memberdesk/internal/adapters/http/perf"
	"memberdesk/internal/application/forms"
	"memberdesk/internal/application/orchestrators"
)

//go:embed static/*
var staticFiles embed.FS

// Deps holds everything the handlers need.
type Deps struct {
	API       orchestrators.MemberAPI
	Forms     *forms.Tracker
	Notifier  orchestrators.Notifier // optional
	Collector *perf.Collector        // optional
	// Banner is operator-supplied markup rendered above the table.
	Banner template.HTML
}

// Options configures the middleware chain.
type Options struct {
	CSRFKey        []byte
	Production     bool
	RateLimit      int // requests per second per client IP
	SlowRequestMs  int
	TrustedOrigins []string
	// Limiter overrides the limiter built from RateLimit, so callers can run its cleanup loop.
	Limiter *middleware.RateLimiter
}

// server binds handlers to their dependencies.
type server struct {
	deps       Deps
	production bool
}

// NewMux wires HTTP handlers and middleware for the member desk.
// PRE: deps.API and deps.Forms are non-nil; opts.CSRFKey is 32 bytes
func NewMux(deps Deps, opts Options) http.Handler {
	mux := newRouter(deps, opts.Production)

	limiter := opts.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(opts.RateLimit, time.Second)
	}

	// Timing -> RateLimit -> CSRF -> SecurityHeaders -> mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(middleware.CSRFOptions{
			Key:            opts.CSRFKey,
			Secure:         opts.Production,
			TrustedOrigins: opts.TrustedOrigins,
		}),
		middleware.RateLimit(limiter),
		middleware.Timing(deps.Collector, opts.SlowRequestMs),
	)
}

// newRouter registers routes without middleware.
func newRouter(deps Deps, production bool) *http.ServeMux {
	s := &server{deps: deps, production: production}

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePage)
	mux.HandleFunc("/members/table", s.handleTable)
	mux.HandleFunc("/members/form/add", s.handleAddForm)
	mux.HandleFunc("/members/form/edit", s.handleEditForm)
	mux.HandleFunc("/members/form/cancel", s.handleCancelForm)
	mux.HandleFunc("/members/create", s.handleCreate)
	mux.HandleFunc("/members/update", s.handleUpdate)
	mux.HandleFunc("/members/delete", s.handleDelete)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/debug/perf", s.handlePerf)
	return mux
}
