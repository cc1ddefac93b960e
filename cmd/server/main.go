package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	emailPkg "memberdesk/internal/adapters/email"
	web "memberdesk/internal/adapters/http"
	"memberdesk/internal/adapters/http/middleware"
	"memberdesk/internal/adapters/http/perf"
	"memberdesk/internal/adapters/http/view"
	"memberdesk/internal/adapters/memberapi"
	"memberdesk/internal/application/forms"
	"memberdesk/internal/application/orchestrators"
	"memberdesk/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	if cfg.CSRFKeyGenerated {
		log.Println("MEMBERDESK_CSRF_KEY not set, using a random key (tokens reset on restart)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := perf.NewCollector(perf.DefaultRingSize)

	api, err := newMemberAPI(cfg, collector)
	if err != nil {
		log.Fatalf("member api: %v", err)
	}

	// Change notifications
	var sender emailPkg.Sender = emailPkg.NewNoopSender()
	if cfg.NotificationsEnabled() {
		sender = emailPkg.NewResendSender(cfg.ResendKey, cfg.ResendFrom)
		log.Printf("Change notifications enabled (Resend, %d recipients)", len(cfg.NotifyTo))
	} else {
		log.Println("Change notifications disabled (set MEMBERDESK_RESEND_KEY, MEMBERDESK_RESEND_FROM and MEMBERDESK_NOTIFY_TO)")
	}
	notifier := &orchestrators.ChangeNotifier{Sender: sender, From: cfg.ResendFrom, To: cfg.NotifyTo}

	banner, err := view.RenderBanner(cfg.Banner)
	if err != nil {
		log.Fatalf("banner: %v", err)
	}

	tracker := forms.NewTracker(forms.DefaultTTL)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Second)

	jobs := cron.New()
	if err := scheduleHousekeeping(jobs, tracker, limiter); err != nil {
		log.Fatalf("housekeeping: %v", err)
	}
	jobs.Start()
	defer jobs.Stop()

	mux := web.NewMux(web.Deps{
		API:       api,
		Forms:     tracker,
		Notifier:  notifier,
		Collector: collector,
		Banner:    banner,
	}, web.Options{
		CSRFKey:       cfg.CSRFKey,
		Production:    cfg.IsProduction(),
		RateLimit:     cfg.RateLimit,
		SlowRequestMs: cfg.SlowRequestMs,
		Limiter:       limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown_failed", "error", err)
		}
	}()

	log.Printf("Memberdesk %s starting on %s (env=%s, api=%s)", version, cfg.Addr, cfg.Env, cfg.APIURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

// newMemberAPI builds the remote member client. Calls get no deadline of their own:
// a started request runs until the service answers or the connection fails.
func newMemberAPI(cfg config.Config, collector *perf.Collector) (*memberapi.Client, error) {
	api, err := memberapi.NewClient(cfg.APIURL, nil, collector)
	if err != nil {
		return nil, err
	}
	api.SetSlowThreshold(cfg.SlowCallMs)
	return api, nil
}
