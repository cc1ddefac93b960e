// Command usersapi serves the users.php member API from a local SQLite file,
// for development and browser tests.
package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"memberdesk/internal/adapters/http/middleware"
	"memberdesk/internal/adapters/http/perf"
	"memberdesk/internal/adapters/storage"
	memberStore "memberdesk/internal/adapters/storage/member"
	"memberdesk/internal/adapters/usersphp"
	"memberdesk/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	// WAL mode, busy timeout and foreign keys
	dsn := cfg.UsersAPIDB + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.MigrateDB(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	store := memberStore.NewSQLiteStore(storage.NewTimedDB(db, collector, cfg.SlowCallMs))

	n, err := usersphp.SeedDefaults(context.Background(), store)
	if err != nil {
		log.Fatalf("failed to seed members: %v", err)
	}
	if n > 0 {
		log.Printf("Seeded %d members", n)
	}

	mux := http.NewServeMux()
	mux.Handle("/users.php", usersphp.NewHandler(store))
	handler := middleware.Chain(mux, middleware.Timing(collector, cfg.SlowRequestMs))

	srv := &http.Server{
		Addr:              cfg.UsersAPIAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("users.php API on %s (db=%s, schema=%d)", cfg.UsersAPIAddr, cfg.UsersAPIDB, storage.LatestSchemaVersion())
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
