// Package config loads runtime settings from the environment.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every variable name read by Load.
const EnvPrefix = "MEMBERDESK_"

// Defaults
const (
	DefaultAddr          = ":8080"
	DefaultAPIURL        = "http://localhost/users.php"
	DefaultEnv           = "development"
	DefaultRateLimit     = 10
	DefaultSlowRequestMs = 200
	DefaultSlowCallMs    = 300
	DefaultLogLevel      = "info"
	DefaultUsersAPIAddr  = ":8081"
	DefaultUsersAPIDB    = "users.db"
)

// csrfKeyBytes is the decoded length of MEMBERDESK_CSRF_KEY.
const csrfKeyBytes = 32

var (
	ErrCSRFKeyRequired = errors.New("MEMBERDESK_CSRF_KEY is required in production")
	ErrCSRFKeyInvalid  = errors.New("MEMBERDESK_CSRF_KEY must be 64 hex characters (32 bytes)")
)

// Config holds every setting for cmd/server and cmd/usersapi.
type Config struct {
	Addr          string
	APIURL        string
	Env           string
	CSRFKey       []byte
	RateLimit     int
	SlowRequestMs int
	SlowCallMs    int
	Banner        string
	ResendKey     string
	ResendFrom    string
	NotifyTo      []string
	LogLevel      slog.Level
	UsersAPIAddr  string
	UsersAPIDB    string

	// CSRFKeyGenerated is true when no key was configured and a random one was made.
	CSRFKeyGenerated bool
}

// IsProduction reports whether the server runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// NotificationsEnabled reports whether change notifications can be sent.
func (c Config) NotificationsEnabled() bool {
	return c.ResendKey != "" && c.ResendFrom != "" && len(c.NotifyTo) > 0
}

// Load reads an optional .env file and then the environment.
// PRE: none
// POST: Returns a validated Config, or an error naming the first bad variable
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from a lookup function, so tests need not touch the process environment.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(name, def string) string {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := Config{
		Addr:         get("ADDR", DefaultAddr),
		APIURL:       get("API_URL", DefaultAPIURL),
		Env:          get("ENV", DefaultEnv),
		Banner:       get("BANNER", ""),
		ResendKey:    get("RESEND_KEY", ""),
		ResendFrom:   get("RESEND_FROM", ""),
		UsersAPIAddr: get("USERSAPI_ADDR", DefaultUsersAPIAddr),
		UsersAPIDB:   get("USERSAPI_DB", DefaultUsersAPIDB),
	}

	var err error
	if cfg.RateLimit, err = positiveInt("RATE_LIMIT", get("RATE_LIMIT", ""), DefaultRateLimit); err != nil {
		return Config{}, err
	}
	if cfg.SlowRequestMs, err = positiveInt("SLOW_REQUEST_MS", get("SLOW_REQUEST_MS", ""), DefaultSlowRequestMs); err != nil {
		return Config{}, err
	}
	if cfg.SlowCallMs, err = positiveInt("SLOW_CALL_MS", get("SLOW_CALL_MS", ""), DefaultSlowCallMs); err != nil {
		return Config{}, err
	}
	if cfg.LogLevel, err = parseLevel(get("LOG_LEVEL", DefaultLogLevel)); err != nil {
		return Config{}, err
	}
	for _, addr := range strings.Split(get("NOTIFY_TO", ""), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			cfg.NotifyTo = append(cfg.NotifyTo, addr)
		}
	}

	if cfg.CSRFKey, cfg.CSRFKeyGenerated, err = csrfKey(get("CSRF_KEY", ""), cfg.IsProduction()); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
// POST: Returns nil when the config is usable
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%sAPI_URL must be an absolute http(s) URL, got %q", EnvPrefix, c.APIURL)
	}
	switch c.Env {
	case "development", "production", "test":
	default:
		return fmt.Errorf("%sENV must be development, production or test, got %q", EnvPrefix, c.Env)
	}
	if len(c.CSRFKey) != csrfKeyBytes {
		return ErrCSRFKeyInvalid
	}
	if c.ResendKey != "" && c.ResendFrom == "" {
		return fmt.Errorf("%sRESEND_FROM is required when %sRESEND_KEY is set", EnvPrefix, EnvPrefix)
	}
	return nil
}

func positiveInt(name, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s%s must be a positive integer, got %q", EnvPrefix, name, raw)
	}
	return n, nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("%sLOG_LEVEL: %w", EnvPrefix, err)
	}
	return level, nil
}

// csrfKey decodes the configured key, or generates one outside production.
func csrfKey(keyHex string, production bool) ([]byte, bool, error) {
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != csrfKeyBytes {
			return nil, false, ErrCSRFKeyInvalid
		}
		return key, false, nil
	}
	if production {
		return nil, false, ErrCSRFKeyRequired
	}
	key := make([]byte, csrfKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate CSRF key: %w", err)
	}
	return key, true, nil
}
