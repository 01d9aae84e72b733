package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string // API bind address, e.g., ":8080"
	LogDir      string // logs directory
	DatabaseURL string // postgres DSN; empty means use the sqlite file
	SQLitePath  string // sqlite database file path

	TickInterval time.Duration // scheduler tick period
	SeedURLs     []string      // TARGET_URLS, re-registered on every tick

	// Defaults applied to newly registered targets.
	DefaultRefreshSeconds int
	DefaultTimeoutSeconds int
	DefaultSSLExpiryDays  int

	MailEnabled bool
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	MailFrom    string

	SlackWebhook string
}

func FromEnv() Config {
	// Best effort; a missing .env file is fine.
	_ = godotenv.Load()

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "passie.db"
	}

	tick := 1 * time.Second
	if v := os.Getenv("TICK_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			tick = time.Duration(ms) * time.Millisecond
		}
	}

	var seeds []string
	for _, s := range strings.Split(os.Getenv("TARGET_URLS"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			seeds = append(seeds, s)
		}
	}

	from := os.Getenv("MAIL_FROM")
	if from == "" {
		from = "PassieUptimeRobot <no-reply@localhost>"
	}

	return Config{
		Addr:        addr,
		LogDir:      logDir,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  sqlitePath,

		TickInterval: tick,
		SeedURLs:     seeds,

		DefaultRefreshSeconds: envInt("DEFAULT_REFRESH_SECONDS", 60),
		DefaultTimeoutSeconds: envInt("DEFAULT_TIMEOUT_SECONDS", 30),
		DefaultSSLExpiryDays:  envInt("DEFAULT_SSL_EXPIRY_DAYS", 30),

		MailEnabled: strings.EqualFold(os.Getenv("MAIL_ENABLED"), "true"),
		SMTPHost:    os.Getenv("SMTP_HOST"),
		SMTPPort:    envInt("SMTP_PORT", 587),
		SMTPUser:    os.Getenv("SMTP_USER"),
		SMTPPass:    os.Getenv("SMTP_PASS"),
		MailFrom:    from,

		SlackWebhook: os.Getenv("SLACK_WEBHOOK"),
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
