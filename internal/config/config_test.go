package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ADDR", "LOG_DIR", "DATABASE_URL", "SQLITE_PATH",
		"TICK_MS", "TARGET_URLS",
		"DEFAULT_REFRESH_SECONDS", "DEFAULT_TIMEOUT_SECONDS", "DEFAULT_SSL_EXPIRY_DAYS",
		"MAIL_ENABLED", "SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "MAIL_FROM",
		"SLACK_WEBHOOK",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := FromEnv()
	if cfg.Addr != ":8080" {
		t.Fatalf("addr default: %q", cfg.Addr)
	}
	if cfg.LogDir != "logs" {
		t.Fatalf("log dir default: %q", cfg.LogDir)
	}
	if cfg.SQLitePath != "passie.db" {
		t.Fatalf("sqlite path default: %q", cfg.SQLitePath)
	}
	if cfg.TickInterval != time.Second {
		t.Fatalf("tick default: %v", cfg.TickInterval)
	}
	if len(cfg.SeedURLs) != 0 {
		t.Fatalf("no seeds expected, got %v", cfg.SeedURLs)
	}
	if cfg.DefaultRefreshSeconds != 60 || cfg.DefaultTimeoutSeconds != 30 || cfg.DefaultSSLExpiryDays != 30 {
		t.Fatalf("target defaults: %+v", cfg)
	}
	if cfg.MailEnabled {
		t.Fatal("mail must default to disabled")
	}
	if cfg.SMTPPort != 587 {
		t.Fatalf("smtp port default: %d", cfg.SMTPPort)
	}
	if cfg.MailFrom != "PassieUptimeRobot <no-reply@localhost>" {
		t.Fatalf("mail from default: %q", cfg.MailFrom)
	}
}

func TestFromEnv_ParsesValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADDR", ":9000")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/passie")
	t.Setenv("TICK_MS", "250")
	t.Setenv("TARGET_URLS", " https://a.example , https://b.example ,, ")
	t.Setenv("DEFAULT_REFRESH_SECONDS", "120")
	t.Setenv("MAIL_ENABLED", "TRUE")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")

	cfg := FromEnv()
	if cfg.Addr != ":9000" {
		t.Fatalf("addr: %q", cfg.Addr)
	}
	if cfg.DatabaseURL != "postgres://u:p@localhost/passie" {
		t.Fatalf("database url: %q", cfg.DatabaseURL)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("tick: %v", cfg.TickInterval)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.SeedURLs) != len(want) || cfg.SeedURLs[0] != want[0] || cfg.SeedURLs[1] != want[1] {
		t.Fatalf("seeds: %v", cfg.SeedURLs)
	}
	if cfg.DefaultRefreshSeconds != 120 {
		t.Fatalf("refresh: %d", cfg.DefaultRefreshSeconds)
	}
	if !cfg.MailEnabled {
		t.Fatal("MAIL_ENABLED=TRUE must enable mail")
	}
	if cfg.SMTPHost != "smtp.example.com" || cfg.SMTPPort != 2525 {
		t.Fatalf("smtp: %q:%d", cfg.SMTPHost, cfg.SMTPPort)
	}
}

func TestFromEnv_RejectsBadNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("TICK_MS", "not-a-number")
	t.Setenv("SMTP_PORT", "-1")
	t.Setenv("DEFAULT_REFRESH_SECONDS", "0")

	cfg := FromEnv()
	if cfg.TickInterval != time.Second {
		t.Fatalf("bad tick must fall back, got %v", cfg.TickInterval)
	}
	if cfg.SMTPPort != 587 {
		t.Fatalf("negative port must fall back, got %d", cfg.SMTPPort)
	}
	if cfg.DefaultRefreshSeconds != 60 {
		t.Fatalf("zero refresh must fall back, got %d", cfg.DefaultRefreshSeconds)
	}
}
