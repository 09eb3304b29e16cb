package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"START_DATE", "OUTPUT_PATH", "FETCH_TIMEOUT_SECS", "REFRESH_INTERVAL_SECS", "DATABASE_URL", "TELEGRAM_CHAT_ID"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if !cfg.StartDate.Equal(time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected default start date: %v", cfg.StartDate)
	}
	if cfg.OutputPath != "public/data.json" {
		t.Fatalf("unexpected default output path: %s", cfg.OutputPath)
	}
	if cfg.FetchTimeoutSecs != 30 || cfg.RefreshIntervalSecs != 21600 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("START_DATE", "2020-06-15")
	t.Setenv("OUTPUT_PATH", "/tmp/out.json")
	t.Setenv("FETCH_TIMEOUT_SECS", "5")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg := Load()
	if cfg.StartDate.Format("2006-01-02") != "2020-06-15" {
		t.Fatalf("unexpected start date: %v", cfg.StartDate)
	}
	if cfg.OutputPath != "/tmp/out.json" || cfg.FetchTimeoutSecs != 5 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.TelegramChatID != -100123 {
		t.Fatalf("unexpected chat id: %d", cfg.TelegramChatID)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("START_DATE", "not-a-date")
	t.Setenv("FETCH_TIMEOUT_SECS", "-3")
	t.Setenv("TELEGRAM_CHAT_ID", "abc")

	cfg := Load()
	if cfg.StartDate.Format("2006-01-02") != "2015-01-01" {
		t.Fatalf("invalid START_DATE should fall back, got %v", cfg.StartDate)
	}
	if cfg.FetchTimeoutSecs != 30 {
		t.Fatalf("invalid timeout should fall back, got %d", cfg.FetchTimeoutSecs)
	}
	if cfg.TelegramChatID != 0 {
		t.Fatalf("invalid chat id should stay zero, got %d", cfg.TelegramChatID)
	}
}
