package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"liquidity-pulse/internal/domain"
)

type Config struct {
	StartDate           time.Time
	OutputPath          string
	FetchTimeoutSecs    int
	RefreshIntervalSecs int

	DatabaseURL      string
	RedisURL         string
	TelegramBotToken string
	TelegramChatID   int64
	APIKey           string
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		APIKey:           strings.TrimSpace(os.Getenv("API_KEY")),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, run history disabled")
	}

	cfg.StartDate = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	if v := strings.TrimSpace(os.Getenv("START_DATE")); v != "" {
		if d, err := time.ParseInLocation(domain.DateFormat, v, time.UTC); err == nil {
			cfg.StartDate = d
		} else {
			log.Printf("Warning: invalid START_DATE=%q, defaulting to %s", v, cfg.StartDate.Format(domain.DateFormat))
		}
	}

	cfg.OutputPath = "public/data.json"
	if v := strings.TrimSpace(os.Getenv("OUTPUT_PATH")); v != "" {
		cfg.OutputPath = v
	}

	cfg.FetchTimeoutSecs = 30
	if v := strings.TrimSpace(os.Getenv("FETCH_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FetchTimeoutSecs = n
		}
	}

	// The upstream series update at most daily; refreshing every 6 hours
	// keeps the artifact fresh without hammering the providers.
	cfg.RefreshIntervalSecs = 21600
	if v := strings.TrimSpace(os.Getenv("REFRESH_INTERVAL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RefreshIntervalSecs = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = n
		} else {
			log.Printf("Warning: invalid TELEGRAM_CHAT_ID=%q, alerts disabled", v)
		}
	}

	return cfg
}
