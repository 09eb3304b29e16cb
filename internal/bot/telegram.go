package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"liquidity-pulse/internal/service"

	tele "gopkg.in/telebot.v3"
)

// Alerter pushes pipeline alerts (fatal runs, degraded mode) to a fixed chat.
// A nil Alerter is valid and drops every message, so callers can wire it
// unconditionally.
type Alerter struct {
	bot    *tele.Bot
	chatID int64
}

// NewAlerter builds an alerter from the bot token and chat id. Either missing
// disables alerting.
func NewAlerter(token string, chatID int64) *Alerter {
	if token == "" || chatID == 0 {
		log.Println("Telegram alerts disabled (token or chat id missing)")
		return nil
	}
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		log.Printf("failed to create Telegram alerter: %v", err)
		return nil
	}
	return &Alerter{bot: b, chatID: chatID}
}

func (a *Alerter) SendRunAlert(message string) {
	if a == nil || a.bot == nil {
		return
	}
	if _, err := a.bot.Send(tele.ChatID(a.chatID), message); err != nil {
		log.Printf("failed to send Telegram alert: %v", err)
	}
}

// StartTelegramBot exposes the latest snapshot over chat commands. Skipped
// entirely when TELEGRAM_BOT_TOKEN is unset.
func StartTelegramBot(liquidityService *service.LiquidityService) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/liquidity", func(c tele.Context) error {
		latest, err := liquidityService.GetLatest(context.Background())
		if err != nil {
			return c.Send(fmt.Sprintf("Error reading snapshot: %v", err))
		}
		msg := fmt.Sprintf(
			"Net Liquidity (%s)\n%.2f B\nFed Assets: %.2f B\nTGA: %.2f B\nRRP: %.2f B\nLoans: %.2f B + %.2f B",
			latest.Date, latest.NetLiquidity, latest.FedAssets, latest.TGA, latest.RRP,
			latest.LoansFacilities, latest.LoansHeld,
		)
		return c.Send(msg)
	})

	b.Handle("/runs", func(c tele.Context) error {
		runs, err := liquidityService.GetRuns(context.Background(), 5)
		if err != nil {
			return c.Send(fmt.Sprintf("Run history unavailable: %v", err))
		}
		if len(runs) == 0 {
			return c.Send("No recorded runs yet")
		}
		var sb strings.Builder
		for _, r := range runs {
			fmt.Fprintf(&sb, "%s  %s  rows=%d last=%s\n",
				r.StartedAt.Format("2006-01-02 15:04"), r.Status, r.RowCount, r.LastDate)
		}
		return c.Send(sb.String())
	})

	log.Println("Telegram bot started")
	go b.Start()
}
