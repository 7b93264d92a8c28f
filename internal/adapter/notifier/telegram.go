package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/semmidev/dbkeep/internal/domain"
)

// maxFailuresListed caps the failure lines in one message; Telegram rejects
// messages above 4096 characters.
const maxFailuresListed = 30

type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	host   string
}

func NewTelegram(token, chatID, host string) (*TelegramNotifier, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:    bot,
		chatID: id,
		host:   host,
	}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, summary *domain.RunSummary) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatSummary(t.host, summary))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

// FormatSummary renders the run summary as a plain text chat message.
func FormatSummary(host string, summary *domain.RunSummary) string {
	var b strings.Builder

	jobs := summary.Jobs()
	attempted, succeeded := 0, 0
	for _, j := range jobs {
		attempted += j.Attempted
		succeeded += j.Succeeded
	}

	if summary.Success() {
		fmt.Fprintf(&b, "✅ Backup run on %s succeeded\n\n", host)
	} else {
		fmt.Fprintf(&b, "❌ Backup run on %s had failures\n\n", host)
	}
	fmt.Fprintf(&b, "📦 Jobs: %d\n", len(jobs))
	fmt.Fprintf(&b, "🗄 Databases: %d/%d backed up\n", succeeded, attempted)

	for _, je := range summary.JobErrors() {
		fmt.Fprintf(&b, "\n⛔ %v", je)
	}

	failures := summary.Failures()
	if len(failures) > 0 {
		fmt.Fprintf(&b, "\n\nFailed (%d):", len(failures))
		for i, f := range failures {
			if i == maxFailuresListed {
				fmt.Fprintf(&b, "\n… and %d more", len(failures)-maxFailuresListed)
				break
			}
			fmt.Fprintf(&b, "\n• %s [%s]", f.ID(), f.Stage)
		}
	}

	return b.String()
}
