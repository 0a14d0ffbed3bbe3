// Package telegram sends run summaries via the Telegram Bot API.
// A summary names the action, its outcome, the files that failed and the
// outputs written, and is delivered with retry logic for reliability.
package telegram

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/cageconvert/internal/models"
)

// maxListed caps the number of failed files named in one message.
const maxListed = 10

// sender is the part of the bot API the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendSummary sends the outcome of a finished run.
func (c *Client) SendSummary(run *models.Run, files []models.FileResult) error {
	msg := tgbotapi.NewMessage(c.chatID, formatSummary(run, files))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatSummary renders a run as a MarkdownV2 message.
func formatSummary(run *models.Run, files []models.FileResult) string {
	var b strings.Builder

	status := "✅"
	if run.Status == models.RunFailed {
		status = "❌"
	}
	fmt.Fprintf(&b, "%s *cageconvert %s*\n\n", status, escapeMarkdownV2(run.Action))

	if run.System != "" {
		fmt.Fprintf(&b, "🧪 System: %s\n", escapeMarkdownV2(run.System))
	}
	fmt.Fprintf(&b, "📂 Input: %s\n", escapeMarkdownV2(run.Input))
	if run.Frequency > 0 {
		fmt.Fprintf(&b, "📏 Frequency: %ss\n", escapeMarkdownV2(strconv.FormatInt(run.Frequency, 10)))
	}
	fmt.Fprintf(&b, "⏱ Took: %s\n", escapeMarkdownV2(formatDuration(run.Duration())))

	var failed []models.FileResult
	for _, f := range files {
		if f.Failed() {
			failed = append(failed, f)
		}
	}
	fmt.Fprintf(&b, "📄 Files: %d parsed, %d failed\n", len(files)-len(failed), len(failed))

	if run.Error != "" {
		fmt.Fprintf(&b, "\n⚠️ %s\n", escapeMarkdownV2(run.Error))
	}

	for i, f := range failed {
		if i == maxListed {
			fmt.Fprintf(&b, "   %s\n", escapeMarkdownV2(fmt.Sprintf("... and %d more", len(failed)-maxListed)))
			break
		}
		fmt.Fprintf(&b, "   • %s: %s\n", escapeMarkdownV2(filepath.Base(f.Path)), escapeMarkdownV2(f.Error))
	}

	if len(run.Outputs) > 0 {
		b.WriteString("\n💾 Outputs:\n")
		for _, out := range run.Outputs {
			fmt.Fprintf(&b, "   %s\n", escapeMarkdownV2(filepath.Base(out)))
		}
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if h := int(d.Hours()); h >= 1 {
		return fmt.Sprintf("%dh", h)
	}
	if m := int(d.Minutes()); m >= 1 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
