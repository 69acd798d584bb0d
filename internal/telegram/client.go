package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/logger"
)

const defaultAPIURL = "https://api.telegram.org"

// Bot talks to one authorized chat.
type Bot struct {
	token      string
	chatID     int64
	apiURL     string
	httpClient *http.Client
	logger     *logger.Logger
	retryDelay time.Duration
}

// Option configures the bot.
type Option func(*Bot)

// WithAPIURL points the bot at another Bot API endpoint.
func WithAPIURL(u string) Option {
	return func(b *Bot) {
		b.apiURL = u
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(b *Bot) {
		b.logger = l
	}
}

// New creates a bot for the given token and chat.
func New(token string, chatID int64, opts ...Option) *Bot {
	b := &Bot{
		token:      token,
		chatID:     chatID,
		apiURL:     defaultAPIURL,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		logger:     logger.NewSilent(),
		retryDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enabled reports whether credentials are configured.
func (b *Bot) Enabled() bool {
	return b != nil && b.token != "" && b.chatID != 0
}

// Notify sends a message to the configured chat.
func (b *Bot) Notify(ctx context.Context, text string) {
	if !b.Enabled() {
		return
	}
	b.logger.Debug().Str("text", text).Msg("Telegram notify")

	payload := map[string]string{
		"chat_id":    strconv.FormatInt(b.chatID, 10),
		"text":       text,
		"parse_mode": "Markdown",
	}
	if err := b.call(ctx, "sendMessage", payload); err != nil {
		b.logger.Warn().Err(err).Msg("Telegram alert failed")
	}
}

func (b *Bot) call(ctx context.Context, method string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.apiURL, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram %s: status %s", method, resp.Status)
	}
	return nil
}
