package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Update represents a Telegram Update object (partial schema)
type Update struct {
	UpdateID int `json:"update_id"`
	Message  struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			Username string `json:"username"`
		} `json:"from"`
	} `json:"message"`
	CallbackQuery *struct {
		ID      string `json:"id"`
		Data    string `json:"data"`
		Message struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
		From struct {
			Username string `json:"username"`
		} `json:"from"`
	} `json:"callback_query"`
}

type UpdateResponse struct {
	Ok          bool     `json:"ok"`
	Result      []Update `json:"result"`
	Description string   `json:"description"`
	ErrorCode   int      `json:"error_code"`
}

// CommandHandler processes a slash command and returns the reply.
type CommandHandler func(ctx context.Context, command string) string

// CallbackHandler processes an inline button press and returns the reply.
type CallbackHandler func(ctx context.Context, data string) string

// Listen long-polls for commands and button presses until ctx is done.
// Updates from other chats are dropped without a reply.
func (b *Bot) Listen(ctx context.Context, onCommand CommandHandler, onCallback CallbackHandler) {
	if !b.Enabled() {
		b.logger.Info().Msg("Telegram listener: credentials missing, disabled")
		return
	}

	offset := 0
	b.logger.Info().Msg("Telegram listener started")

	for ctx.Err() == nil {
		updates, err := b.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			b.logger.Warn().Err(err).Msg("Telegram listener error")
			select {
			case <-ctx.Done():
			case <-time.After(b.retryDelay):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			b.dispatch(ctx, u, onCommand, onCallback)
		}
	}
	b.logger.Info().Msg("Telegram listener stopped")
}

func (b *Bot) dispatch(ctx context.Context, u Update, onCommand CommandHandler, onCallback CallbackHandler) {
	if cq := u.CallbackQuery; cq != nil {
		if cq.Message.Chat.ID != b.chatID {
			b.logger.Warn().Str("user", cq.From.Username).Int64("chat", cq.Message.Chat.ID).Msg("Unauthorized callback")
			return
		}
		reply := ""
		if onCallback != nil {
			reply = onCallback(ctx, cq.Data)
		}
		b.AnswerCallback(ctx, cq.ID, "")
		if reply != "" {
			b.Notify(ctx, reply)
		}
		return
	}

	if u.Message.Chat.ID != b.chatID {
		b.logger.Warn().
			Str("user", u.Message.From.Username).
			Int64("chat", u.Message.Chat.ID).
			Str("text", u.Message.Text).
			Msg("Unauthorized command attempt")
		return
	}

	text := strings.TrimSpace(u.Message.Text)
	if !strings.HasPrefix(text, "/") || onCommand == nil {
		return
	}
	b.logger.Info().Str("command", text).Msg("Command received")
	if reply := onCommand(ctx, text); reply != "" {
		b.Notify(ctx, reply)
	}
}

func (b *Bot) getUpdates(ctx context.Context, offset int) ([]Update, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=60", b.apiURL, b.token, offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result UpdateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if !result.Ok {
		return nil, fmt.Errorf("telegram API error: %s (code %d)", result.Description, result.ErrorCode)
	}
	return result.Result, nil
}
