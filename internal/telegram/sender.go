package telegram

import (
	"context"
	"encoding/json"
	"strconv"
)

// Button represents an inline keyboard button.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// SendInteractiveMessage sends a message with inline buttons in one row.
func (b *Bot) SendInteractiveMessage(ctx context.Context, text string, buttons []Button) {
	if !b.Enabled() {
		return
	}

	keyboard := map[string]interface{}{
		"inline_keyboard": [][]Button{buttons},
	}
	keyboardJSON, _ := json.Marshal(keyboard)

	data := map[string]string{
		"chat_id":      strconv.FormatInt(b.chatID, 10),
		"text":         text,
		"parse_mode":   "Markdown",
		"reply_markup": string(keyboardJSON),
	}
	if err := b.call(ctx, "sendMessage", data); err != nil {
		b.logger.Warn().Err(err).Msg("Telegram interactive message failed")
	}
}

// AnswerCallback stops the loading spinner on the pressed button.
func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) {
	if !b.Enabled() || callbackID == "" {
		return
	}
	data := map[string]string{
		"callback_query_id": callbackID,
		"text":              text,
	}
	if err := b.call(ctx, "answerCallbackQuery", data); err != nil {
		b.logger.Warn().Err(err).Msg("Telegram callback answer failed")
	}
}
