package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/zakisalem/souq-bot/internal/models"
)

// TelegramBot drives the long-poll update loop and renders quick
// replies as inline keyboards.
type TelegramBot struct {
	api       *tgbotapi.BotAPI
	processor Processor
	logger    *zap.Logger
}

func NewTelegramBot(token string, processor Processor, logger *zap.Logger) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramBot{
		api:       api,
		processor: processor,
		logger:    logger,
	}, nil
}

func (b *TelegramBot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			switch {
			case update.CallbackQuery != nil:
				go b.handleCallback(ctx, update.CallbackQuery)
			case update.Message != nil:
				go b.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	ev := models.Event{
		Platform:   PlatformTelegram,
		SenderID:   fmt.Sprintf("%d", message.From.ID),
		SenderName: message.From.FirstName,
		Text:       message.Text,
		Timestamp:  time.Unix(int64(message.Date), 0),
	}
	if message.Caption != "" {
		ev.Text = message.Caption
	}

	if len(message.Photo) > 0 {
		// Largest size is last.
		photo := message.Photo[len(message.Photo)-1]
		data, url, err := b.downloadFile(photo.FileID)
		if err != nil {
			b.logger.Error("Failed to download photo",
				zap.Error(err),
				zap.Int64("chat_id", message.Chat.ID))
		} else {
			ev.Image = data
			ev.ImageMIME = "image/jpeg"
			ev.ImageURL = url
		}
	}

	b.dispatch(ctx, message.Chat.ID, ev)
}

// handleCallback treats an inline-keyboard press as if the user had
// typed the button payload.
func (b *TelegramBot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("Failed to ack callback query", zap.Error(err))
	}

	ev := models.Event{
		Platform:   PlatformTelegram,
		SenderID:   fmt.Sprintf("%d", query.From.ID),
		SenderName: query.From.FirstName,
		Text:       query.Data,
		Timestamp:  time.Now(),
	}
	b.dispatch(ctx, query.Message.Chat.ID, ev)
}

func (b *TelegramBot) dispatch(ctx context.Context, chatID int64, ev models.Event) {
	resp, err := b.processor.Process(ctx, ev)
	if err != nil {
		b.logger.Error("Failed to process message",
			zap.Error(err),
			zap.String("sender_id", ev.SenderID))
	}
	if resp == nil {
		return
	}

	msg := tgbotapi.NewMessage(chatID, resp.Text)
	if len(resp.QuickReplies) > 0 {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, qr := range resp.QuickReplies {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(qr.Title, qr.Payload))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons)
	}

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *TelegramBot) downloadFile(fileID string) ([]byte, string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", fmt.Errorf("resolving file url: %w", err)
	}

	httpResp, err := http.Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("downloading file: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("downloading file: status %d", httpResp.StatusCode)
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading file body: %w", err)
	}
	return data, url, nil
}
