package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrUnreachable classifies a delivery failure as permanent: the recipient
// blocked the bot or the chat no longer exists. Any other gateway error is
// treated as transient.
var ErrUnreachable = errors.New("recipient unreachable")

// Outbound is a transport-level message: text plus optional inline keyboard.
type Outbound struct {
	Text    string
	Buttons [][]Button
}

type Button struct {
	Label string
	Data  string
}

type CommandUpdate struct {
	ChatID    int64
	UserID    int64
	FirstName string
	Username  string
	Command   string
	Args      string
}

type TextUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string
}

type CallbackUpdate struct {
	CallbackID string
	ChatID     int64
	UserID     int64
	Username   string
	Data       string
}

type Handlers struct {
	OnCommand  func(context.Context, CommandUpdate) error
	OnText     func(context.Context, TextUpdate) error
	OnCallback func(context.Context, CallbackUpdate) error
}

type Bot struct {
	api *tgbotapi.BotAPI
}

func NewBot(token string, sendTimeout time.Duration) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}

	// The bot api client is not context-aware; the per-call timeout lives on
	// its http client so a stuck gateway call cannot stall a whole tick.
	client := &http.Client{Timeout: sendTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(strings.TrimSpace(token), tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{api: api}, nil
}

// Probe is a cheap reachability check: a "typing" chat action that carries no
// visible payload. Failures are classified the same way as Send failures.
func (b *Bot) Probe(ctx context.Context, chatID int64) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.api.Request(action); err != nil {
		return classify(err)
	}

	_ = ctx
	return nil
}

func (b *Bot) Send(ctx context.Context, chatID int64, out Outbound) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, out.Text)
	if len(out.Buttons) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(out.Buttons))
		for _, row := range out.Buttons {
			btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, btn := range row {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
			}
			rows = append(rows, btns)
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	if _, err := b.api.Send(msg); err != nil {
		return classify(err)
	}

	_ = ctx
	return nil
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	return b.Send(ctx, chatID, Outbound{Text: text})
}

func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(callbackID) == "" {
		return nil
	}

	cfg := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	_ = ctx
	return nil
}

// Listen runs the long-poll update loop until ctx is canceled.
func (b *Bot) Listen(ctx context.Context, handlers Handlers) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			if update.Message != nil && update.Message.From != nil {
				if update.Message.IsCommand() && handlers.OnCommand != nil {
					err := handlers.OnCommand(ctx, CommandUpdate{
						ChatID:    update.Message.Chat.ID,
						UserID:    update.Message.From.ID,
						FirstName: update.Message.From.FirstName,
						Username:  update.Message.From.UserName,
						Command:   update.Message.Command(),
						Args:      update.Message.CommandArguments(),
					})
					if err != nil {
						return err
					}
					continue
				}

				text := strings.TrimSpace(update.Message.Text)
				if text != "" && handlers.OnText != nil {
					err := handlers.OnText(ctx, TextUpdate{
						ChatID:   update.Message.Chat.ID,
						UserID:   update.Message.From.ID,
						Username: update.Message.From.UserName,
						Text:     text,
					})
					if err != nil {
						return err
					}
				}
			}

			if update.CallbackQuery != nil && update.CallbackQuery.From != nil && handlers.OnCallback != nil {
				chatID := int64(0)
				if update.CallbackQuery.Message != nil {
					chatID = update.CallbackQuery.Message.Chat.ID
				}
				err := handlers.OnCallback(ctx, CallbackUpdate{
					CallbackID: update.CallbackQuery.ID,
					ChatID:     chatID,
					UserID:     update.CallbackQuery.From.ID,
					Username:   update.CallbackQuery.From.UserName,
					Data:       update.CallbackQuery.Data,
				})
				if err != nil {
					return err
				}
			}
		}
	}
}

// classify maps telegram api errors onto the permanent/transient taxonomy.
// 403 is "bot was blocked by the user", 400 covers deleted chats and
// "chat not found"; everything else (timeouts, 429, 5xx) stays transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == 400 || apiErr.Code == 403) {
		return fmt.Errorf("%w: %s", ErrUnreachable, apiErr.Message)
	}
	return err
}
