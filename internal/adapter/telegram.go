package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/errors"
)

// TelegramAdapter bridges Telegram chats to the command bus via long-poll.
type TelegramAdapter struct {
	token         string
	updateTimeout int
	commander     *Commander
	bot           *tgbotapi.BotAPI
	updates       tgbotapi.UpdatesChannel
}

func NewTelegramAdapter(token string, commander *Commander, updateTimeout int) *TelegramAdapter {
	if updateTimeout <= 0 {
		updateTimeout = config.DefaultTelegramUpdateTimeout
	}
	return &TelegramAdapter{
		token:         token,
		updateTimeout: updateTimeout,
		commander:     commander,
	}
}

func (t *TelegramAdapter) Name() string {
	return "telegram"
}

func (t *TelegramAdapter) Start(ctx context.Context) error {
	var err error
	t.bot, err = tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return errors.Wrap(err, "failed to init telegram bot")
	}

	slog.Info("telegram adapter started", "user", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.updateTimeout

	t.updates = t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-t.updates:
				t.handleUpdate(ctx, update)
			}
		}
	}()

	return nil
}

func (t *TelegramAdapter) Stop(ctx context.Context) error {
	return nil
}

func (t *TelegramAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}

	msg := update.Message
	chatID := fmt.Sprintf("%d", msg.Chat.ID)
	actorID := fmt.Sprintf("%d", msg.From.ID)

	reply, handled := t.commander.Handle(ctx, t.Name(), actorID, chatID, msg.Text)
	if !handled {
		return
	}
	if err := t.Send(ctx, chatID, reply); err != nil {
		slog.Error("telegram reply failed", "chat_id", chatID, "error", err)
	}
}

func (t *TelegramAdapter) Send(ctx context.Context, threadID string, content string) error {
	chatID, err := strconv.ParseInt(threadID, 10, 64)
	if err != nil {
		return errors.InvalidInput("invalid telegram chat id: " + err.Error())
	}

	msg := tgbotapi.NewMessage(chatID, content)
	if _, err := t.bot.Send(msg); err != nil {
		return errors.Wrap(err, "failed to send telegram message")
	}
	return nil
}

func (t *TelegramAdapter) Health(ctx context.Context) error {
	if t.bot == nil {
		return errors.Transient("telegram bot not initialized")
	}
	if _, err := t.bot.GetMe(); err != nil {
		return errors.Transient("telegram connection failed: " + err.Error())
	}
	return nil
}
