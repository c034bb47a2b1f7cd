package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/tucnak/telebot.v2"
)

// Send timeout mirrors the 5s budget the rest of the system allows for
// outbound notifications.
var httpClient = http.Client{Timeout: 5 * time.Second}

// Telegram sends notifications through a bot. The bot is created without a
// poller: this process only pushes messages, it never consumes updates.
type Telegram struct {
	bot         *telebot.Bot
	adminChatID int64
	log         *logrus.Logger
}

func NewTelegram(token string, adminChatID int64, log *logrus.Logger) (*Telegram, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Client: &httpClient,
	})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: bot, adminChatID: adminChatID, log: log}, nil
}

func (t *Telegram) Notify(_ context.Context, telegramID int64, text string) {
	if telegramID == 0 {
		return
	}
	if _, err := t.bot.Send(userRecipient(telegramID), text); err != nil {
		t.log.WithError(err).WithField("telegram_id", telegramID).Warn("notification delivery failed")
	}
}

func (t *Telegram) NotifyAdmins(_ context.Context, text string) {
	if t.adminChatID == 0 {
		return
	}
	if _, err := t.bot.Send(adminRecipient(t.adminChatID), text); err != nil {
		t.log.WithError(err).Warn("admin notification delivery failed")
	}
}

func userRecipient(telegramID int64) telebot.Recipient {
	return &telebot.User{ID: telegramID}
}

func adminRecipient(chatID int64) telebot.Recipient {
	return &telebot.Chat{ID: chatID}
}
