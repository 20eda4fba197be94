package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"sunsched/internal/schedule"
	"sunsched/pkg/logx"
)

// TelegramConfig configures the notify executor.
type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  int64
}

// Notifier delivers "notify.*" calls as Telegram messages. Register it
// under the "notify" domain.
type Notifier struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger
}

func NewNotifier(cfg TelegramConfig, log logx.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &Notifier{bot: b, chatID: cfg.ChatID, log: log}, nil
}

func (n *Notifier) Execute(ctx context.Context, call schedule.ActionCall) error {
	_ = ctx // telebot owns its own HTTP timeouts

	msg, _ := call.Data["message"].(string)
	if msg == "" {
		msg = "scheduled action: " + call.Service
	}
	if title, ok := call.Data["title"].(string); ok && title != "" {
		msg = title + "\n" + msg
	}
	_, err := n.bot.Send(tele.ChatID(n.chatID), msg)
	return err
}
