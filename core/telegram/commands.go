package telegram

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/numbot/core/logger"
)

// CommandMenu lists the commands shown in the Telegram client menu.
type CommandMenu interface {
	BotCommands() []tele.Command
}

type commandSetter interface {
	SetCommands(opts ...interface{}) error
}

// InitBotCommands sets the Telegram bot commands shown in the command menu.
// Failure is logged and does not stop the bot.
func InitBotCommands(bot commandSetter, menu CommandMenu) {
	if bot == nil || menu == nil {
		return
	}
	list := menu.BotCommands()
	if err := bot.SetCommands(list); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}
	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "register.commands",
		slog.String("status", "ok"),
		slog.Int("commands", len(list)),
	)
}
