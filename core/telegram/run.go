package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/numbot/core/chat"
	coreconfig "github.com/m3rciful/numbot/core/config"
	"github.com/m3rciful/numbot/core/logger"
	"github.com/m3rciful/numbot/core/telegram/sender"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Consumer drains the intake channel until ctx is done or the channel closes.
type Consumer interface {
	Run(ctx context.Context, in <-chan chat.Message) error
}

// RunOptions controls the behaviour of Run.
type RunOptions struct {
	Config   *coreconfig.Config
	Menu     CommandMenu
	Consumer Consumer

	Middlewares []Middleware
	// QueueSize is the intake buffer between the poller and the consumer.
	QueueSize int
	OnDrop    DropFunc

	DisableWebhookCleanup bool
}

// Run polls bot and feeds text messages to opts.Consumer until ctx is done.
// On shutdown polling stops first, then the consumer drains what it accepted.
func Run(ctx context.Context, bot *tele.Bot, opts RunOptions) error {
	if opts.Config == nil || bot == nil || opts.Consumer == nil {
		return fmt.Errorf("telegram: config, bot and consumer are required")
	}
	cfg := opts.Config

	if !opts.DisableWebhookCleanup && strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeLongpoll) {
		if err := deleteWebhook(ctx, cfg.Telegram.Token, false); err != nil {
			logger.TG.Warn("failed to delete webhook",
				slog.String("event", "delete_webhook"),
				slog.String("mode", "polling"),
				slog.String("err", sender.RedactToken(err.Error())),
			)
		} else {
			logger.TG.Info("webhook deleted",
				slog.String("event", "delete_webhook"),
				slog.String("mode", "polling"),
			)
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	inbox := make(chan chat.Message, opts.QueueSize)
	intake := IntakeHandler(runCtx, inbox, opts.OnDrop)
	for _, endpoint := range IntakeEndpoints {
		bot.Handle(endpoint, intake)
	}
	InitBotCommands(bot, opts.Menu)

	var (
		wg          sync.WaitGroup
		consumerErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumerErr = opts.Consumer.Run(runCtx, inbox)
	}()

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()
	logger.TG.Info("bot started", slog.String("event", "ready"), slog.String("status", "ok"))

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
		runErr = errors.New("telegram: poller stopped unexpectedly")
	}
	cancel()
	wg.Wait()

	if consumerErr != nil {
		return consumerErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
