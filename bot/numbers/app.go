package numbers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/numbot/core/bootstrap"
	"github.com/m3rciful/numbot/core/cmd"
	"github.com/m3rciful/numbot/core/commands"
	coreconfig "github.com/m3rciful/numbot/core/config"
	"github.com/m3rciful/numbot/core/dispatch"
	"github.com/m3rciful/numbot/core/logger"
	"github.com/m3rciful/numbot/core/metrics"
	coretelegram "github.com/m3rciful/numbot/core/telegram"
	"github.com/m3rciful/numbot/core/telegram/sender"
)

// App is the numbers bot wired to Telegram.
type App struct {
	cfg        *coreconfig.Config
	infra      *bootstrap.Result
	registry   *prometheus.Registry
	bot        *tele.Bot
	set        *commands.Set
	dispatcher *dispatch.Dispatcher
}

// Bootstrap opens the dialogue store and prepares the Telegram bot. It is the
// cmd.Options.Bootstrap hook of the numbot binary.
func Bootstrap(ctx context.Context, cfg *coreconfig.Config) (cmd.App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	infra, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg, Schema: Schema(), Registerer: reg})
	if err != nil {
		return nil, err
	}

	bot, err := coretelegram.NewBot(cfg)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	set := Commands()
	botName := cfg.Telegram.BotName
	if botName == "" && bot.Me != nil {
		botName = bot.Me.Username
	}
	set.SetBotName(botName)

	d, err := dispatch.New(infra.Store, Machine(set), sender.New(bot), dispatch.Options{
		Initial:        Schema().Initial(),
		Workers:        cfg.Dispatch.Workers,
		MessageTimeout: time.Duration(cfg.Dispatch.MessageTimeoutMS) * time.Millisecond,
		Metrics:        infra.Metrics,
	})
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("numbers: %w", err)
	}

	return &App{cfg: cfg, infra: infra, registry: reg, bot: bot, set: set, dispatcher: d}, nil
}

// Run serves metrics when configured and polls Telegram until ctx is done.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	if addr := a.cfg.Metrics.Listen; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, addr, a.registry); err != nil {
				logger.Error(ctx, "metrics", "metrics.serve",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
		}()
	}

	onLimited := func(tele.Context) error {
		a.infra.Metrics.IncDropped("rate_limited")
		return nil
	}
	err := coretelegram.Run(ctx, a.bot, coretelegram.RunOptions{
		Config:      a.cfg,
		Menu:        a.set,
		Consumer:    a.dispatcher,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, onLimited),
		QueueSize:   a.cfg.Dispatch.QueueSize,
		OnDrop:      a.infra.Metrics.IncDropped,
	})
	wg.Wait()
	return err
}

// Close releases the dialogue store.
func (a *App) Close() error {
	return a.infra.Close()
}
