package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"log/slog"

	"github.com/stemly/regbot/core/bootstrap"
	"github.com/stemly/regbot/core/logger"
	tg "github.com/stemly/regbot/core/telegram"
	tghelpers "github.com/stemly/regbot/core/telegram/helpers"
	"github.com/stemly/regbot/core/telegram/router"
	"github.com/stemly/regbot/internal/bot"
	"github.com/stemly/regbot/internal/config"
	"github.com/stemly/regbot/internal/flow"
	"github.com/stemly/regbot/internal/identity"
	"github.com/stemly/regbot/internal/session"
	"github.com/stemly/regbot/internal/storage/postgres"
	"github.com/stemly/regbot/internal/texts"

	tele "gopkg.in/telebot.v4"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "regbot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	// Missing .env is fine; containers pass real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	boot, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Core,
		Database: cfg.Database,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = boot.DB.Close()
		_ = logger.Shutdown()
	}()

	table, err := texts.Load()
	if err != nil {
		return fmt.Errorf("load texts: %w", err)
	}

	sink := postgres.NewSink(boot.DB)
	ident := identity.NewClient(cfg.IdentityClient(), nil)
	sessions := session.NewManager()

	transport := bot.NewTransport()
	ctrl, err := flow.New(flow.Options{
		Sessions:       sessions,
		Texts:          table,
		Sink:           sink,
		Identity:       ident,
		Transport:      transport,
		SupportGroupID: cfg.Support.GroupID,
	})
	if err != nil {
		return fmt.Errorf("build flow: %w", err)
	}

	b := bot.New(ctrl)

	reg := tg.NewRegistry()
	b.Register(reg)

	var routes []tg.Route
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: cfg.Core.Telegram.AdminID,
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	unknownText := func(c tele.Context) error {
		lang := texts.DefaultLang
		if s, ok := sessions.Peek(c.Chat().ID); ok && s.Lang != "" {
			lang = s.Lang
		}
		return tghelpers.SendText(c, table.Get(lang, "unknown-command"))
	}
	routes = append(routes, router.TextRoutes(b, reg, router.TextOptions{
		UnknownText: unknownText,
	})...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return tg.RunTelegram(ctx, tg.RunOptions{
		Config:      &cfg.Core,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(&cfg.Core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			transport.Bind(rt.Bot)
			logger.L.Info("regbot started",
				slog.String("event", "startup"),
				slog.Int("languages", len(table.Languages())),
				slog.Int64("support_group", cfg.Support.GroupID),
			)
			return nil
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			logger.L.Info("regbot stopped", slog.String("event", "shutdown"))
			return nil
		},
	})
}
