package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/0xF3546/stockflow-frontend/internal/ai"
	"github.com/0xF3546/stockflow-frontend/internal/config"
	"github.com/0xF3546/stockflow-frontend/internal/directory"
	"github.com/0xF3546/stockflow-frontend/internal/ledger"
	"github.com/0xF3546/stockflow-frontend/internal/logger"
	"github.com/0xF3546/stockflow-frontend/internal/market"
	"github.com/0xF3546/stockflow-frontend/internal/market/alpaca"
	"github.com/0xF3546/stockflow-frontend/internal/market/stockflow"
	"github.com/0xF3546/stockflow-frontend/internal/models"
	"github.com/0xF3546/stockflow-frontend/internal/orders"
	"github.com/0xF3546/stockflow-frontend/internal/session"
	"github.com/0xF3546/stockflow-frontend/internal/storage"
	"github.com/0xF3546/stockflow-frontend/internal/telegram"
	"github.com/0xF3546/stockflow-frontend/internal/watcher"
)

const (
	VersionFile = "version.latest"
	DevVersion  = "v0.0.0-dev"
)

// app holds the wired object graph. Nothing in it is global.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	session   *session.Session
	broker    market.Broker
	refresher *orders.Refresher
	bot       *telegram.Bot
	watcher   *watcher.Watcher
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	cfg.Version = readVersion()

	l := logger.Setup(cfg.LogFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups, cfg.LogLevel)

	seed := directory.DefaultCatalog()
	if cfg.CatalogFile != "" {
		stocks, err := directory.LoadCatalog(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		seed = stocks
	}
	dir, err := directory.New(seed...)
	if err != nil {
		return nil, fmt.Errorf("stock catalog: %w", err)
	}

	store := storage.NewStore(cfg.StateFile, l)

	var (
		sess   *session.Session
		broker market.Broker
		quotes market.QuoteProvider
		news   market.NewsProvider
		stream market.StreamProvider
	)

	switch cfg.Broker {
	case config.BrokerAlpaca:
		p := alpaca.NewProvider(l)
		broker, quotes, news = p, p, p
		if cfg.StreamEnabled {
			stream = market.NewAlpacaStreamer(os.Getenv("APCA_API_KEY_ID"), os.Getenv("APCA_API_SECRET_KEY"), l)
		}
		sess = session.New(nil, store, l)
		sess.Assume(models.Identity{ID: "alpaca", Username: "alpaca"})
	case config.BrokerStockflow:
		client := stockflow.NewClient(cfg.APIBaseURL,
			stockflow.WithTokenSource(func() string { return sess.Token() }),
			stockflow.WithLogger(l),
			stockflow.WithRateLimit(cfg.APIRateLimit),
			stockflow.WithTimeout(cfg.APITimeout),
		)
		broker = client
		sess = session.New(client, store, l)
		if id, ok := sess.Restore(); ok {
			l.Info().Str("user", id.Username).Msg("Session restored")
		}
	default:
		return nil, fmt.Errorf("unknown broker %q (want %s or %s)", cfg.Broker, config.BrokerStockflow, config.BrokerAlpaca)
	}

	led := ledger.New(dir, sess)

	refOpts := []orders.RefresherOption{orders.WithRefreshLogger(l)}
	if quotes != nil {
		refOpts = append(refOpts, orders.WithQuotes(dir, quotes))
	}
	ref := orders.NewRefresher(broker, led, sess, refOpts...)

	coord := orders.NewCoordinator(led, dir, sess, broker,
		orders.WithOrderTimeout(cfg.OrderTimeout),
		orders.WithLogger(l),
		orders.WithRefresher(ref),
	)

	reviewer, err := ai.NewClient(ctx, cfg.GeminiAPIKey, ai.WithModel(cfg.GeminiModel), ai.WithLogger(l))
	if err != nil {
		return nil, err
	}

	bot := telegram.New(cfg.TelegramBotToken, cfg.TelegramChatID, telegram.WithLogger(l))

	w := watcher.New(watcher.Deps{
		Config:      cfg,
		Logger:      l,
		Directory:   dir,
		Ledger:      led,
		Session:     sess,
		Coordinator: coord,
		Refresher:   ref,
		Broker:      broker,
		Store:       store,
		Quotes:      quotes,
		News:        news,
		Stream:      stream,
		Reviewer:    reviewer,
		Notifier:    bot,
	})

	return &app{
		cfg:       cfg,
		log:       l,
		session:   sess,
		broker:    broker,
		refresher: ref,
		bot:       bot,
		watcher:   w,
	}, nil
}

func readVersion() string {
	version, err := os.ReadFile(VersionFile)
	if err != nil {
		return DevVersion
	}
	return strings.TrimSpace(string(version))
}
