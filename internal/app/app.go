package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aurzen/unearthedarcana/internal/config"
	"github.com/aurzen/unearthedarcana/internal/delivery"
	"github.com/aurzen/unearthedarcana/internal/dispatch"
	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/infrastructure/control"
	"github.com/aurzen/unearthedarcana/internal/infrastructure/discord"
	"github.com/aurzen/unearthedarcana/internal/infrastructure/fetch"
	"github.com/aurzen/unearthedarcana/internal/infrastructure/parser"
	"github.com/aurzen/unearthedarcana/internal/infrastructure/rss"
	"github.com/aurzen/unearthedarcana/internal/infrastructure/storage"
	"github.com/aurzen/unearthedarcana/internal/infrastructure/telegram"
	"github.com/aurzen/unearthedarcana/internal/logging"
	"github.com/aurzen/unearthedarcana/internal/metrics"
	"github.com/aurzen/unearthedarcana/internal/poller"
	"github.com/aurzen/unearthedarcana/internal/ports"
	"github.com/aurzen/unearthedarcana/internal/source"
)

// Application wires config to the pipeline and owns its lifecycle.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	store      ports.ConfigStore
	storeClose func() error
	dispatcher *dispatch.Dispatcher
	pollers    []*poller.Poller
	control    *control.Server
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, storeClose, err := openStore(ctx, cfg, baseLogger)
	if err != nil {
		return nil, err
	}

	platform, err := openPlatform(cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	coordinator := delivery.NewCoordinator(delivery.Deps{
		Store:           store,
		Platform:        platform,
		Strategies:      digestStrategies(cfg, store, platform),
		OperatorChannel: cfg.Operator.ChannelID,
		Metrics:         collector,
		Logger:          baseLogger.With("component", "delivery"),
	})

	dispatcher := dispatch.New(coordinator, baseLogger.With("component", "dispatch"))

	sources, err := buildSources(cfg, baseLogger)
	if err != nil {
		return nil, err
	}

	pollers := make([]*poller.Poller, 0, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		src, err := sources.Resolve(feed.FeedType())
		if err != nil {
			return nil, err
		}
		pollers = append(pollers, poller.New(
			src,
			dispatcher,
			feed.PollInterval(),
			collector,
			baseLogger.With("component", "poller", "feed", feed.Type),
		))
	}

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		store:      store,
		storeClose: storeClose,
		dispatcher: dispatcher,
		pollers:    pollers,
		control:    control.New(cfg.Control.Addr, dispatcher, registry, baseLogger.With("component", "control")),
	}, nil
}

// Run starts the pollers, the dispatcher, and the control server, and
// blocks until the context is cancelled or the control server fails. A
// control server failure stops the whole pipeline: running on without
// /metrics and /mock would hide the outage from operators.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		if a.storeClose != nil {
			if err := a.storeClose(); err != nil {
				a.logger.Error("store close failed", "error", err)
			}
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.dispatcher.Run(ctx)
	}()

	for _, p := range a.pollers {
		wg.Add(1)
		go func(p *poller.Poller) {
			defer wg.Done()
			p.Run(ctx)
		}(p)
	}

	controlErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.control.Run(ctx); err != nil {
			a.logger.Error("control server failed", "error", err)
			controlErr <- err
			cancel()
		}
	}()

	wg.Wait()

	select {
	case err := <-controlErr:
		return err
	default:
		return nil
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.ConfigStore, func() error, error) {
	if cfg.Database.DSN == "" {
		logger.Warn("no database DSN configured; community state will not survive restarts")
		return storage.NewMemoryStore(), nil, nil
	}

	store, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func openPlatform(cfg config.Config) (ports.ChatPlatform, error) {
	switch cfg.Platform.Name {
	case "discord":
		if cfg.Platform.Discord.BotToken == "" {
			return nil, fmt.Errorf("discord platform selected but no bot token configured")
		}
		return discord.New(cfg.Platform.Discord.BotToken), nil
	case "telegram":
		if cfg.Platform.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram platform selected but no bot token configured")
		}
		return telegram.New(cfg.Platform.Telegram.BotToken)
	default:
		return nil, fmt.Errorf("unknown chat platform %q", cfg.Platform.Name)
	}
}

func digestStrategies(cfg config.Config, store ports.ConfigStore, platform ports.ChatPlatform) map[domain.FeedType]delivery.DigestStrategy {
	strategies := map[domain.FeedType]delivery.DigestStrategy{}
	for _, feed := range cfg.Feeds {
		switch feed.Digest {
		case config.DigestRotate:
			strategies[feed.FeedType()] = delivery.NewCurrentOldSwap(store, platform)
		default:
			strategies[feed.FeedType()] = delivery.NewAppendBounded(store, platform)
		}
	}
	return strategies
}

func buildSources(cfg config.Config, logger *slog.Logger) (*source.Registry, error) {
	registry := source.NewRegistry()

	for _, feed := range cfg.Feeds {
		switch feed.Kind {
		case config.KindRSS:
			registry.Register(rss.New(feed.FeedType(), feed.SourceURL))
		case config.KindScrape, "":
			var enricher *parser.Enricher
			if feed.Enrich {
				enricher = parser.NewEnricher(fetch.NewSafe())
			}
			registry.Register(parser.NewScanner(
				feed.FeedType(),
				feed.SourceURL,
				fetch.New(nil),
				enricher,
				logger.With("component", "scanner", "feed", feed.Type),
			))
		default:
			return nil, fmt.Errorf("feed %s: unknown source kind %q", feed.Type, feed.Kind)
		}
	}

	return registry, nil
}
