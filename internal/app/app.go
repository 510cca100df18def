// Package app wires the venue connectors, price store, detection engine,
// persistence, and API surfaces together and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spreadwatch/internal/arbitrage"
	"github.com/alanyoungcy/spreadwatch/internal/config"
	"github.com/alanyoungcy/spreadwatch/internal/domain"
	"github.com/alanyoungcy/spreadwatch/internal/history"
	"github.com/alanyoungcy/spreadwatch/internal/notify"
	"github.com/alanyoungcy/spreadwatch/internal/pricestore"
	"github.com/alanyoungcy/spreadwatch/internal/server"
	"github.com/alanyoungcy/spreadwatch/internal/server/handler"
	"github.com/alanyoungcy/spreadwatch/internal/server/ws"
	"github.com/alanyoungcy/spreadwatch/internal/venue"
	"github.com/alanyoungcy/spreadwatch/internal/venue/binance"
	"github.com/alanyoungcy/spreadwatch/internal/venue/bybit"
)

const (
	// quoteBufferSize absorbs ingest bursts across all connectors.
	quoteBufferSize = 4096

	// statusInterval is the cadence of connector-status broadcasts.
	statusInterval = 15 * time.Second

	// shutdownTimeout bounds the HTTP server drain on exit.
	shutdownTimeout = 10 * time.Second
)

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()

	connectors []*venue.Connector
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// States returns a snapshot of every connector, in construction order.
// Implements handler.StateSource.
func (a *App) States() []domain.ConnectorState {
	states := make([]domain.ConnectorState, 0, len(a.connectors))
	for _, c := range a.connectors {
		states = append(states, c.State())
	}
	return states
}

// Run wires all dependencies, starts every component under an errgroup, and
// blocks until the context is cancelled or a component fails. On return it
// runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	a.logger.InfoContext(ctx, "starting",
		slog.Any("symbols", a.cfg.Symbols),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	store := pricestore.New()
	publisher := NewPublisher(deps.SignalBus, a.cfg.Recorder.QueueSize, a.logger)

	maxSpread := decimal.NewFromFloat(a.cfg.Detector.MaxSpreadPercent)
	recorder := arbitrage.NewRecorder(deps.SpreadStore, arbitrage.RecorderConfig{
		QueueSize:        a.cfg.Recorder.QueueSize,
		Precision:        a.cfg.Recorder.Precision,
		MaxSpreadPercent: maxSpread,
	}, a.logger)

	detector := arbitrage.NewDetector(store, recorder, publisher, arbitrage.DetectorConfig{
		Venues:           a.enabledVenues(),
		MinSpreadPercent: decimal.NewFromFloat(a.cfg.Detector.MinSpreadPercent),
		MaxSpreadPercent: maxSpread,
		SweepInterval:    a.cfg.Detector.SweepInterval(),
	}, a.logger)

	quotes := make(chan domain.Quote, quoteBufferSize)
	a.connectors = a.buildConnectors(quotes)
	for _, c := range a.connectors {
		c.Subscribe(a.cfg.Symbols)
	}

	a.validateSymbols(ctx)

	// Timezone validity is checked in config.Validate.
	loc, err := time.LoadLocation(a.cfg.History.Timezone)
	if err != nil {
		return fmt.Errorf("app: load timezone: %w", err)
	}
	aggregator := history.NewAggregator(deps.SpreadStore, history.AggregatorConfig{
		Window:   a.cfg.History.Window(),
		Bucket:   a.cfg.History.Bucket(),
		Location: loc,
	})

	g, gctx := errgroup.WithContext(ctx)

	// Venue connectors. A terminally failed connector alerts the operator
	// but does not take the remaining venues down.
	for _, c := range a.connectors {
		c := c
		g.Go(func() error {
			err := c.Run(gctx)
			if err == nil || gctx.Err() != nil {
				return nil
			}
			if errors.Is(err, domain.ErrConnectorFailed) {
				state := c.State()
				a.logger.Error("connector failed terminally",
					slog.String("venue", state.Venue),
					slog.String("market_type", string(state.MarketType)),
				)
				_ = deps.Notifier.Notify(gctx, notify.Alert{
					Event: notify.EventConnectorFailed,
					Title: "Connector failed",
					Body: fmt.Sprintf("%s %s exhausted its reconnect budget; the feed is down until restart.",
						state.Venue, state.MarketType),
				})
				return nil
			}
			return err
		})
	}

	// Ingest pump: store the quote, fan it out, and re-evaluate its symbol.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case q := <-quotes:
				store.Put(q)
				publisher.PublishQuote(q)
				detector.Evaluate(q.Symbol)
			}
		}
	})

	g.Go(func() error { return recorder.Run(gctx) })
	g.Go(func() error { return detector.RunSweep(gctx) })
	g.Go(func() error { return publisher.Run(gctx) })

	// Periodic connector-status broadcast for dashboards.
	g.Go(func() error {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				publisher.PublishStatus(a.States())
			}
		}
	})

	if deps.Archiver != nil {
		g.Go(func() error { return deps.Archiver.Run(gctx) })
	}

	if a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.SignalBus, a.logger)
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, server.Handlers{
			Health:     handler.NewHealthHandler(a, recorder, a.logger),
			History:    handler.NewHistoryHandler(aggregator, a.logger),
			Connectors: handler.NewConnectorsHandler(a, recorder, a.logger),
		}, hub, a.logger)

		g.Go(func() error { return hub.Run(gctx) })
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// enabledVenues returns the venue names the detector pairs legs across.
func (a *App) enabledVenues() []string {
	var venues []string
	if a.cfg.Venues.Binance.Enabled {
		venues = append(venues, "binance")
	}
	if a.cfg.Venues.Bybit.Enabled {
		venues = append(venues, "bybit")
	}
	return venues
}

// buildConnectors creates one connector per enabled venue and market type,
// all feeding the shared quotes channel.
func (a *App) buildConnectors(quotes chan<- domain.Quote) []*venue.Connector {
	vcfg := venue.Config{
		ReconnectDelay:       a.cfg.Connector.ReconnectDelay(),
		MaxReconnectDelay:    a.cfg.Connector.MaxReconnectDelay(),
		MaxReconnectAttempts: a.cfg.Connector.MaxReconnectAttempts,
		HeartbeatInterval:    a.cfg.Connector.HeartbeatInterval(),
	}

	var connectors []*venue.Connector
	if a.cfg.Venues.Binance.Enabled {
		connectors = append(connectors,
			venue.NewConnector(binance.NewSpotCodec(a.cfg.Venues.Binance.SpotWSURL), vcfg, quotes, a.logger),
			venue.NewConnector(binance.NewFuturesCodec(a.cfg.Venues.Binance.FuturesWSURL), vcfg, quotes, a.logger),
		)
	}
	if a.cfg.Venues.Bybit.Enabled {
		connectors = append(connectors,
			venue.NewConnector(bybit.NewSpotCodec(a.cfg.Venues.Bybit.SpotWSURL), vcfg, quotes, a.logger),
			venue.NewConnector(bybit.NewFuturesCodec(a.cfg.Venues.Bybit.FuturesWSURL), vcfg, quotes, a.logger),
		)
	}
	return connectors
}

// validateSymbols checks the configured symbols against each venue's listed
// instruments. Best effort: a discovery failure only logs a warning, and an
// unlisted symbol is reported but still subscribed, since listings change.
func (a *App) validateSymbols(ctx context.Context) {
	type listing struct {
		venue      string
		marketType domain.MarketType
		fetch      func(context.Context) ([]string, error)
	}

	var listings []listing
	if a.cfg.Venues.Binance.Enabled {
		d := binance.NewDiscovery(a.cfg.Venues.Binance.SpotRestURL, a.cfg.Venues.Binance.FuturesRestURL)
		listings = append(listings,
			listing{"binance", domain.MarketSpot, d.SpotSymbols},
			listing{"binance", domain.MarketFutures, d.FuturesSymbols},
		)
	}
	if a.cfg.Venues.Bybit.Enabled {
		d := bybit.NewDiscovery(a.cfg.Venues.Bybit.RestURL)
		listings = append(listings,
			listing{"bybit", domain.MarketSpot, func(ctx context.Context) ([]string, error) {
				return d.Symbols(ctx, domain.MarketSpot)
			}},
			listing{"bybit", domain.MarketFutures, func(ctx context.Context) ([]string, error) {
				return d.Symbols(ctx, domain.MarketFutures)
			}},
		)
	}

	for _, l := range listings {
		symbols, err := l.fetch(ctx)
		if err != nil {
			a.logger.Warn("symbol discovery failed",
				slog.String("venue", l.venue),
				slog.String("market_type", string(l.marketType)),
				slog.String("error", err.Error()),
			)
			continue
		}
		listed := make(map[string]struct{}, len(symbols))
		for _, s := range symbols {
			listed[s] = struct{}{}
		}
		for _, s := range a.cfg.Symbols {
			if _, ok := listed[s]; !ok {
				a.logger.Warn("symbol not listed on venue",
					slog.String("venue", l.venue),
					slog.String("market_type", string(l.marketType)),
					slog.String("symbol", s),
				)
			}
		}
	}
}

// close tears down all resources in reverse registration order. Safe to
// call multiple times.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
