package main

import (
	"context"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/chrome"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/config"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/logging"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/pages"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/session"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/store"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/events"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
	"go.uber.org/zap"
)

type application struct {
	cfg     config.Config
	logger  *zap.Logger
	backend store.Backend
	bus     *events.Bus
	credits *ledger.Service
	session *session.Session
	chrome  *chrome.Chrome
	pages   *pages.Controller
}

// newApplication wires storage, the credit ledger, the API client and the
// session, then restores the stored profile.
func newApplication(ctx context.Context, cfg config.Config) (*application, error) {
	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return nil, err
	}

	backend, err := store.Open(ctx, cfg.StoreURL)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	bus := events.NewBus()
	credits, err := ledger.NewService(backend, time.Now,
		ledger.WithPublisher(bus),
		ledger.WithOperationLogger(logging.NewOperationLogger(logger)),
	)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ledger: %w", err)
	}

	app := &application{cfg: cfg, logger: logger, backend: backend, bus: bus, credits: credits}
	client, err := auctionapi.NewClient(cfg.ClientConfig(),
		auctionapi.WithTokenSource(app.token),
		auctionapi.WithLogger(logger.Named("auctionapi")),
	)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	current, err := session.New(backend, credits, client, bus, session.WithLogger(logger.Named("session")))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	app.session = current
	app.chrome = chrome.Watch(bus, auctionapi.Auth{}, time.Now)
	current.Start(ctx)

	controller, err := pages.New(client, current, pages.WithLogger(logger.Named("pages")))
	if err != nil {
		app.Close()
		return nil, err
	}
	app.pages = controller
	return app, nil
}

func (app *application) token() string {
	if app.session == nil {
		return ""
	}
	return app.session.Token()
}

// Close releases the bus subscriptions and the store.
func (app *application) Close() {
	if app.chrome != nil {
		app.chrome.Close()
	}
	if app.session != nil {
		app.session.Close()
	}
	if err := app.backend.Close(); err != nil {
		app.logger.Warn("unable to close store", zap.Error(err))
	}
	_ = app.logger.Sync()
}
