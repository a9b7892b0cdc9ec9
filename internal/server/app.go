// Package server initializes and runs the store-of-record server: it opens
// the database, applies migrations, wires the services and starts the HTTP
// API, shutting everything down on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/spcopeland72-crypto/canny-carrot/internal/logging"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/config"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/httpapi"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/migrations"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/repositories/accounts"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/repositories/records"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/repositories/refreshtokens"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := runMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	recordsRepo := records.NewPostgresRepository(db)
	accountService := services.NewAccountService(
		accounts.NewPostgresRepository(db),
		refreshtokens.NewPostgresRepository(db),
		recordsRepo,
		c,
	)

	server := httpapi.NewServer(c, logger, accountService, recordsRepo)

	return &App{config: c, logger: logger, db: db, server: server}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server stopped", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
