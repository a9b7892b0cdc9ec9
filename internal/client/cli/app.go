package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/archive"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/config"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/journal"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/outbox"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/reconcile"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/remote"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/repository"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/syncer"
	"github.com/spcopeland72-crypto/canny-carrot/internal/logging"
)

// Mode tracks server reachability as seen by the UI.
type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// App wires the merchant CLI: the local repository and its sync machinery
// around a single on-device key-value store.
type App struct {
	config    *config.Config
	store     *kvstore.SQLiteStore
	repo      *repository.Repository
	archive   *archive.Manager
	journal   *journal.Journal
	outbox    *outbox.Outbox
	remote    remote.Client
	syncer    *syncer.Engine
	reconcile *reconcile.Engine
	log       logging.Logger

	tenantID string
	Mode     Mode
	reader   *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	store, err := kvstore.Open(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("database init error: %w", err)
	}

	j := journal.New(store, logger)
	ob := outbox.New(store, logger)
	repo := repository.New(store, j, ob, logger)
	am := archive.NewManager(store, logger)
	rc := remote.NewHTTPClient(c.ServerEndpointAddr)
	se := syncer.New(repo, ob, j, rc, logger)
	re := reconcile.New(repo, am, se, rc, j, logger)

	return &App{
		config:    c,
		store:     store,
		repo:      repo,
		archive:   am,
		journal:   j,
		outbox:    ob,
		remote:    rc,
		syncer:    se,
		reconcile: re,
		log:       logger,
		Mode:      ModeOffline,
		reader:    bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		fmt.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) isLoggedIn() bool {
	return a.tenantID != ""
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx)
}

func (a *App) Close() {
	if err := a.remote.Close(); err != nil {
		a.log.Warn(context.Background(), "remote close", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn(context.Background(), "store close", "error", err)
	}
}

// StartOnlineStatusWatcher checks server reachability on a fixed interval
// and flips the UI mode accordingly.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.remote.Ping(pingCtx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}

// StartBackgroundSync drains the outbox and pulls remote changes on a fixed
// interval while a tenant is logged in. The sync engine absorbs offline
// cycles itself; only storage errors are logged here.
func (a *App) StartBackgroundSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !a.isLoggedIn() {
				continue
			}
			if _, err := a.syncer.Push(ctx); err != nil {
				a.log.Warn(ctx, "background push", "error", err)
			}
			if _, err := a.syncer.Pull(ctx, a.tenantID); err != nil {
				a.log.Warn(ctx, "background pull", "error", err)
			}

		case <-ctx.Done():
			return
		}
	}
}
