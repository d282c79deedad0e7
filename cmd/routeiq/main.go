package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"routeiq/internal/config"
	"routeiq/internal/db"
	"routeiq/internal/dbinit"
	"routeiq/internal/grid"
	apphttp "routeiq/internal/http"
	"routeiq/internal/http/middleware"
	"routeiq/internal/hub"
	"routeiq/internal/logging"
	"routeiq/internal/metrics"
	"routeiq/internal/notify"
	"routeiq/internal/routing"
	"routeiq/internal/sim"
	"routeiq/internal/store"
	"routeiq/internal/telegram"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil && cfg == nil {
		panic(err)
	}

	l := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(l)

	if err != nil {
		slog.Warn("config.missing", "path", *cfgPath, "err", err)
		slog.Warn("running with default values")
	}

	if err := run(cfg); err != nil {
		slog.Error("routeiq.exit", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return err
	}

	st, pool, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	h := hub.New(m)
	pubs := notify.Multi{h}
	alerts := telegram.New(telegram.Options{
		BotToken: cfg.Alerts.Telegram.BotToken,
		ChatID:   cfg.Alerts.Telegram.ChatID,
	})
	if alerts != nil {
		pubs = append(pubs, alerts)
		slog.Info("telegram.alerts_enabled")
	}
	engine := sim.NewEngine(sim.Config{
		Width:           cfg.Grid.Width,
		Height:          cfg.Grid.Height,
		TickInterval:    cfg.Sim.TickInterval,
		InitialVehicles: cfg.Sim.InitialVehicles,
		MaxVehicles:     cfg.Sim.MaxVehicles,
	}, pubs, m)

	if err := restoreIncidents(ctx, st, engine); err != nil {
		slog.Warn("sim.restore_incidents", "err", err)
	}

	mux, err := apphttp.NewMux(apphttp.Deps{
		Sim:           engine,
		Routes:        routing.New(engine.PathFinder(), cfg.Routes.CacheTTL, m),
		Store:         st,
		WS:            h,
		Metrics:       m,
		IngestLimiter: middleware.NewRateLimiter(cfg.HTTP.IngestLimit, cfg.HTTP.IngestWindow),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: apphttp.WithStandardMiddleware(mux, apphttp.MiddlewareOptions{
			Metrics:        m,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return alerts.Run(gctx) })
	g.Go(func() error {
		slog.Info("http.starting", "addr", cfg.HTTP.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		slog.Info("http.shutting_down")
		h.Close()
		err := srv.Shutdown(shutdownCtx)
		slog.Info("http.stopped")
		return err
	})
	return g.Wait()
}

// openStore returns the configured event store. The pool is nil for the
// memory driver.
func openStore(ctx context.Context, cfg *config.Config) (store.EventStore, *pgxpool.Pool, error) {
	if cfg.Store.Driver != config.StorePostgres {
		slog.Info("store.memory")
		return store.NewMemory(), nil, nil
	}

	appURL, err := cfg.Database.AppURL()
	if err != nil {
		return nil, nil, err
	}
	adminURL, err := dbinit.AdminURL(appURL)
	if err != nil {
		return nil, nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()
	if err := dbinit.EnsureDatabaseAndMigrate(initCtx, adminURL, cfg.Database.Name, cfg.Database.User); err != nil {
		return nil, nil, err
	}
	slog.Info("db.migrated", "database", cfg.Database.Name)

	poolCtx, cancelPool := context.WithTimeout(ctx, 20*time.Second)
	defer cancelPool()
	pool, err := db.NewPool(poolCtx, appURL, db.PoolOptions{MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgres(pool), pool, nil
}

// restoreIncidents re-blocks every cell whose latest incident was not
// cleared. Restored cells are not re-announced to publishers.
func restoreIncidents(ctx context.Context, st store.EventStore, engine *sim.Engine) error {
	evs, err := st.OpenIncidents(ctx)
	if err != nil {
		return err
	}
	n := 0
	for _, ev := range evs {
		if !engine.Grid().IsValid(ev.X, ev.Y) {
			slog.Warn("sim.restore_incident", "id", ev.ID, "x", ev.X, "y", ev.Y, "err", sim.ErrOutOfBounds)
			continue
		}
		if engine.PathFinder().Block(grid.Point{X: ev.X, Y: ev.Y}) {
			n++
		}
	}
	if n > 0 {
		slog.Info("sim.incidents_restored", "count", n)
	}
	return nil
}
