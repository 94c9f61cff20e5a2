package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/fuzzymachine/efficiency/pkg/telemetry"
	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/alerts"
	"github.com/fuzzymachine/efficiency/server/internal/analytics"
	"github.com/fuzzymachine/efficiency/server/internal/api"
	"github.com/fuzzymachine/efficiency/server/internal/auth"
	"github.com/fuzzymachine/efficiency/server/internal/config"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
	"github.com/fuzzymachine/efficiency/server/internal/metrics"
	"github.com/fuzzymachine/efficiency/server/internal/receiver"
	"github.com/fuzzymachine/efficiency/server/internal/store"
	"github.com/fuzzymachine/efficiency/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file; empty uses defaults and environment")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", tint.Err(err))
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("efficiency-server stopped", tint.Err(err))
		os.Exit(1)
	}
	slog.Info("efficiency-server finished")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("efficiency-server starting",
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"metrics_port", cfg.Server.MetricsPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"storage", cfg.Storage.Backend,
	)

	model, err := loadModel(cfg.Model)
	if err != nil {
		return err
	}
	slog.Info("rule base loaded",
		"path", cfg.Model.Path,
		"rules", len(model.Rules()),
		"resolution", model.Resolution(),
		"fallback", model.Fallback(),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	eval := metrics.Instrument(fuzzy.NewEngine(model), m)
	svc := analytics.New(eval, analytics.Config{
		LaborHoursPerDay:      cfg.Analytics.LaborHoursPerDay,
		EnergyRate:            cfg.Analytics.EnergyRate,
		OperationalCostPerDay: cfg.Analytics.OperationalCostPerDay,
		MaintenanceHourlyRate: cfg.Analytics.MaintenanceHourlyRate,
		SavingsUnitValue:      cfg.Analytics.SavingsUnitValue,
	})

	repo, closeRepo, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeRepo()

	alertEngine, err := alerts.New(cfg.Alerts)
	if err != nil {
		return fmt.Errorf("alerts: %w", err)
	}

	hub := ws.New(ws.SourceFunc(func(ctx context.Context) (analytics.Statistics, error) {
		machines, err := repo.List(ctx)
		if err != nil {
			return analytics.Statistics{}, err
		}
		return svc.Statistics(machines)
	}), cfg.Stream.Interval)

	authCfg := cfg.Server.Auth
	srv := api.New(api.Deps{
		Store:     repo,
		Analytics: svc,
		Model:     model,
		Alerts:    alertEngine,
		Metrics:   m,
		Notifier:  hub,
		Auth:      auth.Middleware(authCfg.Mode, authCfg.EffectiveHeader(), authCfg.Key()),
		Stream:    hub,
	})

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(
		auth.APIKeyInterceptor(authCfg.Mode, authCfg.EffectiveHeader(), authCfg.Key()),
	))
	telemetry.Register(grpcSrv, receiver.New(repo, eval, notifying{alertEngine, hub}))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return srv.Run(ctx, fmt.Sprintf(":%d", cfg.Server.HTTPPort))
	})
	g.Go(func() error {
		return metrics.NewServer(fmt.Sprintf(":%d", cfg.Server.MetricsPort), reg).Run(ctx)
	})
	g.Go(func() error {
		return serveGRPC(ctx, grpcSrv, cfg.Server.GRPCPort)
	})

	return g.Wait()
}

// notifying forwards receiver evaluations to the alerts engine and wakes the
// statistics stream.
type notifying struct {
	alerts *alerts.Engine
	hub    *ws.Hub
}

func (n notifying) Evaluate(m types.Machine, ev fuzzy.Evaluation) {
	n.alerts.Evaluate(m, ev)
	n.hub.Notify()
}

func serveGRPC(ctx context.Context, srv *grpc.Server, port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("grpc: listen on %d: %w", port, err)
	}

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	slog.Info("grpc: listening", "port", port)
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc: serve: %w", err)
	}
	slog.Info("grpc: stopped")
	return nil
}

// loadModel builds the rule base named by cfg, or the built-in one.
func loadModel(cfg config.ModelConfig) (*fuzzy.Model, error) {
	def := fuzzy.DefaultDefinition()
	if cfg.Path != "" {
		var err error
		if def, err = fuzzy.LoadDefinition(cfg.Path); err != nil {
			return nil, fmt.Errorf("rule base: %w", err)
		}
	}
	if cfg.Fallback != nil {
		def.Fallback = *cfg.Fallback
	}
	if cfg.Resolution > 0 {
		def.Resolution = cfg.Resolution
	}
	model, err := fuzzy.NewModel(def)
	if err != nil {
		return nil, fmt.Errorf("rule base: %w", err)
	}
	return model, nil
}

// openStore returns the configured catalog and a func that releases it.
func openStore(ctx context.Context, cfg config.StorageConfig) (store.Repository, func(), error) {
	if cfg.Backend != "postgres" {
		return store.NewMemory(), func() {}, nil
	}

	pg := cfg.Postgres
	db, err := store.Connect(ctx, pg.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(pg.MaxOpenConns)
	db.SetMaxIdleConns(pg.MaxIdleConns)
	db.SetConnMaxLifetime(pg.ConnMaxLifetime)

	repo := store.NewPostgres(db)
	if pg.Migrate {
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	slog.Info("postgres catalog ready", "max_open_conns", pg.MaxOpenConns)

	return repo, func() {
		if err := db.Close(); err != nil {
			slog.Error("postgres close", tint.Err(err))
		}
	}, nil
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	case "tint":
		return slog.New(tint.NewHandler(w, &tint.Options{Level: level}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
}
