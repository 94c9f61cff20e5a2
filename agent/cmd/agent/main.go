package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/fuzzymachine/efficiency/agent/internal/compute"
	"github.com/fuzzymachine/efficiency/agent/internal/config"
	"github.com/fuzzymachine/efficiency/agent/internal/scraper"
	"github.com/fuzzymachine/efficiency/agent/internal/shipper"
)

// maxConcurrentScrapes bounds parallel exporter requests per tick.
const maxConcurrentScrapes = 8

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", tint.Err(err))
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	slog.Info("efficiency-agent starting",
		"config", *configPath,
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"machines", len(cfg.Agent.Machines),
		"scrape_interval", cfg.Agent.ScrapeInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := compute.NewEngine()
	machines := newFleet(engine)
	machines.apply(cfg.Agent)
	if machines.size() == 0 {
		slog.Warn("no machines configured, agent will idle until the config changes")
	}

	ship := shipper.New(cfg.Agent)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			machines.apply(updated.Agent)
		}); err != nil {
			slog.Error("config watcher stopped, hot reload disabled", tint.Err(err))
		}
		return nil
	})
	g.Go(func() error {
		ship.Run(ctx)
		return nil
	})
	g.Go(func() error {
		loop(ctx, machines, engine, ship)
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("efficiency-agent stopped", tint.Err(err))
		os.Exit(1)
	}
	slog.Info("efficiency-agent shutting down", "pending_reports", ship.Pending())
}

// loop scrapes every machine once per interval and ships derived measurements.
func loop(ctx context.Context, machines *fleet, engine *compute.Engine, ship *shipper.Shipper) {
	interval := machines.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			scrapeAll(ctx, machines.snapshot(), engine, ship, t)

			if next := machines.interval(); next != interval {
				slog.Info("scrape interval changed", "from", interval, "to", next)
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func scrapeAll(ctx context.Context, targets []target, engine *compute.Engine, ship *shipper.Shipper, now time.Time) {
	var g errgroup.Group
	g.SetLimit(maxConcurrentScrapes)

	for _, tg := range targets {
		g.Go(func() error {
			sample, err := tg.scraper.Scrape(ctx)
			if err != nil {
				slog.Warn("scrape error", "machine", tg.name, tint.Err(err))
				return nil
			}
			if sample.Err != nil {
				slog.Warn("scrape incomplete", "machine", tg.name, tint.Err(sample.Err))
			}
			if res := engine.Process(sample, now); res != nil {
				ship.Ship(res)
				slog.Debug("measurement queued",
					"machine", res.Machine,
					"window", res.Window,
					"daily_production", res.Measurement.DailyProduction,
					"error_margin", res.Measurement.ErrorMargin,
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

type target struct {
	name    string
	machine config.Machine
	scraper scraper.Scraper
}

// fleet is the current set of scrape targets. It is replaced wholesale on
// config reload.
type fleet struct {
	mu      sync.RWMutex
	engine  *compute.Engine
	targets []target
	every   time.Duration
}

func newFleet(engine *compute.Engine) *fleet {
	return &fleet{engine: engine, every: config.DefaultScrapeInterval}
}

// apply rebuilds scrapers from cfg. Machines that were removed or whose
// exporter settings changed lose their counter baseline.
func (f *fleet) apply(cfg config.AgentConfig) {
	next := make([]target, 0, len(cfg.Machines))
	for _, m := range cfg.Machines {
		next = append(next, target{name: m.Name, machine: m, scraper: scraper.New(m)})
	}

	f.mu.Lock()
	prev := f.targets
	f.targets = next
	if cfg.ScrapeInterval > 0 {
		f.every = cfg.ScrapeInterval
	}
	f.mu.Unlock()

	kept := make(map[string]config.Machine, len(next))
	for _, tg := range next {
		kept[tg.name] = tg.machine
	}
	for _, old := range prev {
		m, ok := kept[old.name]
		if !ok || !reflect.DeepEqual(m, old.machine) {
			f.engine.Forget(old.name)
		}
		if !ok {
			slog.Info("machine removed", "machine", old.name)
		}
	}
	for _, tg := range next {
		slog.Info("registered machine", "machine", tg.name, "id", tg.machine.ID, "endpoint", tg.machine.Endpoint)
	}
}

func (f *fleet) snapshot() []target {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.targets
}

func (f *fleet) size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.targets)
}

func (f *fleet) interval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.every
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
