package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/alerts"
	"github.com/fuzzymachine/efficiency/server/internal/analytics"
	"github.com/fuzzymachine/efficiency/server/internal/csvio"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
	"github.com/fuzzymachine/efficiency/server/internal/store"
)

const (
	readHeaderTimeout = 5 * time.Second
	maxUploadBytes    = 10 << 20
)

// Alerter receives fresh evaluations and reports active alerts.
// *alerts.Engine satisfies it.
type Alerter interface {
	Evaluate(types.Machine, fuzzy.Evaluation)
	Forget(machineID int64)
	Active() []*alerts.Alert
}

// Recorder records request and import metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveHTTP(route string, code int)
	ObserveImport(imported, failed int)
}

// Notifier is told whenever the catalog changes. *ws.Hub satisfies it.
type Notifier interface {
	Notify()
}

// Deps are the collaborators of the API. Alerts, Metrics, Notifier and Auth
// are optional.
type Deps struct {
	Store     store.Repository
	Analytics *analytics.Service
	Model     *fuzzy.Model
	Alerts    Alerter
	Metrics   Recorder
	Notifier  Notifier
	Auth      func(http.Handler) http.Handler
	Stream    http.Handler
}

// Server serves the REST API.
type Server struct {
	store    store.Repository
	svc      *analytics.Service
	model    *fuzzy.Model
	importer *csvio.Importer
	alerts   Alerter
	metrics  Recorder
	notifier Notifier
	auth     func(http.Handler) http.Handler
	stream   http.Handler
}

// New returns a Server over deps.
func New(deps Deps) *Server {
	s := &Server{
		store:    deps.Store,
		svc:      deps.Analytics,
		model:    deps.Model,
		importer: csvio.NewImporter(deps.Store),
		alerts:   deps.Alerts,
		metrics:  deps.Metrics,
		notifier: deps.Notifier,
		auth:     deps.Auth,
		stream:   deps.Stream,
	}
	if s.auth == nil {
		s.auth = func(next http.Handler) http.Handler { return next }
	}
	return s
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(traceID, recovery, s.instrument)
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts every route on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", handler(s.healthz))
	r.Get("/api/alerts", handler(s.listAlerts))
	if s.stream != nil {
		r.Handle("/ws/stream", s.stream)
	}

	r.Route("/api/machines", func(r chi.Router) {
		r.Get("/", handler(s.listMachines))
		r.Get("/paged", handler(s.pagedMachines))
		r.Get("/search", handler(s.searchMachines))
		r.Get("/filter", handler(s.filterMachines))
		r.Get("/top-performers", handler(s.topPerformers))
		r.Get("/needs-improvement", handler(s.needsImprovement))
		r.Get("/statistics", handler(s.statistics))
		r.Get("/export/excel", handler(s.exportCSV))
		r.Get("/{id}", handler(s.getMachine))
		r.Get("/{id}/efficiency-analysis", handler(s.efficiencyAnalysis))
		r.Get("/{id}/optimization-suggestions", handler(s.optimizationSuggestions))

		// Read-only computations over request bodies.
		r.Post("/evaluate", handler(s.evaluate))
		r.Post("/simulate", handler(s.simulate))
		r.Post("/compare", handler(s.compare))
		r.Post("/recommend", handler(s.recommend))
		r.Post("/{id}/maintenance-plan", handler(s.maintenancePlan))

		r.Group(func(r chi.Router) {
			r.Use(s.auth)
			r.Post("/add", handler(s.addMachine))
			r.Put("/{id}", handler(s.updateMachine))
			r.Delete("/{id}", handler(s.deleteMachine))
			r.Post("/import/excel", handler(s.importCSV))
		})
	})
}

func handler(f func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			replyError(r.Context(), w, err)
		}
	}
}

// Run serves the API on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Error("api: shutdown", "err", err)
		}
	}()

	slog.Info("api: listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: listen: %w", err)
	}
	slog.Info("api: stopped")
	return nil
}

// changed runs the side effects of a catalog write: alerts and the stream.
func (s *Server) changed(m types.Machine, ev fuzzy.Evaluation) {
	if s.alerts != nil {
		s.alerts.Evaluate(m, ev)
	}
	if s.notifier != nil {
		s.notifier.Notify()
	}
}
