package api

import (
	"net/http"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/analytics"
)

// evaluate scores an ad-hoc measurement without storing it.
func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) error {
	var req MeasurementRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	ev, err := s.svc.Evaluate(types.Machine{Measurement: req.measurement()})
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, ev)
	return nil
}

func (s *Server) efficiencyAnalysis(w http.ResponseWriter, r *http.Request) error {
	m, err := s.machine(r)
	if err != nil {
		return err
	}
	ev, err := s.svc.Evaluate(m)
	if err != nil {
		return err
	}
	degrees := s.model.Fuzzify(m.Measurement)
	replyJSON(r.Context(), w, http.StatusOK, AnalysisResponse{
		Machine:     m,
		Evaluation:  ev,
		Memberships: degrees,
		Diagnostics: computeDiagnostics(degrees, ev),
	})
	return nil
}

func (s *Server) simulate(w http.ResponseWriter, r *http.Request) error {
	var req SimulationRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	m, err := s.store.Get(r.Context(), req.MachineID)
	if err != nil {
		return err
	}
	res, err := s.svc.Simulate(m, req.SimulationParams)
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, res)
	return nil
}

func (s *Server) maintenancePlan(w http.ResponseWriter, r *http.Request) error {
	m, err := s.machine(r)
	if err != nil {
		return err
	}
	var req analytics.MaintenancePlanRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	plan, err := s.svc.Schedule(m, req)
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, plan)
	return nil
}

func (s *Server) compare(w http.ResponseWriter, r *http.Request) error {
	var req CompareRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	machines, err := s.store.GetMany(r.Context(), req.MachineIDs)
	if err != nil {
		return err
	}
	res, err := s.svc.Compare(machines, req.Factors)
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, res)
	return nil
}

func (s *Server) optimizationSuggestions(w http.ResponseWriter, r *http.Request) error {
	m, err := s.machine(r)
	if err != nil {
		return err
	}
	res, err := s.svc.Optimize(m)
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, res)
	return nil
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) error {
	var req analytics.TargetParams
	if err := readJSON(r, &req); err != nil {
		return err
	}
	machines, err := s.store.List(r.Context())
	if err != nil {
		return err
	}
	recs, err := s.svc.Recommend(machines, req)
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, recs)
	return nil
}

func (s *Server) topPerformers(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit", analytics.DefaultTopLimit)
	if err != nil {
		return err
	}
	if limit <= 0 {
		return fault.Validation("limit must be positive, got %d", limit)
	}
	return s.ranked(w, r, func(machines []types.Machine) ([]analytics.Scored, error) {
		return s.svc.TopPerformers(machines, limit)
	})
}

func (s *Server) needsImprovement(w http.ResponseWriter, r *http.Request) error {
	return s.ranked(w, r, s.svc.NeedingImprovement)
}

func (s *Server) filterMachines(w http.ResponseWriter, r *http.Request) error {
	minScore, err := queryFloat(r, "minEfficiency")
	if err != nil {
		return err
	}
	maxScore, err := queryFloat(r, "maxEfficiency")
	if err != nil {
		return err
	}
	return s.ranked(w, r, func(machines []types.Machine) ([]analytics.Scored, error) {
		return s.svc.FilterByEfficiency(machines, minScore, maxScore)
	})
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) error {
	machines, err := s.store.List(r.Context())
	if err != nil {
		return err
	}
	st, err := s.svc.Statistics(machines)
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, st)
	return nil
}

// ranked applies fn to the whole catalog and replies with the result.
func (s *Server) ranked(w http.ResponseWriter, r *http.Request, fn func([]types.Machine) ([]analytics.Scored, error)) error {
	machines, err := s.store.List(r.Context())
	if err != nil {
		return err
	}
	scored, err := fn(machines)
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, scored)
	return nil
}
