package api

import (
	"net/http"
	"strings"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/alerts"
	"github.com/fuzzymachine/efficiency/server/internal/analytics"
	"github.com/fuzzymachine/efficiency/server/internal/store"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) error {
	n, err := s.store.Count(r.Context())
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Machines: n,
		Rules:    len(s.model.Rules()),
	})
	return nil
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) error {
	active := []*alerts.Alert{}
	if s.alerts != nil {
		active = append(active, s.alerts.Active()...)
	}
	replyJSON(r.Context(), w, http.StatusOK, active)
	return nil
}

func (s *Server) listMachines(w http.ResponseWriter, r *http.Request) error {
	machines, err := s.store.List(r.Context())
	if err != nil {
		return err
	}
	scored, err := s.svc.ScoreAll(machines)
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, scored)
	return nil
}

func (s *Server) pagedMachines(w http.ResponseWriter, r *http.Request) error {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		return err
	}
	size, err := queryInt(r, "size", store.DefaultPageSize)
	if err != nil {
		return err
	}
	req := store.PageRequest{
		Page:   page,
		Size:   size,
		SortBy: r.URL.Query().Get("sortBy"),
	}
	switch dir := strings.ToLower(r.URL.Query().Get("direction")); dir {
	case "", "asc":
	case "desc":
		req.Desc = true
	default:
		return fault.Validation("direction must be asc or desc, got %q", dir)
	}

	p, err := s.store.Page(r.Context(), req)
	if err != nil {
		return err
	}
	scored, err := s.svc.ScoreAll(p.Items)
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, newPageResponse(p, scored))
	return nil
}

func (s *Server) searchMachines(w http.ResponseWriter, r *http.Request) error {
	machines, err := s.store.Search(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		return err
	}
	scored, err := s.svc.ScoreAll(machines)
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, scored)
	return nil
}

func (s *Server) getMachine(w http.ResponseWriter, r *http.Request) error {
	m, err := s.machine(r)
	if err != nil {
		return err
	}
	ev, err := s.svc.Evaluate(m)
	if err != nil {
		return err
	}
	replyJSON(r.Context(), w, http.StatusOK, analytics.Scored{Machine: m, Score: ev.Score, Status: ev.Status})
	return nil
}

func (s *Server) addMachine(w http.ResponseWriter, r *http.Request) error {
	var req MachineRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	m, err := s.store.Create(r.Context(), req.machine())
	if err != nil {
		return err
	}
	return s.replyWritten(w, r, http.StatusCreated, m)
}

func (s *Server) updateMachine(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r)
	if err != nil {
		return err
	}
	var req MachineRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	m := req.machine()
	m.ID = id
	m, err = s.store.Update(r.Context(), m)
	if err != nil {
		return err
	}
	return s.replyWritten(w, r, http.StatusOK, m)
}

func (s *Server) deleteMachine(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r)
	if err != nil {
		return err
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		return err
	}
	if s.alerts != nil {
		s.alerts.Forget(id)
	}
	if s.notifier != nil {
		s.notifier.Notify()
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// replyWritten scores a freshly stored machine, runs the change side effects
// and replies with the scored machine.
func (s *Server) replyWritten(w http.ResponseWriter, r *http.Request, code int, m types.Machine) error {
	ev, err := s.svc.Evaluate(m)
	if err != nil {
		return err
	}
	s.changed(m, ev)
	replyJSON(r.Context(), w, code, analytics.Scored{Machine: m, Score: ev.Score, Status: ev.Status})
	return nil
}

// machine loads the machine named by the {id} path segment.
func (s *Server) machine(r *http.Request) (types.Machine, error) {
	id, err := idParam(r)
	if err != nil {
		return types.Machine{}, err
	}
	return s.store.Get(r.Context(), id)
}
