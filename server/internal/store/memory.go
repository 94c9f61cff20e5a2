package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/pkg/types"
)

// Memory is a thread-safe in-memory Repository.
type Memory struct {
	mu     sync.RWMutex
	data   map[int64]types.Machine
	nextID int64
	now    func() time.Time // injectable for deterministic tests
}

var _ Repository = (*Memory)(nil)

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		data:   make(map[int64]types.Machine),
		nextID: 1,
		now:    time.Now,
	}
}

func (s *Memory) Create(_ context.Context, m types.Machine) (types.Machine, error) {
	if err := ValidateMachine(m); err != nil {
		return types.Machine{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(m), nil
}

func (s *Memory) FindOrCreate(_ context.Context, m types.Machine) (types.Machine, bool, error) {
	if err := ValidateMachine(m); err != nil {
		return types.Machine{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if found, ok := s.byName(m.Name); ok {
		return found, false, nil
	}
	return s.insert(m), true, nil
}

// insert stores m under the next id. Callers must hold the write lock.
func (s *Memory) insert(m types.Machine) types.Machine {
	now := s.now().UTC()
	m.ID = s.nextID
	m.CreatedAt, m.UpdatedAt = now, now
	s.nextID++
	s.data[m.ID] = m
	return m
}

// byName returns the lowest-id machine called name. Callers must hold a lock.
func (s *Memory) byName(name string) (types.Machine, bool) {
	var found types.Machine
	for _, m := range s.data {
		if m.Name == name && (found.ID == 0 || m.ID < found.ID) {
			found = m
		}
	}
	return found, found.ID != 0
}

func (s *Memory) Get(_ context.Context, id int64) (types.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[id]
	if !ok {
		return types.Machine{}, notFound(id)
	}
	return m, nil
}

func (s *Memory) GetMany(_ context.Context, ids []int64) ([]types.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Machine, 0, len(ids))
	for _, id := range ids {
		m, ok := s.data[id]
		if !ok {
			return nil, notFound(id)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Memory) FindByName(_ context.Context, name string) (types.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, ok := s.byName(name)
	if !ok {
		return types.Machine{}, fault.NotFound("machine %q not found", name)
	}
	return found, nil
}

func (s *Memory) Update(_ context.Context, m types.Machine) (types.Machine, error) {
	if err := ValidateMachine(m); err != nil {
		return types.Machine{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.data[m.ID]
	if !ok {
		return types.Machine{}, notFound(m.ID)
	}
	m.CreatedAt = prev.CreatedAt
	m.UpdatedAt = s.now().UTC()
	s.data[m.ID] = m
	return m, nil
}

func (s *Memory) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return notFound(id)
	}
	delete(s.data, id)
	return nil
}

func (s *Memory) List(_ context.Context) ([]types.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted("id", false, nil), nil
}

func (s *Memory) Search(_ context.Context, query string) ([]types.Machine, error) {
	q := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted("id", false, func(m types.Machine) bool {
		return strings.Contains(strings.ToLower(m.Name), q)
	}), nil
}

func (s *Memory) Page(_ context.Context, req PageRequest) (Page, error) {
	col, err := req.normalize()
	if err != nil {
		return Page{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sorted(col, req.Desc, nil)
	from := min(req.Page*req.Size, len(all))
	to := min(from+req.Size, len(all))
	return newPage(all[from:to], req, len(all)), nil
}

func (s *Memory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

// sorted returns the machines matching keep (all when nil) ordered by col.
// Ties are broken by id ascending. Callers must hold the read lock.
func (s *Memory) sorted(col string, desc bool, keep func(types.Machine) bool) []types.Machine {
	out := make([]types.Machine, 0, len(s.data))
	for _, m := range s.data {
		if keep == nil || keep(m) {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b types.Machine) int {
		c := compareBy(col, a, b)
		if desc {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	})
	return out
}

func compareBy(col string, a, b types.Machine) int {
	switch col {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "daily_production":
		return cmp.Compare(a.DailyProduction, b.DailyProduction)
	case "error_margin":
		return cmp.Compare(a.ErrorMargin, b.ErrorMargin)
	case "maintenance_interval":
		return cmp.Compare(a.MaintenanceInterval, b.MaintenanceInterval)
	case "standby_time":
		return cmp.Compare(a.StandbyTime, b.StandbyTime)
	case "energy_consumption":
		return cmp.Compare(a.EnergyConsumption, b.EnergyConsumption)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return cmp.Compare(a.ID, b.ID)
	}
}
