package store

import (
	"context"
	"strings"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/pkg/types"
)

// Repository is the machine catalog.
type Repository interface {
	// Create assigns an id and timestamps to m and stores it.
	Create(ctx context.Context, m types.Machine) (types.Machine, error)

	// Get returns the machine with the given id.
	Get(ctx context.Context, id int64) (types.Machine, error)

	// GetMany returns the machines with the given ids, in the order of ids.
	// It fails with NotFound if any id is unknown.
	GetMany(ctx context.Context, ids []int64) ([]types.Machine, error)

	// FindByName returns the first machine (lowest id) whose name equals name.
	FindByName(ctx context.Context, name string) (types.Machine, error)

	// FindOrCreate returns the lowest-id machine named m.Name, or stores m
	// when there is none. created reports which happened. Concurrent calls
	// for the same name yield one machine. Create itself does not enforce
	// unique names.
	FindOrCreate(ctx context.Context, m types.Machine) (found types.Machine, created bool, err error)

	// Update replaces the name and measurement of an existing machine.
	Update(ctx context.Context, m types.Machine) (types.Machine, error)

	// Delete removes the machine with the given id.
	Delete(ctx context.Context, id int64) error

	// List returns every machine ordered by id.
	List(ctx context.Context) ([]types.Machine, error)

	// Search returns machines whose name contains query, case-insensitively,
	// ordered by id. An empty query matches every machine.
	Search(ctx context.Context, query string) ([]types.Machine, error)

	// Page returns one page of machines.
	Page(ctx context.Context, req PageRequest) (Page, error)

	// Count returns the number of stored machines.
	Count(ctx context.Context) (int, error)
}

// Defaults for paging.
const (
	DefaultPageSize = 10
	MaxPageSize     = 500
)

// PageRequest selects one page. Page is zero-based.
type PageRequest struct {
	Page   int
	Size   int
	SortBy string
	Desc   bool
}

// Page is one page of machines.
type Page struct {
	Items      []types.Machine `json:"items"`
	Page       int             `json:"page"`
	Size       int             `json:"size"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
}

// sortColumns maps accepted sort keys to column names. Both the snake_case
// column name and the camelCase field name are accepted.
var sortColumns = map[string]string{
	"id":                   "id",
	"name":                 "name",
	"daily_production":     "daily_production",
	"dailyproduction":      "daily_production",
	"error_margin":         "error_margin",
	"errormargin":          "error_margin",
	"maintenance_interval": "maintenance_interval",
	"maintenanceinterval":  "maintenance_interval",
	"standby_time":         "standby_time",
	"standbytime":          "standby_time",
	"energy_consumption":   "energy_consumption",
	"energyconsumption":    "energy_consumption",
	"created_at":           "created_at",
	"createdat":            "created_at",
	"updated_at":           "updated_at",
	"updatedat":            "updated_at",
}

// normalize validates req and fills defaults. It returns the sort column.
func (req *PageRequest) normalize() (string, error) {
	if req.Page < 0 {
		return "", fault.Validation("page must not be negative")
	}
	if req.Size == 0 {
		req.Size = DefaultPageSize
	}
	if req.Size < 0 || req.Size > MaxPageSize {
		return "", fault.Validation("page size must be between 1 and %d", MaxPageSize)
	}
	if req.SortBy == "" {
		req.SortBy = "id"
	}
	col, ok := sortColumns[strings.ToLower(req.SortBy)]
	if !ok {
		return "", fault.Validation("cannot sort by %q", req.SortBy)
	}
	return col, nil
}

func newPage(items []types.Machine, req PageRequest, total int) Page {
	if items == nil {
		items = []types.Machine{}
	}
	return Page{
		Items:      items,
		Page:       req.Page,
		Size:       req.Size,
		Total:      total,
		TotalPages: (total + req.Size - 1) / req.Size,
	}
}

// ValidateMachine checks the fields every store requires.
func ValidateMachine(m types.Machine) error {
	if strings.TrimSpace(m.Name) == "" {
		return fault.Validation("machine name is required")
	}
	return nil
}

func notFound(id int64) error {
	return fault.NotFound("machine %d not found", id)
}
