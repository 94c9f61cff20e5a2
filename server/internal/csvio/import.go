package csvio

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
)

// minColumns is id, name and the five measurement columns.
const minColumns = 7

// Creator persists a new machine. store.Repository satisfies it.
type Creator interface {
	Create(ctx context.Context, m types.Machine) (types.Machine, error)
}

// ImportReport summarises one import run.
type ImportReport struct {
	TotalRecords      int             `json:"total_records"`
	SuccessfulImports int             `json:"successful_imports"`
	FailedImports     int             `json:"failed_imports"`
	Errors            []string        `json:"errors"`
	ImportedMachines  []types.Machine `json:"imported_machines"`
}

// Importer reads machines from CSV and creates them in a store.
type Importer struct {
	store Creator
}

// NewImporter returns an Importer that saves into store.
func NewImporter(store Creator) *Importer {
	return &Importer{store: store}
}

// Import reads r and creates one machine per valid data row, in input order.
// The first line is a header. Blank lines are skipped. A bad row is recorded
// as "row N: reason" where N counts lines after the header, and the import
// continues. Only a read failure of r itself returns an error.
func (im *Importer) Import(ctx context.Context, r io.Reader) (ImportReport, error) {
	report := ImportReport{Errors: []string{}, ImportedMachines: []types.Machine{}}

	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return report, fault.Wrap(err, fault.KindValidation, "csvio: read")
			}
			if !header {
				report.TotalRecords++
				report.fail(perr.StartLine-1, perr.Err)
			}
			header = false
			continue
		}
		if header {
			header = false
			continue
		}
		if isBlank(rec) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.TotalRecords++
		line, _ := cr.FieldPos(0)
		row := line - 1
		m, err := parseRow(rec)
		if err != nil {
			report.fail(row, err)
			continue
		}
		created, err := im.store.Create(ctx, m)
		if err != nil {
			report.fail(row, err)
			continue
		}
		report.SuccessfulImports++
		report.ImportedMachines = append(report.ImportedMachines, created)
	}

	slog.Info("csvio: import finished",
		"total", report.TotalRecords,
		"imported", report.SuccessfulImports,
		"failed", report.FailedImports,
	)
	return report, nil
}

func (r *ImportReport) fail(row int, err error) {
	r.FailedImports++
	r.Errors = append(r.Errors, fmt.Sprintf("row %d: %s", row, fault.MessageOf(err)))
}

func parseRow(rec []string) (types.Machine, error) {
	if len(rec) < minColumns {
		return types.Machine{}, fault.Validation("expected at least %d columns, got %d", minColumns, len(rec))
	}
	var vals [5]float64
	names := [5]string{
		fuzzy.VarDailyProduction, fuzzy.VarErrorMargin, fuzzy.VarMaintenanceInterval,
		fuzzy.VarStandbyTime, fuzzy.VarEnergyConsumption,
	}
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+2]), 64)
		if err != nil {
			return types.Machine{}, fault.Validation("%s: invalid number %q", names[i], rec[i+2])
		}
		vals[i] = v
	}
	m := types.Machine{
		Name: strings.TrimSpace(rec[1]),
		Measurement: types.Measurement{
			DailyProduction:     vals[0],
			ErrorMargin:         vals[1],
			MaintenanceInterval: vals[2],
			StandbyTime:         vals[3],
			EnergyConsumption:   vals[4],
		},
	}
	if err := fuzzy.ValidateMeasurement(m.Measurement); err != nil {
		return types.Machine{}, err
	}
	return m, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(bom)); err == nil && string(b) == bom {
		_, _ = br.Discard(len(bom))
	}
	return br
}
