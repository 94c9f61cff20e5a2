package csvio

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/fuzzymachine/efficiency/server/internal/analytics"
)

const bom = "\uFEFF"

// Header is the first line of an exported file.
var Header = []string{
	"ID", "Name", "DailyProduction", "ErrorMargin", "MaintenanceInterval",
	"StandbyTime", "EnergyConsumption", "EfficiencyScore",
}

// Export writes one row per machine, in the given order.
func Export(w io.Writer, machines []analytics.Scored) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, m := range machines {
		row := []string{
			strconv.FormatInt(m.ID, 10),
			m.Name,
			formatFloat(m.DailyProduction),
			formatFloat(m.ErrorMargin),
			formatFloat(m.MaintenanceInterval),
			formatFloat(m.StandbyTime),
			formatFloat(m.EnergyConsumption),
			formatFloat(m.Score),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
