package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/demandcast/backend/internal/models"
)

func forecastHeader(scheme models.GroupingScheme) []string {
	header := append([]string{}, scheme.Dimensions()...)
	return append(header, "Date", "Type", "Quantity", "Predicted Quantity", "Lower Bound", "Upper Bound")
}

// WriteForecastCSV streams the merged longitudinal table. Cells belonging to
// the other row type stay empty rather than zero, so the file reads the way
// the pipeline produced the table.
func WriteForecastCSV(w io.Writer, scheme models.GroupingScheme, rows []models.ForecastRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(forecastHeader(scheme)); err != nil {
		return err
	}
	for _, r := range rows {
		rec := make([]string, 0, 9)
		if scheme == models.SchemeTriplet {
			rec = append(rec, r.SalesName)
		}
		rec = append(rec,
			r.CustomerName,
			r.ItemName,
			r.Date.Format("2006-01-02"),
			r.Type,
			formatOpt(r.Quantity),
			formatOpt(r.Predicted),
			formatOpt(r.Lower),
			formatOpt(r.Upper),
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatOpt(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
