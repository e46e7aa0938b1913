package forecast

import (
	"time"

	"github.com/demandcast/backend/internal/models"
	"github.com/demandcast/backend/internal/utils"
)

// MergeGroup builds one group's slice of the longitudinal table: every
// historical month as an Actual row, then every predicted month strictly
// after the last historical month as a Forecast row. In-sample fitted points
// stay internal to the engine. Dates are emitted as month-end calendar dates
// for both row types.
func MergeGroup(key models.GroupKey, series models.MonthlySeries, pred Prediction) []models.ForecastRow {
	rows := make([]models.ForecastRow, 0, len(series)+len(pred.Future))

	for _, p := range series {
		q := p.Quantity
		rows = append(rows, models.ForecastRow{
			SalesName:    key.SalesName,
			CustomerName: key.CustomerName,
			ItemName:     key.ItemName,
			Date:         utils.MonthEnd(p.Month),
			Type:         models.RowTypeActual,
			Quantity:     &q,
		})
	}

	var lastMonth time.Time
	if len(series) > 0 {
		lastMonth = series[len(series)-1].Month
	}
	for _, p := range pred.Future {
		if !p.Date.After(lastMonth) {
			continue
		}
		pv, lo, up := p.Predicted, p.Lower, p.Upper
		rows = append(rows, models.ForecastRow{
			SalesName:    key.SalesName,
			CustomerName: key.CustomerName,
			ItemName:     key.ItemName,
			Date:         utils.MonthEnd(p.Date),
			Type:         models.RowTypeForecast,
			Predicted:    &pv,
			Lower:        &lo,
			Upper:        &up,
		})
	}
	return rows
}
