package forecast

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/demandcast/backend/internal/models"
)

const (
	// HorizonMonths is how far past the last historical month predictions run.
	HorizonMonths = 12

	// seasonLength is the seasonal period of monthly sales data.
	seasonLength = 12

	// boundZ scales the residual spread into an ~80% uncertainty band.
	boundZ = 1.28
)

var ErrDegenerateSeries = errors.New("series has no variance to fit")

// Engine fits one monthly series and extends it HorizonMonths ahead:
// Holt-Winters additive when the series covers two full seasons, an ordinary
// least squares trend otherwise. Zero smoothing values select the defaults.
type Engine struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

// DefaultEngine carries the stock smoothing parameters.
func DefaultEngine() Engine {
	return Engine{Alpha: 0.3, Beta: 0.1, Gamma: 0.1}
}

// Prediction is the model output for one group. Fitted spans the input
// months, Future the HorizonMonths after them; both carry only points with a
// non-negative estimate.
type Prediction struct {
	Model  string
	Fitted []models.ForecastPoint
	Future []models.ForecastPoint
}

func (e Engine) Fit(series models.MonthlySeries) (Prediction, error) {
	n := len(series)
	if n < 2 {
		return Prediction{}, fmt.Errorf("%w: %d monthly points", ErrDegenerateSeries, n)
	}
	values := make([]float64, n)
	for i, p := range series {
		values[i] = p.Quantity
	}
	if stat.Variance(values, nil) == 0 {
		return Prediction{}, fmt.Errorf("%w: constant quantity %g over %d months", ErrDegenerateSeries, values[0], n)
	}

	var (
		model          string
		fitted, future []float64
	)
	if n >= 2*seasonLength {
		model = "holt-winters-additive"
		fitted, future = e.holtWintersAdd(values)
	} else {
		model = "ols-trend"
		fitted, future = olsTrend(values)
	}
	for _, v := range future {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Prediction{}, fmt.Errorf("%w: non-finite prediction", ErrDegenerateSeries)
		}
	}

	sigma := residualStd(values, fitted)
	lastMonth := series[n-1].Month

	pred := Prediction{Model: model}
	for i, p := range series {
		if fitted[i] < 0 {
			continue
		}
		band := boundZ * sigma
		pred.Fitted = append(pred.Fitted, models.ForecastPoint{
			Date:      p.Month,
			Predicted: fitted[i],
			Lower:     fitted[i] - band,
			Upper:     fitted[i] + band,
		})
	}
	for k := 0; k < HorizonMonths; k++ {
		if future[k] < 0 {
			continue
		}
		// band widens with lead time; bounds may still dip below zero on
		// points whose estimate survived the filter
		band := boundZ * sigma * math.Sqrt(1+float64(k+1)/float64(n))
		pred.Future = append(pred.Future, models.ForecastPoint{
			Date:      lastMonth.AddDate(0, k+1, 0),
			Predicted: future[k],
			Lower:     future[k] - band,
			Upper:     future[k] + band,
		})
	}
	return pred, nil
}

// holtWintersAdd is the additive (AAA) recurrence: level seeded from the
// first season's mean, trend from the season-over-season mean difference,
// seasonals from first-season deviations.
func (e Engine) holtWintersAdd(train []float64) (fitted, future []float64) {
	alpha, beta, gamma := e.Alpha, e.Beta, e.Gamma
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	if beta <= 0 || beta > 1 {
		beta = 0.1
	}
	if gamma <= 0 || gamma > 1 {
		gamma = 0.1
	}

	p := seasonLength
	level := stat.Mean(train[:p], nil)
	trend := (stat.Mean(train[p:2*p], nil) - level) / float64(p)
	season := make([]float64, p)
	for i := 0; i < p; i++ {
		season[i] = train[i] - level
	}

	fitted = make([]float64, len(train))
	for t := 0; t < len(train); t++ {
		si := t % p
		fitted[t] = level + trend + season[si]
		prevLevel := level
		prevSeason := season[si]
		level = alpha*(train[t]-prevSeason) + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
		season[si] = gamma*(train[t]-level) + (1-gamma)*prevSeason
	}

	future = make([]float64, HorizonMonths)
	for i := 1; i <= HorizonMonths; i++ {
		si := (len(train) + i - 1) % p
		future[i-1] = level + float64(i)*trend + season[si]
	}
	return fitted, future
}

// olsTrend fits quantity against the month index for series too short to
// expose a full seasonal cycle twice.
func olsTrend(train []float64) (fitted, future []float64) {
	xs := make([]float64, len(train))
	for i := range xs {
		xs[i] = float64(i)
	}
	intercept, slope := stat.LinearRegression(xs, train, nil, false)

	fitted = make([]float64, len(train))
	for i := range fitted {
		fitted[i] = intercept + slope*float64(i)
	}
	future = make([]float64, HorizonMonths)
	for i := range future {
		future[i] = intercept + slope*float64(len(train)+i)
	}
	return fitted, future
}

func residualStd(train, fitted []float64) float64 {
	res := make([]float64, len(train))
	for i := range train {
		res[i] = train[i] - fitted[i]
	}
	sd := stat.StdDev(res, nil)
	if math.IsNaN(sd) {
		return 0
	}
	return sd
}
