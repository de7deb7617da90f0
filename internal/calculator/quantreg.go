package calculator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"pricebands/internal/model"
)

// ErrInvalidDay is returned when a prediction is requested at a day
// coordinate the log-log model cannot evaluate.
var ErrInvalidDay = errors.New("day coordinate must be positive")

const (
	irlsMaxIter    = 1000
	irlsTol        = 1e-6
	irlsResidFloor = 1e-6
)

// QuantileModel holds independent log-log quantile fits of one series.
// Fits are ordered by ascending quantile and always include the median.
// R2 is the coefficient of determination of the median fit on the log scale.
type QuantileModel struct {
	Fits []model.QuantileFit
	R2   float64
}

// FitQuantileModel fits one regression per requested quantile on log(day)
// versus log(price). The median is fitted whether or not it was asked for.
// Each fit minimizes the pinball loss for its level; fits are independent
// of each other and may cross.
func FitQuantileModel(series *model.PreparedSeries, quantiles []float64) (*QuantileModel, error) {
	if series == nil || len(series.Points) < 2 {
		return nil, fmt.Errorf("%w: need at least two points to fit", ErrInsufficientData)
	}
	qs, err := normalizeQuantiles(quantiles)
	if err != nil {
		return nil, err
	}

	n := len(series.Points)
	logDays := make([]float64, n)
	logPrices := make([]float64, n)
	for i, p := range series.Points {
		logDays[i] = math.Log(float64(p.Day))
		logPrices[i] = math.Log(p.Price)
	}

	m := &QuantileModel{Fits: make([]model.QuantileFit, 0, len(qs))}
	for _, q := range qs {
		fit, err := fitQuantile(logDays, logPrices, q)
		if err != nil {
			return nil, fmt.Errorf("fit quantile %g: %w", q, err)
		}
		m.Fits = append(m.Fits, fit)
	}

	median, _ := m.Fit(0.5)
	estimates := make([]float64, n)
	for i, ld := range logDays {
		estimates[i] = median.Intercept + median.Slope*ld
	}
	m.R2 = stat.RSquaredFrom(estimates, logPrices, nil)

	return m, nil
}

// Fit returns the fit for an exact quantile level.
func (m *QuantileModel) Fit(q float64) (model.QuantileFit, bool) {
	for _, f := range m.Fits {
		if f.Q == q {
			return f, true
		}
	}
	return model.QuantileFit{}, false
}

// Predict evaluates the fitted power law for quantile q at a day coordinate.
func (m *QuantileModel) Predict(q, day float64) (float64, error) {
	f, ok := m.Fit(q)
	if !ok {
		return 0, fmt.Errorf("no fit for quantile %g", q)
	}
	if day <= 0 {
		return 0, fmt.Errorf("%w: got %g", ErrInvalidDay, day)
	}
	return math.Exp(f.Intercept + f.Slope*math.Log(day)), nil
}

func normalizeQuantiles(quantiles []float64) ([]float64, error) {
	qs := make([]float64, 0, len(quantiles)+1)
	for _, q := range quantiles {
		if q <= 0 || q >= 1 {
			return nil, fmt.Errorf("quantile %g outside (0, 1)", q)
		}
		qs = append(qs, q)
	}
	qs = append(qs, 0.5)
	sort.Float64s(qs)

	dedup := qs[:1]
	for _, q := range qs[1:] {
		if q != dedup[len(dedup)-1] {
			dedup = append(dedup, q)
		}
	}
	return dedup, nil
}

// fitQuantile runs iteratively reweighted least squares on the design
// matrix [1, log(day)]: solve a weighted least squares whose weights are the
// reciprocal check-weighted residuals of the previous solution, until the
// coefficients move less than the tolerance, an earlier iterate repeats, or
// the iteration budget runs out. The first pass uses unit weights, so it is
// an ordinary least squares start. Residuals are floored away from zero
// before weighting.
func fitQuantile(logDays, logPrices []float64, q float64) (model.QuantileFit, error) {
	n := len(logDays)
	x := mat.NewDense(n, 2, nil)
	for i, ld := range logDays {
		x.Set(i, 0, 1)
		x.Set(i, 1, ld)
	}
	y := mat.NewVecDense(n, logPrices)

	xstar := mat.DenseCopyOf(x)
	beta := mat.NewVecDense(2, nil)
	var history [][2]float64

	for iter := 0; iter < irlsMaxIter; iter++ {
		var xtx mat.Dense
		xtx.Mul(xstar.T(), x)
		var xty mat.VecDense
		xty.MulVec(xstar.T(), y)

		var next mat.VecDense
		if err := next.SolveVec(&xtx, &xty); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return model.QuantileFit{}, fmt.Errorf("solve weighted least squares: %w", err)
			}
			// Ill-conditioned but solved; keep going like a pseudo-inverse would.
		}

		diff := math.Max(
			math.Abs(next.AtVec(0)-beta.AtVec(0)),
			math.Abs(next.AtVec(1)-beta.AtVec(1)),
		)
		beta.CopyVec(&next)
		if iter > 0 && diff <= irlsTol {
			break
		}

		cur := [2]float64{beta.AtVec(0), beta.AtVec(1)}
		cycled := false
		for _, h := range history {
			if h == cur {
				cycled = true
				break
			}
		}
		if cycled {
			break
		}
		history = append(history, cur)

		for i := 0; i < n; i++ {
			resid := logPrices[i] - (cur[0] + cur[1]*logDays[i])
			if math.Abs(resid) < irlsResidFloor {
				if resid >= 0 {
					resid = irlsResidFloor
				} else {
					resid = -irlsResidFloor
				}
			}
			if resid < 0 {
				resid = math.Abs(q * resid)
			} else {
				resid = math.Abs((1 - q) * resid)
			}
			xstar.Set(i, 0, x.At(i, 0)/resid)
			xstar.Set(i, 1, x.At(i, 1)/resid)
		}
	}

	return model.QuantileFit{Q: q, Intercept: beta.AtVec(0), Slope: beta.AtVec(1)}, nil
}
