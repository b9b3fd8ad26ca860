package services

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Quantile returns the q-th quantile of sorted using linear interpolation
// between closest ranks: pos = (n-1)*q. sorted must be ascending.
// Returns NaN for an empty input.
//
// gonum's stat.Quantile(stat.LinInterp) interpolates the empirical CDF
// instead and gives different values on small groups, which would move
// IQR bounds.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := float64(n-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Median of values; the input is not modified.
func Median(values []float64) float64 {
	s := sortedCopy(values)
	return Quantile(s, 0.5)
}

// Mode returns the most frequent value. Ties go to the value encountered
// first. Mode of an empty slice is "".
func Mode(values []string) string {
	counts := make(map[string]int, len(values))
	var order []string
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	best, bestCount := "", 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

// Mean of values, NaN when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// StdDev is the sample standard deviation (n-1 denominator), NaN below two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	return stat.StdDev(values, nil)
}

// LineFit is an ordinary least squares fit y = Intercept + Slope*x.
type LineFit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	PValue    float64
}

// FitLine regresses ys on xs. ok is false with fewer than two points or
// when xs has no spread. The p-value is two-sided for the null hypothesis
// slope == 0 using a Student t distribution with n-2 degrees of freedom.
func FitLine(xs, ys []float64) (fit LineFit, ok bool) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return LineFit{}, false
	}
	if _, v := stat.MeanVariance(xs, nil); v == 0 {
		return LineFit{}, false
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	fit = LineFit{Slope: beta, Intercept: alpha}

	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		// ys has no spread: the line is flat and explains nothing.
		fit.RSquared = 0
		fit.PValue = 1
		return fit, true
	}
	fit.RSquared = r * r

	df := float64(n - 2)
	switch {
	case df <= 0:
		fit.PValue = 1
	case 1-fit.RSquared < 1e-12:
		fit.PValue = 0
	default:
		t := r * math.Sqrt(df/((1-r)*(1+r)))
		student := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		fit.PValue = 2 * student.Survival(math.Abs(t))
	}
	return fit, true
}

func sortedCopy(values []float64) []float64 {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	return s
}
