package services

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestQuantileLinearInterpolation(t *testing.T) {
	tests := []struct {
		sorted []float64
		q      float64
		want   float64
	}{
		{[]float64{100}, 0.25, 100},
		{[]float64{100}, 0.75, 100},
		{[]float64{100, 200}, 0.25, 125},
		{[]float64{100, 200}, 0.75, 175},
		{[]float64{1, 2, 3}, 0.25, 1.5},
		{[]float64{1, 2, 3}, 0.75, 2.5},
		{[]float64{1, 2, 3, 4}, 0.5, 2.5},
		{[]float64{10, 20, 30, 40, 50}, 0.25, 20},
	}
	for _, tt := range tests {
		if got := Quantile(tt.sorted, tt.q); !approx(got, tt.want) {
			t.Errorf("Quantile(%v, %.2f) = %v; want %v", tt.sorted, tt.q, got, tt.want)
		}
	}
	if !math.IsNaN(Quantile(nil, 0.5)) {
		t.Error("Quantile of empty input should be NaN")
	}
}

func TestMedianDoesNotMutate(t *testing.T) {
	in := []float64{5, 1, 3, 2}
	if got := Median(in); got != 2.5 {
		t.Errorf("Median: got %v, want 2.5", got)
	}
	if in[0] != 5 || in[3] != 2 {
		t.Errorf("Median reordered its input: %v", in)
	}
}

func TestModeFirstEncounteredOnTie(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"Manual", "Automatic", "Automatic"}, "Automatic"},
		{[]string{"Manual", "Automatic"}, "Manual"},
		{[]string{"Quartz", "Automatic", "Automatic", "Quartz"}, "Quartz"},
		{[]string{"Automatic", "Manual", "Manual", "Automatic"}, "Automatic"},
		{[]string{"Gold", "Steel", "Steel", "Gold", "Titanium", "Titanium"}, "Gold"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Mode(tt.in); got != tt.want {
			t.Errorf("Mode(%v) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestFitLineExact(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4}
	ys := []float64{1000, 900, 800, 700, 600}
	fit, ok := FitLine(xs, ys)
	if !ok {
		t.Fatal("expected a fit")
	}
	if !approx(fit.Slope, -100) || !approx(fit.Intercept, 1000) {
		t.Errorf("line: got slope %v intercept %v", fit.Slope, fit.Intercept)
	}
	if !approx(fit.RSquared, 1) {
		t.Errorf("RSquared: got %v, want 1", fit.RSquared)
	}
	if fit.PValue > 1e-6 {
		t.Errorf("PValue: got %v, want ~0", fit.PValue)
	}
}

func TestFitLineNoise(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6}
	ys := []float64{3, 1, 4, 1, 5, 2}
	fit, ok := FitLine(xs, ys)
	if !ok {
		t.Fatal("expected a fit")
	}
	if fit.PValue <= 0.05 || fit.PValue > 1 {
		t.Errorf("PValue for noise: got %v", fit.PValue)
	}
	if fit.RSquared < 0 || fit.RSquared > 0.3 {
		t.Errorf("RSquared for noise: got %v", fit.RSquared)
	}
}

func TestFitLineDegenerate(t *testing.T) {
	if _, ok := FitLine([]float64{3, 3, 3}, []float64{1, 2, 3}); ok {
		t.Error("constant x should not fit")
	}
	if _, ok := FitLine([]float64{1}, []float64{1}); ok {
		t.Error("single point should not fit")
	}
}
