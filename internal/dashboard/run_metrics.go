// v0
// internal/dashboard/run_metrics.go
package dashboard

import (
	"math"

	"nrgchamp/fuzzydash/internal/series"
)

// Band is an inclusive temperature range.
type Band struct {
	Low  float64
	High float64
}

// RunMetrics summarise the retained history for the report.
type RunMetrics struct {
	Samples   int     `json:"samples"`
	RMSE      float64 `json:"rmse"`
	InBandPct float64 `json:"inBandPct"`
	MeanCRAC  float64 `json:"meanCrac"`
	PeakTemp  float64 `json:"peakTemp"`
}

// ComputeRunMetrics derives tracking error, time in band and mean CRAC
// power from a history snapshot. ok is false for an empty snapshot.
func ComputeRunMetrics(snap series.Snapshot, band Band) (RunMetrics, bool) {
	temps := snap.Column(SeriesTemp)
	errs := snap.Column(SeriesError)
	crac := snap.Column(SeriesCRAC)
	n := len(temps)
	if n == 0 || len(errs) != n || len(crac) != n {
		return RunMetrics{}, false
	}

	var sq, power float64
	inBand := 0
	peak := math.Inf(-1)
	for i := 0; i < n; i++ {
		sq += errs[i] * errs[i]
		power += crac[i]
		if temps[i] >= band.Low && temps[i] <= band.High {
			inBand++
		}
		if temps[i] > peak {
			peak = temps[i]
		}
	}
	return RunMetrics{
		Samples:   n,
		RMSE:      math.Sqrt(sq / float64(n)),
		InBandPct: 100 * float64(inBand) / float64(n),
		MeanCRAC:  power / float64(n),
		PeakTemp:  peak,
	}, true
}
