package throughput

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the sampled rates of a finished run.
type Summary struct {
	Samples    int
	MeanRate   float64
	StdDevRate float64
	MinRate    float64
	MaxRate    float64
	Overall    Sample
}

// Summarize computes rate statistics over samples. Samples with a non-finite
// rate are skipped. overall is the final count and elapsed time of the run.
func Summarize(samples []Sample, overall Sample) Summary {
	rates := make([]float64, 0, len(samples))
	for _, s := range samples {
		if r := s.Rate(); !math.IsInf(r, 0) && !math.IsNaN(r) {
			rates = append(rates, r)
		}
	}

	sum := Summary{Samples: len(rates), Overall: overall}
	if len(rates) == 0 {
		return sum
	}

	sum.MeanRate = stat.Mean(rates, nil)
	if len(rates) > 1 {
		sum.StdDevRate = stat.StdDev(rates, nil)
	}
	sum.MinRate, sum.MaxRate = rates[0], rates[0]
	for _, r := range rates[1:] {
		sum.MinRate = math.Min(sum.MinRate, r)
		sum.MaxRate = math.Max(sum.MaxRate, r)
	}
	return sum
}

// Elapsed returns the run's total elapsed time.
func (s Summary) Elapsed() time.Duration {
	return s.Overall.Elapsed
}
