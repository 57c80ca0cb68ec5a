package logic

import (
	"math"
	"time"
)

// TemperatureRecord accumulates time-weighted statistics for one reporting
// period. Intervals between samples are integrated trapezoidally; the
// seconds-in-band counters attribute each interval to the band of the
// sample that opened it.
type TemperatureRecord struct {
	WeightedSum float64       // °C·s
	Covered     time.Duration // total time covered by good samples
	Min         float64
	Max         float64
	Samples     int
	LowTime     time.Duration // time spent below the low bound
	HighTime    time.Duration // time spent above the high bound
}

func newTemperatureRecord() TemperatureRecord {
	return TemperatureRecord{
		Min: math.Inf(1),
		Max: math.Inf(-1),
	}
}

// observe folds a point value into min/max and the sample count.
func (r *TemperatureRecord) observe(v float64) {
	if v < r.Min {
		r.Min = v
	}
	if v > r.Max {
		r.Max = v
	}
	r.Samples++
}

// accumulate integrates the interval between two consecutive good samples.
func (r *TemperatureRecord) accumulate(prev, cur float64, dt time.Duration, cfg TemperatureConfig) {
	if dt <= 0 {
		return
	}
	r.WeightedSum += (prev + cur) / 2 * dt.Seconds()
	r.Covered += dt
	if prev < cfg.Low {
		r.LowTime += dt
	} else if prev > cfg.High {
		r.HighTime += dt
	}
}

// Empty reports whether the record covers no samples.
func (r TemperatureRecord) Empty() bool {
	return r.Samples == 0
}

// Mean returns the time-weighted mean temperature, or the plain sample if
// the record covers a single reading.
func (r TemperatureRecord) Mean() float64 {
	if r.Covered <= 0 {
		if r.Samples > 0 {
			return r.Min // single sample: Min == Max == the value
		}
		return 0
	}
	return r.WeightedSum / r.Covered.Seconds()
}
