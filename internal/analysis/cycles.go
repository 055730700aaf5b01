package analysis

import "math"

// Cycle spans two consecutive maxima of a series.
type Cycle struct {
	Start, End int
	Period     float64
	Min, Max   float64
	Mean       float64
	// Amplitude is half the peak-to-trough distance.
	Amplitude float64
}

// Peaks returns the indices of strict local maxima. Plateaus count once,
// at their first index.
func Peaks(series []float64) []int {
	var peaks []int
	for i := 1; i < len(series)-1; i++ {
		if series[i] <= series[i-1] {
			continue
		}
		j := i
		for j+1 < len(series) && series[j+1] == series[i] {
			j++
		}
		if j+1 < len(series) && series[j+1] < series[i] {
			peaks = append(peaks, i)
		}
		i = j
	}
	return peaks
}

// FindCycles splits series at its maxima. times gives the time of each
// sample.
func FindCycles(series, times []float64) []Cycle {
	peaks := Peaks(series)
	if len(peaks) < 2 {
		return nil
	}
	cycles := make([]Cycle, 0, len(peaks)-1)
	for k := 1; k < len(peaks); k++ {
		a, b := peaks[k-1], peaks[k]
		c := Cycle{Start: a, End: b, Period: times[b] - times[a], Min: math.Inf(1), Max: math.Inf(-1)}
		for _, v := range series[a : b+1] {
			c.Min = math.Min(c.Min, v)
			c.Max = math.Max(c.Max, v)
			c.Mean += v
		}
		c.Mean /= float64(b - a + 1)
		c.Amplitude = (c.Max - c.Min) / 2
		cycles = append(cycles, c)
	}
	return cycles
}
