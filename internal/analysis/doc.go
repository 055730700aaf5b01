// Package analysis post-processes finished runs for reporting.
//
//   - [Summary]: min, max, mean and final value per field and parallel run
//   - [VariationRate]: centred logarithmic derivative of a series
//   - [FindCycles]: peak-to-peak periods and amplitudes of oscillations
//   - [DominantPeriod]: strongest period of the power spectrum
//   - [LyapunovExponent]: separation growth of two nearby runs
//   - [BifurcationDiagram]: distinct maxima across a one-axis sweep
//   - [PhasePortrait], [PoincareSection]: paired values of two fields
//
// # Oscillations
//
// Cycles and spectra agree on clean limit cycles:
//
//	x, _ := inst.Trajectory("lambda")
//	series := x.Series(0, 0, 0, 0)
//	period, ok := analysis.DominantPeriod(series, dt)
//	cycles := analysis.FindCycles(series, inst.Times())
package analysis
