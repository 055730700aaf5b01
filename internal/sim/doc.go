// Package sim compiles model definitions and steps their instances through
// time. An Instance holds one trajectory per field over a rank-4 run shape;
// a Simulator fills it slice by slice with an explicit integrator and an
// Ensemble runs several instances at once.
package sim
