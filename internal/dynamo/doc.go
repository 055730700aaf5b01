// Package dynamo defines the building blocks of a model: fields, literal
// values, model definitions with presets, the shared default-field library
// and the Registry that merges them.
//
// A model is a set of named fields of three kinds:
//
//   - [Parameter]: a constant literal, or an equation over other parameters
//     evaluated once when an instance is created
//   - [Differential]: a time-derivative rule plus an initial value
//   - [Statevar]: a derived quantity recomputed every step
//
// [BuildRegistry] validates a [Definition] against a [Library] and reports
// every problem it finds at once.
//
// # Example
//
//	def := &dynamo.Definition{Name: "decay", Fields: []dynamo.FieldSpec{
//		{Name: "x", Kind: dynamo.KindDifferential, Equation: expr.MustParse("-k*x"), Initial: 1.0},
//		{Name: "k", Kind: dynamo.KindParameter, Value: 0.5},
//	}}
//	reg, err := dynamo.BuildRegistry(nil, def)
//
// The package also holds the core integration interfaces ([State],
// [System], [Integrator]) shared by the integrators and sim packages.
//
// # Thread Safety
//
// Definitions, Libraries and Registries are read-only once built and may be
// shared between goroutines.
package dynamo
