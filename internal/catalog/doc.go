// Package catalog loads model definitions from YAML files and keeps the
// default-field library merged into every model.
//
// A model file declares field groups in order:
//
//	name: lotka-volterra
//	differential:
//	  x: {eq: x * (A - B*y), initial: 0.7}
//	  y: {eq: y * (D*x - C), initial: 0.4}
//	parameter:
//	  A: 1
//	presets:
//	  default: {com: Closed orbits, fields: {x: 2}}
//	  split: {fields: {A: {regions: [1, 1.2]}}}
//
// A bare number is a parameter value and a bare string an equation. A
// mapping {regions: [...]} gives one value per region.
package catalog
