// Package expr holds equations as inspectable expression trees.
//
// Equations are written in HCL expression syntax and parsed with hclsyntax.
// Every bare identifier is an argument name, except the self token
// ("itself" or "self") which reads the current value of the differential
// field that owns the rule. Values are tensors, so arithmetic broadcasts
// across the parallel, region and sector axes.
package expr
