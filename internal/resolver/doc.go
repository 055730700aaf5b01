// Package resolver computes the evaluation order of derived fields.
//
// Statevars are sorted so each one runs after every statevar it reads.
// Reads of differential fields never constrain the order, since their
// values are fixed for the whole step. Fields that become ready together
// are ordered by how many parameters they read, then by declaration order.
// Parameter equations are ordered the same way among themselves.
package resolver
