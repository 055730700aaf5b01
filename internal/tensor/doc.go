// Package tensor provides the dense numeric arrays every model field is
// stored in.
//
// A [Tensor] always has four axes, in this order:
//
//   - parallel: independent runs simulated side by side
//   - region: spatial regions coupled only through region operators
//   - row, col: sectoral dimensions (a sector vector is (n, 1), a
//     sector-to-sector matrix is (n, n))
//
// Unused axes have extent 1 and broadcast against any extent, the same way
// scalars broadcast against vectors. Matrix operators ([MatMul],
// [Transpose], [Sprod], ...) act on the trailing (row, col) pair and
// broadcast over the leading (parallel, region) pair.
package tensor
