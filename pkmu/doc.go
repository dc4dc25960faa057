// Package pkmu stores and manipulates a binned two-dimensional power
// spectrum measurement P(k, mu).
//
// A Result is a fixed-shape grid of (k, mu) bins with named data
// columns and an explicit validity grid: a cell is invalid when any
// of its column values was non-finite at construction, typically
// because no Fourier mode fell into that bin. Invalid cells never
// contribute to aggregates and stay invalid through rebinning.
//
// Bins are addressed through discriminated references: Bin(i) is a
// raw index, Center(v) is a bin-center value resolved either exactly
// or, when the result was built with WithForceIndexMatch, to the
// nearest center.
package pkmu
