// Package mesh implements a distributed particle mesh: particle
// positions are redistributed across ranks by slab ownership, painted
// onto a regular grid with cloud-in-cell assignment, and transformed
// to Fourier space.
//
// Each rank owns a contiguous slab of grid rows along axis 0. The
// real-space accumulation grid is rank-local; R2C combines the rank
// contributions with a collective reduction before transforming, and
// the resulting complex Field exposes only the owned slab together
// with its per-axis angular frequencies in [-pi, pi).
package mesh
