package mesh

import (
	"math"

	"github.com/cwbudde/algo-cosmo/comm"
)

// Field is one rank's slab of the Fourier-space mesh.
//
// Data is laid out row-major over (x, y, z) where x covers only the
// owned rows. Freq exposes the angular frequency of every axis index:
// axis 0 is restricted to the owned rows, axes 1 and 2 span the full
// mesh. Frequencies are exact: the zero mode has frequency exactly 0
// on every axis, and it exists on at most one rank.
type Field struct {
	box   [3]float64
	nmesh int
	comm  *comm.Comm

	x0 int
	nx int

	data []complex128
	w    [3][]float64
}

// Box returns the physical box dimensions.
func (f *Field) Box() [3]float64 { return f.box }

// NMesh returns the mesh size per side.
func (f *Field) NMesh() int { return f.nmesh }

// Comm returns the communicator that owns the distributed field.
func (f *Field) Comm() *comm.Comm { return f.comm }

// Volume returns the physical box volume.
func (f *Field) Volume() float64 { return f.box[0] * f.box[1] * f.box[2] }

// NX returns the number of owned rows along axis 0.
func (f *Field) NX() int { return f.nx }

// X0 returns the global index of the first owned row along axis 0.
func (f *Field) X0() int { return f.x0 }

// Data returns the owned slab, mutable in place.
func (f *Field) Data() []complex128 { return f.data }

// Freq returns the per-axis angular frequency arrays.
func (f *Field) Freq() [3][]float64 { return f.w }

// AllReduce sums v over all ranks of the field's group. Collective:
// every rank must call it, contributing zero when it has no data.
func (f *Field) AllReduce(v float64) float64 {
	return f.comm.AllReduceFloat64(v)
}

// At returns the mode at local row i, axis-1 index j, axis-2 index k.
func (f *Field) At(i, j, k int) complex128 {
	return f.data[(i*f.nmesh+j)*f.nmesh+k]
}

// Scale multiplies every owned mode by s.
func (f *Field) Scale(s float64) {
	cs := complex(s, 0)
	for i := range f.data {
		f.data[i] *= cs
	}
}

// Copy returns a deep copy of the owned slab.
func (f *Field) Copy() *Field {
	dup := *f
	dup.data = append([]complex128(nil), f.data...)

	return &dup
}

// angularFreq returns the angular frequency of global index j on a
// mesh of n cells, in [-pi, pi).
func angularFreq(j, n int) float64 {
	if 2*j < n {
		return 2 * math.Pi * float64(j) / float64(n)
	}

	return 2 * math.Pi * float64(j-n) / float64(n)
}
