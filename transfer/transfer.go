// Package transfer provides Fourier-space filters applied to a painted
// mesh field before binning.
//
// Filters mutate the field in place and are applied sequentially by a
// Chain. DC filters must come before deconvolution: deconvolving first
// would amplify a DC term that is about to be removed. NormalizeDC
// performs a collective reduction, so every rank must apply the same
// chain to its slab.
package transfer

import (
	"fmt"
	"math"
)

// Field is the slab contract the filters operate on. *mesh.Field
// satisfies it.
type Field interface {
	// Freq returns per-axis angular frequencies in [-pi, pi); axis 0
	// covers only the owned rows.
	Freq() [3][]float64
	// NMesh returns the mesh size per side.
	NMesh() int
	// Data returns the owned slab, row-major over (x, y, z).
	Data() []complex128
	// AllReduce sums a scalar over all ranks of the field's group.
	AllReduce(v float64) float64
}

// Filter transforms a Fourier-space field in place.
type Filter func(f Field)

// Chain applies filters in order.
type Chain []Filter

// Apply runs every filter over the field, in order.
func (c Chain) Apply(f Field) {
	for _, filt := range c {
		filt(f)
	}
}

// CICMode selects the cloud-in-cell deconvolution variant.
type CICMode int

const (
	// CICAnisotropic applies the exact per-axis window correction.
	CICAnisotropic CICMode = iota
	// CICIsotropic applies the cheaper radially-approximated correction.
	CICIsotropic
	// CICNone skips deconvolution.
	CICNone
)

// ParseCICMode maps the CLI spelling to a CICMode.
func ParseCICMode(s string) (CICMode, error) {
	switch s {
	case "anisotropic":
		return CICAnisotropic, nil
	case "isotropic":
		return CICIsotropic, nil
	case "none":
		return CICNone, nil
	default:
		return CICNone, fmt.Errorf("transfer: unknown deconvolution mode %q", s)
	}
}

// NewChain builds the standard pre-binning chain: DC normalization,
// DC removal, then the selected deconvolution.
func NewChain(mode CICMode) Chain {
	chain := Chain{NormalizeDC, RemoveDC}

	switch mode {
	case CICAnisotropic:
		chain = append(chain, AnisotropicCIC)
	case CICIsotropic:
		chain = append(chain, IsotropicCIC)
	case CICNone:
	}

	return chain
}

// dcIndex locates the mode whose frequency is exactly zero on every
// axis. Returns ok=false when the zero mode is not locally owned.
func dcIndex(f Field) (idx int, ok bool) {
	w := f.Freq()
	n := f.NMesh()

	var ind [3]int
	for a := range 3 {
		found := false
		for j, v := range w[a] {
			if v == 0 {
				ind[a] = j
				found = true

				break
			}
		}

		if !found {
			return 0, false
		}
	}

	return (ind[0]*n+ind[1])*n + ind[2], true
}

// RemoveDC zeroes the zero mode, which sets the mean of the field in
// configuration space to zero. Ranks that do not own the zero mode do
// nothing; no collective is involved.
func RemoveDC(f Field) {
	idx, ok := dcIndex(f)
	if !ok {
		return
	}

	f.Data()[idx] = 0
}

// NormalizeDC divides the entire field by the magnitude of the zero
// mode, which divides by the mean in configuration space.
//
// The magnitude is combined across ranks, so every rank participates
// in the reduction whether or not it owns the zero mode. If the zero
// mode itself is zero the division propagates non-finite values; the
// caller is responsible for not normalizing an empty field.
func NormalizeDC(f Field) {
	value := 0.0
	if idx, ok := dcIndex(f); ok {
		c := f.Data()[idx]
		value = math.Hypot(real(c), imag(c))
	}

	value = f.AllReduce(value)

	data := f.Data()
	cv := complex(value, 0)
	for i := range data {
		data[i] /= cv
	}
}

// cicKernel is the cloud-in-cell window amplitude at frequency w.
func cicKernel(w float64) float64 {
	s := math.Sin(0.5 * w)

	return math.Sqrt(1 - 2.0/3.0*s*s)
}

// AnisotropicCIC divides out the cloud-in-cell assignment window,
// axis by axis. Each axis contributes an independent scalar divide
// broadcast along its own dimension; the corrections multiply, they
// are never summed. Applying the filter twice keeps dividing.
func AnisotropicCIC(f Field) {
	w := f.Freq()
	n := f.NMesh()

	var inv [3][]float64
	for a := range 3 {
		inv[a] = make([]float64, len(w[a]))
		for j, v := range w[a] {
			inv[a][j] = 1 / cicKernel(v)
		}
	}

	data := f.Data()
	for i := range w[0] {
		for j := range n {
			row := data[(i*n+j)*n : (i*n+j)*n+n]
			c := inv[0][i] * inv[1][j]
			for k := range row {
				row[k] *= complex(c*inv[2][k], 0)
			}
		}
	}
}

// IsotropicCIC applies a cheaper radial approximation of the window
// correction: the squared frequency is collapsed to the row's axis-0
// frequency plus the leading entries of the other axes, and a single
// scalar corrects each row. Weaker than AnisotropicCIC but one
// evaluation per row instead of per mode.
func IsotropicCIC(f Field) {
	w := f.Freq()
	n := f.NMesh()

	data := f.Data()
	for i, w0 := range w[0] {
		scratch := w0 * w0
		scratch += w[1][0] * w[1][0]
		scratch += w[2][0] * w[2][0]

		s := math.Sin(0.5 * scratch)
		c := complex(math.Sqrt(1-2.0/3.0*s*s), 0)

		row := data[i*n*n : (i+1)*n*n]
		for k := range row {
			row[k] *= c
		}
	}
}
