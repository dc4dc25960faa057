package mesh

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// R2C combines the painted grids of all ranks and transforms the
// result to Fourier space, returning this rank's slab of the complex
// field.
//
// The reduction is a collective: every rank must call R2C the same
// number of times. The transform itself is evaluated locally from the
// combined grid, one 1D pass per axis; only the owned slab is
// retained. The painted grid is consumed and holds the combined sums
// afterwards, so Reset before painting again.
func (m *Mesh) R2C() (*Field, error) {
	n := m.nmesh

	m.comm.AllReduceFloat64s(m.grid)

	full := make([]complex128, len(m.grid))
	for i, v := range m.grid {
		full[i] = complex(v, 0)
	}

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("mesh: failed to create FFT plan: %w", err)
	}

	src := make([]complex128, n)
	dst := make([]complex128, n)

	// Axis 2: contiguous lines.
	for ix := range n {
		for iy := range n {
			line := full[(ix*n+iy)*n : (ix*n+iy)*n+n]
			if err := plan.Forward(dst, line); err != nil {
				return nil, err
			}

			copy(line, dst)
		}
	}

	// Axis 1: stride n.
	for ix := range n {
		for iz := range n {
			for iy := range n {
				src[iy] = full[(ix*n+iy)*n+iz]
			}

			if err := plan.Forward(dst, src); err != nil {
				return nil, err
			}

			for iy := range n {
				full[(ix*n+iy)*n+iz] = dst[iy]
			}
		}
	}

	// Axis 0: stride n*n.
	for iy := range n {
		for iz := range n {
			for ix := range n {
				src[ix] = full[(ix*n+iy)*n+iz]
			}

			if err := plan.Forward(dst, src); err != nil {
				return nil, err
			}

			for ix := range n {
				full[(ix*n+iy)*n+iz] = dst[ix]
			}
		}
	}

	data := append([]complex128(nil), full[m.x0*n*n:(m.x0+m.nx)*n*n]...)

	w0 := make([]float64, m.nx)
	for i := range w0 {
		w0[i] = angularFreq(m.x0+i, n)
	}

	wFull := make([]float64, n)
	for j := range wFull {
		wFull[j] = angularFreq(j, n)
	}

	return &Field{
		box:   m.box,
		nmesh: n,
		comm:  m.comm,
		x0:    m.x0,
		nx:    m.nx,
		data:  data,
		w:     [3][]float64{w0, wFull, wFull},
	}, nil
}
