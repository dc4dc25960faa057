package mesh

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-cosmo/comm"
)

var (
	// ErrWeightLength reports a weights slice that does not match the
	// particle count it belongs to.
	ErrWeightLength = errors.New("mesh: weights must match particle count")

	// ErrParticleCount reports a per-particle slice that does not match
	// the layout it was decomposed with.
	ErrParticleCount = errors.New("mesh: particle count does not match layout")
)

// Mesh is one rank's view of the distributed particle mesh.
type Mesh struct {
	box   [3]float64
	nmesh int
	comm  *comm.Comm

	grid []float64 // rank-local accumulation grid, nmesh^3 row-major (x,y,z)
	x0   int       // first owned row along axis 0
	nx   int       // owned row count along axis 0
}

// New creates a mesh over a periodic box with nmesh cells per side.
//
// nmesh must be a power of two (the FFT backend operates on
// power-of-two lengths) and every box dimension must be positive.
func New(box [3]float64, nmesh int, c *comm.Comm) (*Mesh, error) {
	if nmesh < 2 || nmesh&(nmesh-1) != 0 {
		return nil, fmt.Errorf("mesh: size must be a power of two >= 2: %d", nmesh)
	}

	for a, l := range box {
		if l <= 0 {
			return nil, fmt.Errorf("mesh: box dimension %d must be > 0: %f", a, l)
		}
	}

	if c == nil {
		return nil, fmt.Errorf("mesh: nil communicator")
	}

	x0, nx := slab(nmesh, c.Rank(), c.Size())

	return &Mesh{
		box:   box,
		nmesh: nmesh,
		comm:  c,
		grid:  make([]float64, nmesh*nmesh*nmesh),
		x0:    x0,
		nx:    nx,
	}, nil
}

// Box returns the physical box dimensions.
func (m *Mesh) Box() [3]float64 { return m.box }

// NMesh returns the grid size per side.
func (m *Mesh) NMesh() int { return m.nmesh }

// Comm returns the communicator the mesh was created with.
func (m *Mesh) Comm() *comm.Comm { return m.comm }

// Volume returns the physical box volume.
func (m *Mesh) Volume() float64 { return m.box[0] * m.box[1] * m.box[2] }

// Reset clears the accumulation grid so a new field can be painted.
func (m *Mesh) Reset() {
	clear(m.grid)
}

// slab returns the owned row range along axis 0 for one rank:
// contiguous blocks, remainder rows going to the lowest ranks.
func slab(nmesh, rank, size int) (x0, nx int) {
	base := nmesh / size
	rem := nmesh % size

	x0 = rank*base + min(rank, rem)

	nx = base
	if rank < rem {
		nx++
	}

	return x0, nx
}

// rowOwner returns the rank owning grid row ix along axis 0.
func rowOwner(nmesh, size, ix int) int {
	base := nmesh / size
	rem := nmesh % size

	split := rem * (base + 1)
	if ix < split {
		return ix / (base + 1)
	}

	return rem + (ix-split)/base
}
