package mesh

import (
	"math"

	"github.com/cwbudde/algo-cosmo/comm"
)

// Layout records where each locally-read particle belongs after a
// spatial decomposition. It is bound to the particle batch it was
// built from: every Exchange call must pass per-particle data of the
// same length, in the same order.
type Layout struct {
	comm   *comm.Comm
	n      int
	byDest [][]int // local particle indices per destination rank
}

// Decompose assigns each particle to the rank owning its grid row
// along axis 0 and returns the resulting exchange layout.
//
// Positions outside the box are wrapped periodically, matching the
// paint step.
func (m *Mesh) Decompose(pos [][3]float64) *Layout {
	size := m.comm.Size()
	byDest := make([][]int, size)

	invCell := float64(m.nmesh) / m.box[0]
	for i, p := range pos {
		ix := wrapCell(int(math.Floor(p[0]*invCell)), m.nmesh)
		dest := rowOwner(m.nmesh, size, ix)
		byDest[dest] = append(byDest[dest], i)
	}

	return &Layout{comm: m.comm, n: len(pos), byDest: byDest}
}

// ExchangePositions redistributes positions according to the layout
// and returns the particles now owned by this rank, ordered by source
// rank.
func (l *Layout) ExchangePositions(pos [][3]float64) ([][3]float64, error) {
	if len(pos) != l.n {
		return nil, ErrParticleCount
	}

	send := make([][]float64, l.comm.Size())
	for dest, idx := range l.byDest {
		buf := make([]float64, 0, 3*len(idx))
		for _, i := range idx {
			buf = append(buf, pos[i][0], pos[i][1], pos[i][2])
		}

		send[dest] = buf
	}

	recv := l.comm.AllToAllFloat64s(send)

	var out [][3]float64
	for _, buf := range recv {
		for i := 0; i+2 < len(buf); i += 3 {
			out = append(out, [3]float64{buf[i], buf[i+1], buf[i+2]})
		}
	}

	return out, nil
}

// ExchangeWeights redistributes per-particle weights with the same
// ordering as ExchangePositions.
func (l *Layout) ExchangeWeights(weights []float64) ([]float64, error) {
	if len(weights) != l.n {
		return nil, ErrParticleCount
	}

	send := make([][]float64, l.comm.Size())
	for dest, idx := range l.byDest {
		buf := make([]float64, 0, len(idx))
		for _, i := range idx {
			buf = append(buf, weights[i])
		}

		send[dest] = buf
	}

	recv := l.comm.AllToAllFloat64s(send)

	var out []float64
	for _, buf := range recv {
		out = append(out, buf...)
	}

	return out, nil
}

// wrapCell folds a cell index into [0, nmesh).
func wrapCell(i, nmesh int) int {
	i %= nmesh
	if i < 0 {
		i += nmesh
	}

	return i
}
