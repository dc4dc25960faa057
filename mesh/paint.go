package mesh

import "math"

// Paint deposits particle mass onto the grid with cloud-in-cell
// assignment. weights may be nil for unit-mass particles; otherwise
// it must have one entry per particle.
//
// Paint only accumulates; call Reset before painting a new field.
func (m *Mesh) Paint(pos [][3]float64, weights []float64) error {
	if weights != nil && len(weights) != len(pos) {
		return ErrWeightLength
	}

	n := m.nmesh
	var invCell [3]float64
	for a := range invCell {
		invCell[a] = float64(n) / m.box[a]
	}

	for p, x := range pos {
		w := 1.0
		if weights != nil {
			w = weights[p]
		}

		var i0, i1 [3]int
		var f [3]float64
		for a := range 3 {
			u := x[a] * invCell[a]
			base := math.Floor(u)
			f[a] = u - base
			i0[a] = wrapCell(int(base), n)
			i1[a] = i0[a] + 1
			if i1[a] == n {
				i1[a] = 0
			}
		}

		g := m.grid
		g[(i0[0]*n+i0[1])*n+i0[2]] += w * (1 - f[0]) * (1 - f[1]) * (1 - f[2])
		g[(i0[0]*n+i0[1])*n+i1[2]] += w * (1 - f[0]) * (1 - f[1]) * f[2]
		g[(i0[0]*n+i1[1])*n+i0[2]] += w * (1 - f[0]) * f[1] * (1 - f[2])
		g[(i0[0]*n+i1[1])*n+i1[2]] += w * (1 - f[0]) * f[1] * f[2]
		g[(i1[0]*n+i0[1])*n+i0[2]] += w * f[0] * (1 - f[1]) * (1 - f[2])
		g[(i1[0]*n+i0[1])*n+i1[2]] += w * f[0] * (1 - f[1]) * f[2]
		g[(i1[0]*n+i1[1])*n+i0[2]] += w * f[0] * f[1] * (1 - f[2])
		g[(i1[0]*n+i1[1])*n+i1[2]] += w * f[0] * f[1] * f[2]
	}

	return nil
}
