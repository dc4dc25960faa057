package power

import (
	"math"

	"github.com/cwbudde/algo-cosmo/mesh"
)

// binPoles projects every owned mode onto the requested Legendre
// orders and bins the coefficients by k. The per-mode contribution to
// order ell is p * (2*ell+1) * P_ell(mu), normalized by the mode count
// of the k bin.
func binPoles(f1, f2 *mesh.Field, kedges []float64, ells []int, los int, binShift float64) *Poles {
	nk := len(kedges) - 1
	nell := len(ells)
	acc := newModeAccumulator(nk, 1+nell)

	forEachMode(f1, f2, kedges, binShift, func(bi int, kk, mu, p, sym float64) {
		values := make([]float64, 1+nell)
		values[0] = kk

		for li, ell := range ells {
			values[1+li] = p * float64(2*ell+1) * legendre(ell, mu)
		}

		acc.add(bi, sym, values...)
	}, los)

	acc.reduce(f1.Comm())

	poles := &Poles{
		KEdges: append([]float64(nil), kedges...),
		K:      make([]float64, nk),
		Modes:  make([]float64, nk),
		Ells:   append([]int(nil), ells...),
		Power:  make([][]float64, nk),
	}

	for i := range nk {
		poles.Power[i] = make([]float64, nell)
		count := acc.counts[i]
		poles.Modes[i] = count

		if count == 0 {
			poles.K[i] = math.NaN()
			for li := range nell {
				poles.Power[i][li] = math.NaN()
			}

			continue
		}

		poles.K[i] = acc.sums[0][i] / count
		for li := range nell {
			poles.Power[i][li] = acc.sums[1+li][i] / count
		}
	}

	return poles
}

// legendre evaluates the Legendre polynomial P_n(x) by the three-term
// recurrence (n+1) P_{n+1} = (2n+1) x P_n - n P_{n-1}.
func legendre(n int, x float64) float64 {
	switch n {
	case 0:
		return 1
	case 1:
		return x
	}

	prev, cur := 1.0, x
	for k := 1; k < n; k++ {
		prev, cur = cur, (float64(2*k+1)*x*cur-float64(k)*prev)/float64(k+1)
	}

	return cur
}
