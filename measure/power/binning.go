package power

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-cosmo/mesh"
)

// binPkmu digitizes every owned Fourier mode into the (k, mu) grid,
// combines the partial sums across ranks, and returns the per-bin
// statistics as named columns. Empty bins carry NaN in the k, mu and
// power columns so they mask at construction.
//
// Hermitian symmetry is handled by folding: only the non-negative
// half of axis 2 is visited, with symmetry weight 1 on the z = 0 and
// Nyquist planes and 2 elsewhere, so every independent mode pair
// contributes exactly once.
func binPkmu(f1, f2 *mesh.Field, kedges []float64, nmu, los int, binShift, shotNoise float64) map[string][][]float64 {
	nk := len(kedges) - 1
	acc := newModeAccumulator(nk*nmu, 3)

	forEachMode(f1, f2, kedges, binShift, func(bi int, kk, mu, p, sym float64) {
		mb := int(mu * float64(nmu))
		if mb >= nmu {
			mb = nmu - 1
		}

		acc.add(bi*nmu+mb, sym, kk, mu, p)
	}, los)

	acc.reduce(f1.Comm())

	columns := map[string][][]float64{
		"k":     newGrid(nk, nmu),
		"mu":    newGrid(nk, nmu),
		"power": newGrid(nk, nmu),
		"modes": newGrid(nk, nmu),
	}

	for i := range nk {
		for j := range nmu {
			bin := i*nmu + j
			count := acc.counts[bin]

			if count == 0 {
				columns["k"][i][j] = math.NaN()
				columns["mu"][i][j] = math.NaN()
				columns["power"][i][j] = math.NaN()
				columns["modes"][i][j] = 0

				continue
			}

			columns["k"][i][j] = acc.sums[0][bin] / count
			columns["mu"][i][j] = acc.sums[1][bin] / count
			columns["power"][i][j] = acc.sums[2][bin]/count - shotNoise
			columns["modes"][i][j] = count
		}
	}

	return columns
}

// modeAccumulator collects per-bin mode counts and weighted sums, and
// reduces them across the group in a single collective.
type modeAccumulator struct {
	counts []float64
	sums   [][]float64
}

func newModeAccumulator(bins, nsums int) *modeAccumulator {
	acc := &modeAccumulator{
		counts: make([]float64, bins),
		sums:   make([][]float64, nsums),
	}

	for i := range acc.sums {
		acc.sums[i] = make([]float64, bins)
	}

	return acc
}

func (a *modeAccumulator) add(bin int, weight float64, values ...float64) {
	a.counts[bin] += weight
	for i, v := range values {
		a.sums[i][bin] += weight * v
	}
}

// reduce packs all accumulators into one buffer so the whole exchange
// is a single collective call on every rank.
func (a *modeAccumulator) reduce(c interface{ AllReduceFloat64s([]float64) }) {
	bins := len(a.counts)
	packed := make([]float64, 0, bins*(1+len(a.sums)))
	packed = append(packed, a.counts...)
	for _, s := range a.sums {
		packed = append(packed, s...)
	}

	c.AllReduceFloat64s(packed)

	copy(a.counts, packed[:bins])
	for i, s := range a.sums {
		copy(s, packed[(i+1)*bins:(i+2)*bins])
	}
}

// forEachMode visits every owned mode in the folded half-space and
// hands the callback its k bin, |k|, folded mu, cross power and
// symmetry weight. Modes outside the k range are skipped.
func forEachMode(f1, f2 *mesh.Field, kedges []float64, binShift float64, fn func(bi int, kk, mu, p, sym float64), los int) {
	n := f1.NMesh()
	nz := n/2 + 1
	w := f1.Freq()
	box := f1.Box()
	vol := f1.Volume()

	var kfac [3]float64
	for a := range kfac {
		kfac[a] = float64(n) / box[a]
	}

	// The digitization edges may be shifted by a fraction of the bin
	// width; the reported edges stay put.
	shifted := append([]float64(nil), kedges...)
	if binShift != 0 {
		for i := range shifted {
			j := min(i, len(kedges)-2)
			shifted[i] += binShift * (kedges[j+1] - kedges[j])
		}
	}

	data1 := f1.Data()
	data2 := f2.Data()
	auto := f1 == f2

	re1 := make([]float64, nz)
	im1 := make([]float64, nz)
	prow := make([]float64, nz)

	for i, w0 := range w[0] {
		kx := w0 * kfac[0]

		for j, w1 := range w[1] {
			ky := w1 * kfac[1]
			base := (i*n + j) * n

			for z := range nz {
				c := data1[base+z]
				re1[z] = real(c)
				im1[z] = imag(c)
			}

			if auto {
				vecmath.Power(prow, re1, im1)
			} else {
				for z := range nz {
					c := data2[base+z]
					prow[z] = re1[z]*real(c) + im1[z]*imag(c)
				}
			}

			for z := range nz {
				kz := w[2][z] * kfac[2]

				kk := math.Sqrt(kx*kx + ky*ky + kz*kz)

				bucket := sort.Search(len(shifted), func(e int) bool { return shifted[e] > kk })
				if bucket < 1 || bucket > len(shifted)-1 {
					continue
				}

				mu := 0.0
				if kk > 0 {
					switch los {
					case 0:
						mu = math.Abs(kx) / kk
					case 1:
						mu = math.Abs(ky) / kk
					default:
						mu = math.Abs(kz) / kk
					}
				}

				sym := 2.0
				if z == 0 || 2*z == n {
					sym = 1
				}

				fn(bucket-1, kk, mu, prow[z]*vol, sym)
			}
		}
	}
}

func newGrid(nk, nmu int) [][]float64 {
	grid := make([][]float64, nk)
	for i := range grid {
		grid[i] = make([]float64, nmu)
	}

	return grid
}
