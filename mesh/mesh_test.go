package mesh

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/cwbudde/algo-cosmo/comm"
	"github.com/cwbudde/algo-cosmo/internal/testutil"
)

func singleRank(t *testing.T) *comm.Comm {
	t.Helper()

	g, err := comm.NewGroup(1)
	if err != nil {
		t.Fatal(err)
	}

	return g.Rank(0)
}

func TestNewValidation(t *testing.T) {
	c := singleRank(t)

	if _, err := New([3]float64{8, 8, 8}, 6, c); err == nil {
		t.Fatal("non-power-of-two mesh size must be rejected")
	}

	if _, err := New([3]float64{8, 8, 8}, 1, c); err == nil {
		t.Fatal("mesh size 1 must be rejected")
	}

	if _, err := New([3]float64{8, 0, 8}, 4, c); err == nil {
		t.Fatal("zero box dimension must be rejected")
	}

	if _, err := New([3]float64{8, 8, 8}, 4, nil); err == nil {
		t.Fatal("nil communicator must be rejected")
	}
}

func TestSlabPartition(t *testing.T) {
	for _, size := range []int{1, 2, 3, 4, 5, 8} {
		const nmesh = 8

		covered := make([]int, nmesh)
		for rank := range size {
			x0, nx := slab(nmesh, rank, size)
			for ix := x0; ix < x0+nx; ix++ {
				covered[ix]++

				if got := rowOwner(nmesh, size, ix); got != rank {
					t.Fatalf("size %d: rowOwner(%d) = %d, want %d", size, ix, got, rank)
				}
			}
		}

		for ix, n := range covered {
			if n != 1 {
				t.Fatalf("size %d: row %d covered %d times", size, ix, n)
			}
		}
	}
}

func TestPaintConservesMass(t *testing.T) {
	c := singleRank(t)

	m, err := New([3]float64{16, 16, 16}, 8, c)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	pos := make([][3]float64, 200)
	for i := range pos {
		pos[i] = [3]float64{rng.Float64() * 16, rng.Float64() * 16, rng.Float64() * 16}
	}

	if err := m.Paint(pos, nil); err != nil {
		t.Fatal(err)
	}

	testutil.RequireFinite(t, m.grid)

	sum := 0.0
	for _, v := range m.grid {
		sum += v
	}

	testutil.RequireNear(t, sum, 200, 1e-9)

	weights := make([]float64, len(pos))
	total := 0.0
	for i := range weights {
		weights[i] = rng.Float64()
		total += weights[i]
	}

	m.Reset()
	if err := m.Paint(pos, weights); err != nil {
		t.Fatal(err)
	}

	sum = 0.0
	for _, v := range m.grid {
		sum += v
	}

	testutil.RequireNear(t, sum, total, 1e-9)
}

func TestPaintWeightLength(t *testing.T) {
	c := singleRank(t)

	m, err := New([3]float64{8, 8, 8}, 4, c)
	if err != nil {
		t.Fatal(err)
	}

	pos := [][3]float64{{1, 1, 1}, {2, 2, 2}}
	if err := m.Paint(pos, []float64{1}); !errors.Is(err, ErrWeightLength) {
		t.Fatalf("got %v, want ErrWeightLength", err)
	}
}

func TestPaintWrapsPositions(t *testing.T) {
	c := singleRank(t)

	m, err := New([3]float64{8, 8, 8}, 4, c)
	if err != nil {
		t.Fatal(err)
	}

	// Positions outside the box fold back in; mass stays on the grid.
	pos := [][3]float64{{-1, 9, 100}, {8, -0.5, 7.99}}
	if err := m.Paint(pos, nil); err != nil {
		t.Fatal(err)
	}

	sum := 0.0
	for _, v := range m.grid {
		sum += v
	}

	testutil.RequireNear(t, sum, 2, 1e-12)
}

func TestDecomposeExchangeRoundTrip(t *testing.T) {
	const (
		size  = 3
		nmesh = 8
		side  = 32.0
	)

	err := comm.Run(size, func(c *comm.Comm) error {
		m, err := New([3]float64{side, side, side}, nmesh, c)
		if err != nil {
			return err
		}

		rng := rand.New(rand.NewPCG(7, uint64(c.Rank())))
		pos := make([][3]float64, 50+10*c.Rank())
		weights := make([]float64, len(pos))
		for i := range pos {
			pos[i] = [3]float64{rng.Float64() * side, rng.Float64() * side, rng.Float64() * side}
			weights[i] = 1 + rng.Float64()
		}

		layout := m.Decompose(pos)

		exchanged, err := layout.ExchangePositions(pos)
		if err != nil {
			return err
		}

		w, err := layout.ExchangeWeights(weights)
		if err != nil {
			return err
		}

		if len(w) != len(exchanged) {
			t.Errorf("rank %d: %d weights for %d positions", c.Rank(), len(w), len(exchanged))
		}

		// Every received particle must fall into this rank's slab.
		for _, p := range exchanged {
			ix := wrapCell(int(math.Floor(p[0]*float64(nmesh)/side)), nmesh)
			if rowOwner(nmesh, size, ix) != c.Rank() {
				t.Errorf("rank %d received particle for row %d", c.Rank(), ix)
			}
		}

		// The exchange only moves particles; the totals are conserved.
		localTotal := 0.0
		for _, v := range w {
			localTotal += v
		}

		gotCount := c.AllReduceFloat64(float64(len(exchanged)))
		wantCount := c.AllReduceFloat64(float64(len(pos)))
		if gotCount != wantCount {
			t.Errorf("rank %d: exchanged count %v, want %v", c.Rank(), gotCount, wantCount)
		}

		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestExchangeRejectsMismatchedLength(t *testing.T) {
	c := singleRank(t)

	m, err := New([3]float64{8, 8, 8}, 4, c)
	if err != nil {
		t.Fatal(err)
	}

	layout := m.Decompose([][3]float64{{1, 1, 1}})

	if _, err := layout.ExchangePositions([][3]float64{}); !errors.Is(err, ErrParticleCount) {
		t.Fatalf("got %v, want ErrParticleCount", err)
	}

	if _, err := layout.ExchangeWeights([]float64{1, 2}); !errors.Is(err, ErrParticleCount) {
		t.Fatalf("got %v, want ErrParticleCount", err)
	}
}

func TestR2CUniformFieldIsPureDC(t *testing.T) {
	const (
		nmesh = 4
		side  = 8.0
	)

	c := singleRank(t)

	m, err := New([3]float64{side, side, side}, nmesh, c)
	if err != nil {
		t.Fatal(err)
	}

	pos := testutil.LatticeParticles(nmesh, m.Box())
	if err := m.Paint(pos, nil); err != nil {
		t.Fatal(err)
	}

	f, err := m.R2C()
	if err != nil {
		t.Fatal(err)
	}

	total := float64(nmesh * nmesh * nmesh)
	for i := range f.NX() {
		for j := range nmesh {
			for k := range nmesh {
				mode := f.At(i, j, k)

				want := 0.0
				if f.X0()+i == 0 && j == 0 && k == 0 {
					want = total
				}

				if math.Abs(real(mode)-want) > 1e-9*total || math.Abs(imag(mode)) > 1e-9*total {
					t.Fatalf("mode (%d,%d,%d) = %v, want %v", f.X0()+i, j, k, mode, want)
				}
			}
		}
	}
}

func TestR2CSingleParticleFlatSpectrum(t *testing.T) {
	const (
		nmesh = 4
		side  = 4.0
	)

	c := singleRank(t)

	m, err := New([3]float64{side, side, side}, nmesh, c)
	if err != nil {
		t.Fatal(err)
	}

	// A particle exactly on a grid point paints a single delta, whose
	// transform has unit magnitude at every mode.
	if err := m.Paint([][3]float64{{1, 2, 3}}, nil); err != nil {
		t.Fatal(err)
	}

	f, err := m.R2C()
	if err != nil {
		t.Fatal(err)
	}

	for i := range f.NX() {
		for j := range nmesh {
			for k := range nmesh {
				mode := f.At(i, j, k)
				mag := math.Hypot(real(mode), imag(mode))
				testutil.RequireNear(t, mag, 1, 1e-9)
			}
		}
	}
}

func TestR2CDistributedMatchesSingleRank(t *testing.T) {
	const (
		nmesh = 8
		side  = 16.0
	)

	rng := rand.New(rand.NewPCG(3, 9))
	pos := make([][3]float64, 120)
	for i := range pos {
		pos[i] = [3]float64{rng.Float64() * side, rng.Float64() * side, rng.Float64() * side}
	}

	// Reference spectrum on one rank.
	ref := make([]complex128, nmesh*nmesh*nmesh)
	{
		c := singleRank(t)
		m, err := New([3]float64{side, side, side}, nmesh, c)
		if err != nil {
			t.Fatal(err)
		}

		if err := m.Paint(pos, nil); err != nil {
			t.Fatal(err)
		}

		f, err := m.R2C()
		if err != nil {
			t.Fatal(err)
		}

		copy(ref, f.Data())
	}

	const size = 3

	err := comm.Run(size, func(c *comm.Comm) error {
		m, err := New([3]float64{side, side, side}, nmesh, c)
		if err != nil {
			return err
		}

		lo := len(pos) * c.Rank() / size
		hi := len(pos) * (c.Rank() + 1) / size
		batch := pos[lo:hi]

		layout := m.Decompose(batch)
		exchanged, err := layout.ExchangePositions(batch)
		if err != nil {
			return err
		}

		if err := m.Paint(exchanged, nil); err != nil {
			return err
		}

		f, err := m.R2C()
		if err != nil {
			return err
		}

		for i, got := range f.Data() {
			want := ref[f.X0()*nmesh*nmesh+i]
			if d := got - want; math.Hypot(real(d), imag(d)) > 1e-8 {
				t.Errorf("rank %d: slab mode %d = %v, want %v", c.Rank(), i, got, want)

				return nil
			}
		}

		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAngularFreq(t *testing.T) {
	n := 8
	want := []float64{0, math.Pi / 4, math.Pi / 2, 3 * math.Pi / 4, -math.Pi, -3 * math.Pi / 4, -math.Pi / 2, -math.Pi / 4}

	got := make([]float64, n)
	for j := range got {
		got[j] = angularFreq(j, n)
	}

	testutil.RequireSliceNearlyEqual(t, got, want, 1e-15)
}
