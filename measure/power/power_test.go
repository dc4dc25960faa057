package power

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/cwbudde/algo-cosmo/catalog"
	"github.com/cwbudde/algo-cosmo/comm"
	"github.com/cwbudde/algo-cosmo/internal/testutil"
	"github.com/cwbudde/algo-cosmo/pkmu"
	"github.com/cwbudde/algo-cosmo/transfer"
)

// measureOnce runs Measure on a fresh group and returns rank 0's
// report.
func measureOnce(t *testing.T, size int, cfg Config, first, second catalog.Source) *Report {
	t.Helper()

	var (
		mu     sync.Mutex
		report *Report
	)

	err := comm.Run(size, func(c *comm.Comm) error {
		rep, err := Measure(c, cfg, first, second)
		if err != nil {
			return err
		}

		if c.Rank() == 0 {
			mu.Lock()
			report = rep
			mu.Unlock()
		}

		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	return report
}

func TestValidateConfig(t *testing.T) {
	base := Config{NMesh: 8}

	bad := normalizeConfig(base)
	bad.Mode = "3d"
	if err := validateConfig(bad); err == nil {
		t.Fatal("unknown mode must be rejected")
	}

	bad = normalizeConfig(base)
	bad.Los = 3
	if err := validateConfig(bad); err == nil {
		t.Fatal("line-of-sight 3 must be rejected")
	}

	bad = normalizeConfig(base)
	bad.Multipoles = []int{0, -2}
	if err := validateConfig(bad); err == nil {
		t.Fatal("negative multipole order must be rejected")
	}

	bad = normalizeConfig(base)
	bad.Kmin = -0.1
	if err := validateConfig(bad); err == nil {
		t.Fatal("negative kmin must be rejected")
	}
}

func TestNormalizeConfigDefaults(t *testing.T) {
	cfg := normalizeConfig(Config{})

	if cfg.Mode != Mode2D {
		t.Fatalf("default mode = %q", cfg.Mode)
	}

	if cfg.Nmu != defaultNmu {
		t.Fatalf("default nmu = %d", cfg.Nmu)
	}

	if cfg.BunchSize != defaultBunchSize {
		t.Fatalf("default bunch size = %d", cfg.BunchSize)
	}
}

func TestMeasureRequiresSource(t *testing.T) {
	err := comm.Run(1, func(c *comm.Comm) error {
		_, err := Measure(c, Config{NMesh: 4}, nil, nil)

		return err
	})
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("got %v, want ErrNoSource", err)
	}
}

func TestMeasureBoxMismatch(t *testing.T) {
	a, err := catalog.NewUniform(1e-3, 64, 1)
	if err != nil {
		t.Fatal(err)
	}

	b, err := catalog.NewUniform(1e-3, 128, 1)
	if err != nil {
		t.Fatal(err)
	}

	err = comm.Run(1, func(c *comm.Comm) error {
		_, err := Measure(c, Config{Mode: Mode1D, NMesh: 4}, a, b)

		return err
	})
	if !errors.Is(err, ErrBoxMismatch) {
		t.Fatalf("got %v, want ErrBoxMismatch", err)
	}
}

// A single particle placed exactly on a grid point paints a delta;
// normalized to the mean, every mode has unit magnitude, so one wide
// k bin holding all modes but the removed zero mode averages to
// volume * 63/64 on a 4^3 mesh.
func TestMeasureSingleParticle(t *testing.T) {
	src := &testutil.StaticSource{
		BoxSize: [3]float64{4, 4, 4},
		Pos:     [][3]float64{{1, 2, 3}},
	}

	cfg := Config{
		Mode:   Mode1D,
		NMesh:  4,
		Deconv: transfer.CICNone,
		Dk:     6, // one bin covering every mode
	}

	rep := measureOnce(t, 1, cfg, src, nil)

	if rep.Pkmu == nil || rep.Pkmu.Nmu() != 1 {
		t.Fatal("1d measurement must collapse mu to one bin")
	}

	powerCol, err := rep.Pkmu.Column("power")
	if err != nil {
		t.Fatal(err)
	}

	modes, err := rep.Pkmu.Column("modes")
	if err != nil {
		t.Fatal(err)
	}

	if modes[0][0] != 64 {
		t.Fatalf("mode count = %v, want 64", modes[0][0])
	}

	testutil.RequireNear(t, powerCol[0][0], 64.0*63.0/64.0, 1e-9)

	if n1, _ := rep.Pkmu.Meta("N1"); n1.(float64) != 1 {
		t.Fatalf("N1 metadata = %v, want 1", n1)
	}

	if v, _ := rep.Pkmu.Meta("volume"); v.(float64) != 64 {
		t.Fatalf("volume metadata = %v, want 64", v)
	}
}

func TestMeasureShotNoiseSubtraction(t *testing.T) {
	src := &testutil.StaticSource{
		BoxSize: [3]float64{4, 4, 4},
		Pos:     [][3]float64{{1, 2, 3}},
	}

	cfg := Config{
		Mode:            Mode1D,
		NMesh:           4,
		Deconv:          transfer.CICNone,
		Dk:              6,
		RemoveShotNoise: true,
	}

	rep := measureOnce(t, 1, cfg, src, nil)

	// Shot noise for one particle is the full volume.
	if sn, _ := rep.Pkmu.Meta("shot_noise"); sn.(float64) != 64 {
		t.Fatalf("shot noise = %v, want 64", sn)
	}

	powerCol, err := rep.Pkmu.Column("power")
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireNear(t, powerCol[0][0], 64.0*63.0/64.0-64.0, 1e-9)
}

func TestMeasureAutoPowerNonNegative(t *testing.T) {
	src, err := catalog.NewUniform(2e-2, 32, 11)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Mode:   Mode2D,
		NMesh:  8,
		Nmu:    4,
		Deconv: transfer.CICNone,
	}

	rep := measureOnce(t, 1, cfg, src, nil)

	powerCol, err := rep.Pkmu.Column("power")
	if err != nil {
		t.Fatal(err)
	}

	for i := range rep.Pkmu.Nk() {
		for j := range rep.Pkmu.Nmu() {
			if !rep.Pkmu.IsValid(i, j) {
				continue
			}

			if powerCol[i][j] < 0 {
				t.Fatalf("auto power (%d,%d) = %v, want >= 0", i, j, powerCol[i][j])
			}
		}
	}
}

func TestMeasureCrossEqualsAutoForIdenticalCatalogs(t *testing.T) {
	pos := testutil.LatticeParticles(3, [3]float64{8, 8, 8})
	pos = append(pos, [3]float64{1.3, 2.1, 6.7})

	first := &testutil.StaticSource{BoxSize: [3]float64{8, 8, 8}, Pos: pos}
	second := &testutil.StaticSource{BoxSize: [3]float64{8, 8, 8}, Pos: pos}

	cfg := Config{Mode: Mode2D, NMesh: 4, Deconv: transfer.CICAnisotropic}

	auto := measureOnce(t, 1, cfg, first, nil)
	cross := measureOnce(t, 1, cfg, first, second)

	ap, err := auto.Pkmu.Column("power")
	if err != nil {
		t.Fatal(err)
	}

	cp, err := cross.Pkmu.Column("power")
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireGridNearlyEqual(t, cp, ap, 1e-9)
}

func TestMeasureMonopoleMatches1D(t *testing.T) {
	src := &testutil.StaticSource{
		BoxSize: [3]float64{4, 4, 4},
		Pos:     [][3]float64{{1, 2, 3}},
	}

	cfg := Config{
		NMesh:      4,
		Deconv:     transfer.CICNone,
		Dk:         6,
		Multipoles: []int{0},
	}

	rep := measureOnce(t, 1, cfg, src, nil)

	if rep.Poles == nil {
		t.Fatal("multipole request must produce poles")
	}

	if rep.Poles.Modes[0] != 64 {
		t.Fatalf("mode count = %v, want 64", rep.Poles.Modes[0])
	}

	// The monopole weights every mode by (2*0+1)*P_0(mu) = 1, so it
	// reproduces the plain 1d power.
	testutil.RequireNear(t, rep.Poles.Power[0][0], 64.0*63.0/64.0, 1e-9)
}

func TestMeasureQuadrupoleOfIsotropicField(t *testing.T) {
	src, err := catalog.NewUniform(2e-2, 32, 5)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		NMesh:      8,
		Deconv:     transfer.CICNone,
		Multipoles: []int{0, 2},
	}

	rep := measureOnce(t, 1, cfg, src, nil)

	// A statistically isotropic field has a quadrupole much smaller
	// than its monopole once averaged over many modes.
	for i := range rep.Poles.K {
		if rep.Poles.Modes[i] < 50 {
			continue
		}

		p0 := math.Abs(rep.Poles.Power[i][0])
		p2 := math.Abs(rep.Poles.Power[i][1])

		// The per-mode weight (2l+1) P_2(mu) is bounded by 5, so the
		// quadrupole of a flat spectrum can never exceed 5 P0.
		if p2 > 6*p0 {
			t.Fatalf("bin %d: |P2| = %v vastly exceeds |P0| = %v", i, p2, p0)
		}
	}
}

func TestMeasureDistributedMatchesSingleRank(t *testing.T) {
	src, err := catalog.NewUniform(1e-2, 32, 3)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Mode:      Mode2D,
		NMesh:     8,
		Nmu:       3,
		Deconv:    transfer.CICAnisotropic,
		BunchSize: 64, // force several paint rounds
	}

	single := measureOnce(t, 1, cfg, src, nil)
	multi := measureOnce(t, 3, cfg, src, nil)

	for _, name := range []string{"k", "mu", "power", "modes"} {
		a, err := single.Pkmu.Column(name)
		if err != nil {
			t.Fatal(err)
		}

		b, err := multi.Pkmu.Column(name)
		if err != nil {
			t.Fatal(err)
		}

		testutil.RequireGridNearlyEqual(t, b, a, 1e-7)
	}
}

func TestMeasureReportsIdenticalOnAllRanks(t *testing.T) {
	src := &testutil.StaticSource{
		BoxSize: [3]float64{8, 8, 8},
		Pos:     testutil.LatticeParticles(4, [3]float64{8, 8, 8}),
	}

	cfg := Config{Mode: Mode1D, NMesh: 4, Deconv: transfer.CICNone}

	var (
		mu      sync.Mutex
		reports []*pkmu.Result
	)

	err := comm.Run(2, func(c *comm.Comm) error {
		rep, err := Measure(c, cfg, src, nil)
		if err != nil {
			return err
		}

		mu.Lock()
		reports = append(reports, rep.Pkmu)
		mu.Unlock()

		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	a, err := reports[0].Column("power")
	if err != nil {
		t.Fatal(err)
	}

	b, err := reports[1].Column("power")
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireGridNearlyEqual(t, a, b, 0)
}

func TestKBinEdges(t *testing.T) {
	box := [3]float64{2 * math.Pi, 2 * math.Pi, 2 * math.Pi}

	edges := kBinEdges(Config{}, box, 8)

	// Fundamental 2*pi/L = 1, Nyquist pi*n/L = 4.
	if edges[0] != 0 {
		t.Fatalf("first edge = %v, want 0", edges[0])
	}

	testutil.RequireSliceNearlyEqual(t, edges, []float64{0, 1, 2, 3, 4}, 1e-12)

	// Explicit width and lower bound.
	edges = kBinEdges(Config{Dk: 2, Kmin: 1}, box, 8)
	testutil.RequireSliceNearlyEqual(t, edges, []float64{1, 3, 5}, 1e-12)

	// Degenerate settings still yield at least one bin.
	edges = kBinEdges(Config{Dk: 100}, box, 8)
	if len(edges) < 2 {
		t.Fatalf("edges = %v, want at least one bin", edges)
	}
}

func TestLegendre(t *testing.T) {
	cases := []struct {
		n    int
		x    float64
		want float64
	}{
		{0, 0.3, 1},
		{1, 0.3, 0.3},
		{2, 0.5, -0.125},
		{2, 1, 1},
		{3, 0.5, -0.4375},
		{4, 1, 1},
		{4, 0, 0.375},
	}

	for _, tc := range cases {
		got := legendre(tc.n, tc.x)
		if math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("P_%d(%v) = %v, want %v", tc.n, tc.x, got, tc.want)
		}
	}
}
