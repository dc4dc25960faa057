// Package power estimates the power spectrum P(k, mu) of a density
// field sampled on a distributed particle mesh.
//
// The pipeline per rank: paint the catalog onto the mesh, transform
// to Fourier space, run the transfer chain (DC handling plus window
// deconvolution), then bin every owned mode into (k, mu) cells or
// project onto Legendre multipoles. All cross-rank combination goes
// through collective reductions; every rank ends up with the complete
// result.
package power

import (
	"math"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-cosmo/catalog"
	"github.com/cwbudde/algo-cosmo/comm"
	"github.com/cwbudde/algo-cosmo/mesh"
	"github.com/cwbudde/algo-cosmo/pkmu"
	"github.com/cwbudde/algo-cosmo/transfer"
)

// Report is the outcome of one measurement. Exactly one of Pkmu and
// Poles is set, depending on whether multipoles were requested.
type Report struct {
	Mode  Mode
	Pkmu  *pkmu.Result
	Poles *Poles
	Meta  map[string]any
}

// Poles holds multipole coefficients as a function of k.
type Poles struct {
	KEdges []float64
	K      []float64   // mean k per bin; NaN for empty bins
	Modes  []float64   // mode count per bin
	Ells   []int       // requested orders
	Power  [][]float64 // [k bin][order]; NaN for empty bins
}

// Measure runs the full pipeline on one rank of the group. second may
// be nil (auto power) or equal to first (also auto); a distinct
// second source yields the cross power.
//
// Every rank of the group must call Measure with the same
// configuration and sources; the returned report is identical on all
// ranks.
func Measure(c *comm.Comm, cfg Config, first, second catalog.Source) (*Report, error) {
	cfg = normalizeConfig(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if first == nil {
		return nil, ErrNoSource
	}

	doCross := second != nil && second != first
	if doCross && first.Box() != second.Box() {
		return nil, ErrBoxMismatch
	}

	chain := transfer.NewChain(cfg.Deconv)

	m, err := mesh.New(first.Box(), cfg.NMesh, c)
	if err != nil {
		return nil, err
	}

	log := Logger()
	if c.Rank() != 0 {
		log = zap.NewNop()
	}

	n1, err := paintSource(m, first, cfg.BunchSize)
	if err != nil {
		return nil, err
	}

	log.Info("painting done", zap.Float64("total_weight", n1))

	f1, err := m.R2C()
	if err != nil {
		return nil, err
	}

	log.Info("r2c done")
	chain.Apply(f1)

	f2 := f1
	n2 := n1

	if doCross {
		m.Reset()

		n2, err = paintSource(m, second, cfg.BunchSize)
		if err != nil {
			return nil, err
		}

		log.Info("painting 2 done", zap.Float64("total_weight", n2))

		f2, err = m.R2C()
		if err != nil {
			return nil, err
		}

		log.Info("r2c 2 done")
		chain.Apply(f2)
	}

	shotNoise := 0.0
	if cfg.RemoveShotNoise && !doCross {
		shotNoise = m.Volume() / n1
	}

	nmu := cfg.Nmu
	if cfg.Mode == Mode1D {
		nmu = 1
	}

	box := m.Box()
	meta := map[string]any{
		"Lx":         box[0],
		"Ly":         box[1],
		"Lz":         box[2],
		"volume":     m.Volume(),
		"N1":         n1,
		"N2":         n2,
		"shot_noise": shotNoise,
	}

	kedges := kBinEdges(cfg, box, cfg.NMesh)
	meta["edges"] = kedges

	if len(cfg.Multipoles) > 0 {
		poles := binPoles(f1, f2, kedges, cfg.Multipoles, cfg.Los, cfg.BinShift)
		log.Info("measure done")

		return &Report{Mode: Mode1D, Poles: poles, Meta: meta}, nil
	}

	cols := binPkmu(f1, f2, kedges, nmu, cfg.Los, cfg.BinShift, shotNoise)
	muedges := linspace(0, 1, nmu+1)

	result, err := pkmu.New(kedges, muedges, cols, pkmu.WithMetadata(meta))
	if err != nil {
		return nil, err
	}

	log.Info("measure done")

	return &Report{Mode: cfg.Mode, Pkmu: result, Meta: meta}, nil
}

// paintSource streams the catalog onto the mesh in bunches and
// returns the total painted weight over all ranks.
//
// The bunch loop is a fixed collective schedule: the round count is
// the group-wide maximum, and ranks that run out of particles keep
// participating with empty batches.
func paintSource(m *mesh.Mesh, src catalog.Source, bunchSize int) (float64, error) {
	c := m.Comm()

	pos, weights, err := src.Particles(c.Rank(), c.Size())
	if err != nil {
		return 0, err
	}

	if weights != nil && len(weights) != len(pos) {
		return 0, mesh.ErrWeightLength
	}

	localRounds := (len(pos) + bunchSize - 1) / bunchSize
	rounds := int(c.AllReduceMaxFloat64(float64(localRounds)))

	total := 0.0
	for round := range rounds {
		lo := min(round*bunchSize, len(pos))
		hi := min(lo+bunchSize, len(pos))

		batch := pos[lo:hi]
		layout := m.Decompose(batch)

		exchanged, err := layout.ExchangePositions(batch)
		if err != nil {
			return 0, err
		}

		var w []float64
		if weights == nil {
			total += float64(len(exchanged))
		} else {
			w, err = layout.ExchangeWeights(weights[lo:hi])
			if err != nil {
				return 0, err
			}

			for _, v := range w {
				total += v
			}
		}

		if err := m.Paint(exchanged, w); err != nil {
			return 0, err
		}
	}

	return c.AllReduceFloat64(total), nil
}

// kBinEdges builds the reported k bin edges: width Dk (default the
// box fundamental) from Kmin up to the mesh Nyquist.
func kBinEdges(cfg Config, box [3]float64, nmesh int) []float64 {
	lMax := max(box[0], box[1], box[2])
	lMin := min(box[0], box[1], box[2])

	dk := cfg.Dk
	if dk <= 0 {
		dk = 2 * math.Pi / lMax
	}

	knyq := math.Pi * float64(nmesh) / lMin

	edges := []float64{cfg.Kmin}
	for e := cfg.Kmin + dk; e <= knyq+dk/2; e += dk {
		edges = append(edges, e)
	}

	if len(edges) < 2 {
		edges = append(edges, cfg.Kmin+dk)
	}

	return edges
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}

	return out
}
