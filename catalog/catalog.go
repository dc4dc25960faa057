// Package catalog supplies particle sources for the power spectrum
// pipeline. Sources hand each rank its share of particle positions
// and optional weights; reading files is out of scope, so the package
// provides synthetic catalogs addressed by descriptor strings.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

// ErrDescriptor reports an unparseable source descriptor.
var ErrDescriptor = errors.New("catalog: invalid source descriptor")

// Source yields particles for one rank of the group.
type Source interface {
	// Box returns the periodic box dimensions the particles live in.
	Box() [3]float64

	// Particles returns this rank's positions and per-particle
	// weights. A nil weight slice means unit mass throughout.
	Particles(rank, size int) (pos [][3]float64, weights []float64, err error)
}

// Uniform is a Poisson catalog: particles drawn uniformly inside the
// box at a given mean number density, deterministic per seed and rank.
type Uniform struct {
	nbar float64
	box  [3]float64
	seed uint64
}

// NewUniform creates a uniform catalog with number density nbar in a
// cubic box of the given side length.
func NewUniform(nbar, boxSide float64, seed uint64) (*Uniform, error) {
	if nbar <= 0 {
		return nil, fmt.Errorf("catalog: number density must be > 0: %g", nbar)
	}

	if boxSide <= 0 {
		return nil, fmt.Errorf("catalog: box side must be > 0: %g", boxSide)
	}

	return &Uniform{
		nbar: nbar,
		box:  [3]float64{boxSide, boxSide, boxSide},
		seed: seed,
	}, nil
}

// Box returns the box dimensions.
func (u *Uniform) Box() [3]float64 { return u.box }

// Particles draws this rank's share of the catalog. The total count
// is nbar times the box volume, split evenly across ranks; each rank
// draws from its own deterministic stream.
func (u *Uniform) Particles(rank, size int) ([][3]float64, []float64, error) {
	if size <= 0 || rank < 0 || rank >= size {
		return nil, nil, fmt.Errorf("catalog: rank %d out of range [0,%d)", rank, size)
	}

	total := int(math.Round(u.nbar * u.box[0] * u.box[1] * u.box[2]))
	lo := total * rank / size
	hi := total * (rank + 1) / size

	rng := rand.New(rand.NewPCG(u.seed, uint64(rank)))

	pos := make([][3]float64, 0, hi-lo)
	for range hi - lo {
		pos = append(pos, [3]float64{
			rng.Float64() * u.box[0],
			rng.Float64() * u.box[1],
			rng.Float64() * u.box[2],
		})
	}

	return pos, nil, nil
}

// Parse builds a source from a descriptor string such as
//
//	uniform:nbar=3e-3,box=512,seed=42
func Parse(desc string) (Source, error) {
	kind, rest, _ := strings.Cut(desc, ":")
	if kind != "uniform" {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrDescriptor, kind)
	}

	nbar := 0.0
	boxSide := 0.0
	seed := uint64(0)

	if rest != "" {
		for part := range strings.SplitSeq(rest, ",") {
			key, val, ok := strings.Cut(part, "=")
			if !ok {
				return nil, fmt.Errorf("%w: malformed parameter %q", ErrDescriptor, part)
			}

			switch key {
			case "nbar":
				f, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: nbar: %v", ErrDescriptor, err)
				}

				nbar = f
			case "box":
				f, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: box: %v", ErrDescriptor, err)
				}

				boxSide = f
			case "seed":
				s, err := strconv.ParseUint(val, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: seed: %v", ErrDescriptor, err)
				}

				seed = s
			default:
				return nil, fmt.Errorf("%w: unknown parameter %q", ErrDescriptor, key)
			}
		}
	}

	return NewUniform(nbar, boxSide, seed)
}
