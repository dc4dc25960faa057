package pkmu

import (
	"fmt"
	"math"
)

// Axis selects the k or mu dimension of a Result.
type Axis int

const (
	// AxisK is the wavenumber dimension.
	AxisK Axis = iota
	// AxisMu is the line-of-sight angle dimension.
	AxisMu
)

func (a Axis) valid() bool { return a == AxisK || a == AxisMu }

type refKind int

const (
	refOpen refKind = iota
	refBin
	refCenter
)

// BinRef addresses one bin on an axis: either a raw index, a
// bin-center value to be resolved, or an open slice bound. A single
// resolution routine interprets the tag.
type BinRef struct {
	kind  refKind
	index int
	value float64
}

// Bin references a bin by raw index.
func Bin(i int) BinRef { return BinRef{kind: refBin, index: i} }

// Center references a bin by its center value. Resolution follows the
// result's matching policy: exact match required unless the result
// was built with WithForceIndexMatch.
func Center(v float64) BinRef { return BinRef{kind: refCenter, value: v} }

// Open is an unbounded slice endpoint for Slice.
func Open() BinRef { return BinRef{kind: refOpen} }

// resolve maps a BinRef to a bin index on the given axis.
func (r *Result) resolve(ax Axis, ref BinRef) (int, error) {
	n := r.Nk()
	if ax == AxisMu {
		n = r.Nmu()
	}

	switch ref.kind {
	case refBin:
		if ref.index < 0 || ref.index >= n {
			return 0, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexRange, ref.index, n)
		}

		return ref.index, nil

	case refCenter:
		cs := r.KCenters()
		if ax == AxisMu {
			cs = r.MuCenters()
		}

		if r.forceIndexMatch {
			best := 0
			bestDiff := math.Inf(1)
			for i, c := range cs {
				if d := math.Abs(c - ref.value); d < bestDiff {
					bestDiff = d
					best = i
				}
			}

			return best, nil
		}

		for i, c := range cs {
			if c == ref.value {
				return i, nil
			}
		}

		return 0, fmt.Errorf("%w: %v", ErrNoExactMatch, ref.value)

	default:
		return 0, ErrOpenRef
	}
}

// resolveBound resolves a slice bound: Open maps to the fallback,
// anything else resolves like a point reference.
func (r *Result) resolveBound(ax Axis, ref BinRef, open int) (int, error) {
	if ref.kind == refOpen {
		return open, nil
	}

	return r.resolve(ax, ref)
}

// Cell is one bin's worth of data.
type Cell struct {
	K      float64 // k bin center
	Mu     float64 // mu bin center
	Valid  bool
	Values map[string]float64 // column name -> value; NaN when invalid
}

// At returns the cell addressed by the two bin references.
func (r *Result) At(k, mu BinRef) (Cell, error) {
	i, err := r.resolve(AxisK, k)
	if err != nil {
		return Cell{}, err
	}

	j, err := r.resolve(AxisMu, mu)
	if err != nil {
		return Cell{}, err
	}

	values := make(map[string]float64, len(r.names))
	for _, name := range r.names {
		values[name] = r.columns[name][i][j]
	}

	return Cell{
		K:      r.KCenters()[i],
		Mu:     r.MuCenters()[j],
		Valid:  r.valid[i][j],
		Values: values,
	}, nil
}

// Profile is a one-dimensional cut through the grid.
type Profile struct {
	Centers []float64            // bin centers along the free axis
	Valid   []bool               // per-bin validity
	Columns map[string][]float64 // column name -> values along the cut
}

// Pk returns the P(k) cut at a fixed mu bin.
func (r *Result) Pk(mu BinRef) (*Profile, error) {
	j, err := r.resolve(AxisMu, mu)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		Centers: r.KCenters(),
		Valid:   make([]bool, r.Nk()),
		Columns: make(map[string][]float64, len(r.names)),
	}

	for i := range p.Valid {
		p.Valid[i] = r.valid[i][j]
	}

	for _, name := range r.names {
		col := make([]float64, r.Nk())
		for i := range col {
			col[i] = r.columns[name][i][j]
		}

		p.Columns[name] = col
	}

	return p, nil
}

// Pmu returns the P(mu) cut at a fixed k bin.
func (r *Result) Pmu(k BinRef) (*Profile, error) {
	i, err := r.resolve(AxisK, k)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		Centers: r.MuCenters(),
		Valid:   append([]bool(nil), r.valid[i]...),
		Columns: make(map[string][]float64, len(r.names)),
	}

	for _, name := range r.names {
		p.Columns[name] = append([]float64(nil), r.columns[name][i]...)
	}

	return p, nil
}

// Slice returns a new Result restricted to the half-open bin ranges
// [kStart, kStop) x [muStart, muStop). Bounds resolve like point
// references; Open leaves an endpoint unbounded. Metadata and the
// matching policy carry over.
func (r *Result) Slice(kStart, kStop, muStart, muStop BinRef) (*Result, error) {
	i0, err := r.resolveBound(AxisK, kStart, 0)
	if err != nil {
		return nil, err
	}

	i1, err := r.resolveBound(AxisK, kStop, r.Nk())
	if err != nil {
		return nil, err
	}

	j0, err := r.resolveBound(AxisMu, muStart, 0)
	if err != nil {
		return nil, err
	}

	j1, err := r.resolveBound(AxisMu, muStop, r.Nmu())
	if err != nil {
		return nil, err
	}

	if i0 >= i1 || j0 >= j1 {
		return nil, fmt.Errorf("%w: empty slice [%d,%d)x[%d,%d)", ErrIndexRange, i0, i1, j0, j1)
	}

	data := make(map[string][][]float64, len(r.names))
	for _, name := range r.names {
		grid := make([][]float64, i1-i0)
		for i := range grid {
			grid[i] = append([]float64(nil), r.columns[name][i0+i][j0:j1]...)
		}

		data[name] = grid
	}

	opts := r.carryOptions()

	return New(r.kedges[i0:i1+1], r.muedges[j0:j1+1], data, opts...)
}

// NearestBinCenter returns the bin center on the given axis closest
// to val, regardless of the matching policy.
func (r *Result) NearestBinCenter(ax Axis, val float64) (float64, error) {
	if !ax.valid() {
		return 0, fmt.Errorf("pkmu: invalid axis %d", ax)
	}

	cs := r.KCenters()
	if ax == AxisMu {
		cs = r.MuCenters()
	}

	best := cs[0]
	bestDiff := math.Abs(cs[0] - val)
	for _, c := range cs[1:] {
		if d := math.Abs(c - val); d < bestDiff {
			bestDiff = d
			best = c
		}
	}

	return best, nil
}

// carryOptions rebuilds the construction options that propagate to
// derived results.
func (r *Result) carryOptions() []Option {
	var opts []Option
	if r.forceIndexMatch {
		opts = append(opts, WithForceIndexMatch())
	}

	if r.meta != nil {
		opts = append(opts, WithMetadata(r.meta))
	}

	return opts
}
