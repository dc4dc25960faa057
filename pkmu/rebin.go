package pkmu

import (
	"fmt"
	"sort"
)

// Bins describes a rebin target: either an equal-width bin count over
// the original extent, or an explicit edge sequence.
type Bins struct {
	count int
	edges []float64
}

// BinCount targets n equal-width bins spanning the original edges.
func BinCount(n int) Bins { return Bins{count: n} }

// BinEdges targets the given edge sequence directly.
func BinEdges(edges []float64) Bins {
	return Bins{count: -1, edges: append([]float64(nil), edges...)}
}

// RebinOption configures a rebin call.
type RebinOption func(*rebinOptions)

type rebinOptions struct {
	weightName string
	weights    [][]float64
}

// WithWeightColumn weights cells by an existing data column.
func WithWeightColumn(name string) RebinOption {
	return func(o *rebinOptions) {
		o.weightName = name
		o.weights = nil
	}
}

// WithWeights weights cells by an explicit grid of the original
// (Nk, Nmu) shape.
func WithWeights(w [][]float64) RebinOption {
	return func(o *rebinOptions) {
		o.weights = w
		o.weightName = ""
	}
}

// RebinK coarsens the k axis onto strictly fewer bins, averaging cell
// contents with count weighting, and returns a new Result. Invalid
// cells contribute neither value nor weight; a new bin fed only by
// invalid cells is itself invalid.
func (r *Result) RebinK(bins Bins, opts ...RebinOption) (*Result, error) {
	return r.rebin(AxisK, bins, opts)
}

// RebinMu coarsens the mu axis; see RebinK.
func (r *Result) RebinMu(bins Bins, opts ...RebinOption) (*Result, error) {
	return r.rebin(AxisMu, bins, opts)
}

func (r *Result) rebin(ax Axis, bins Bins, opts []RebinOption) (*Result, error) {
	oldEdges := r.kedges
	if ax == AxisMu {
		oldEdges = r.muedges
	}

	nOld := len(oldEdges) - 1

	newEdges, err := targetEdges(bins, oldEdges, nOld)
	if err != nil {
		return nil, err
	}

	weights, err := r.resolveWeights(opts)
	if err != nil {
		return nil, err
	}

	kedges, muedges := r.kedges, r.muedges
	if ax == AxisK {
		kedges = newEdges
	} else {
		muedges = newEdges
	}

	// Classify every original bin center into the new layout. The
	// below-range and at-or-above-range sentinel buckets keep the
	// combined index dense; they are stripped at the end.
	digK := digitize(centers(r.kedges), kedges)
	digMu := digitize(centers(r.muedges), muedges)

	nkB := len(kedges) + 1
	nmuB := len(muedges) + 1

	data := make(map[string][][]float64, len(r.names))
	vsum := make([]float64, nkB*nmuB)
	wsum := make([]float64, nkB*nmuB)

	for _, name := range r.names {
		clear(vsum)
		clear(wsum)

		col := r.columns[name]
		for i := range r.Nk() {
			for j := range r.Nmu() {
				if !r.valid[i][j] {
					continue
				}

				ci := digK[i]*nmuB + digMu[j]
				w := weights[i][j]
				wsum[ci] += w
				vsum[ci] += col[i][j] * w
			}
		}

		grid := make([][]float64, len(kedges)-1)
		for bi := range grid {
			row := make([]float64, len(muedges)-1)
			for bj := range row {
				ci := (bi+1)*nmuB + (bj + 1)
				// 0/0 marks a bin without valid contributions; the
				// non-finite value becomes the invalid flag below.
				row[bj] = vsum[ci] / wsum[ci]
			}

			grid[bi] = row
		}

		data[name] = grid
	}

	return New(kedges, muedges, data, r.carryOptions()...)
}

// targetEdges materializes the new edge sequence and enforces the
// strict reduction requirement.
func targetEdges(bins Bins, oldEdges []float64, nOld int) ([]float64, error) {
	if bins.edges == nil {
		if bins.count < 1 {
			return nil, fmt.Errorf("pkmu: rebin bin count must be >= 1: %d", bins.count)
		}

		if bins.count >= nOld {
			return nil, fmt.Errorf("%w: %d requested, %d present", ErrTooManyBins, bins.count, nOld)
		}

		lo, hi := oldEdges[0], oldEdges[len(oldEdges)-1]
		edges := make([]float64, bins.count+1)
		for i := range edges {
			edges[i] = lo + (hi-lo)*float64(i)/float64(bins.count)
		}

		return edges, nil
	}

	if len(bins.edges)-1 >= nOld {
		return nil, fmt.Errorf("%w: %d requested, %d present", ErrTooManyBins, len(bins.edges)-1, nOld)
	}

	if err := validateEdges(bins.edges); err != nil {
		return nil, err
	}

	return append([]float64(nil), bins.edges...), nil
}

// resolveWeights materializes the weight grid before any accumulation
// happens, so option errors leave nothing half-built.
func (r *Result) resolveWeights(opts []RebinOption) ([][]float64, error) {
	var o rebinOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	switch {
	case o.weightName != "":
		grid, ok := r.columns[o.weightName]
		if !ok {
			return nil, fmt.Errorf("%w: cannot weight by %q", ErrUnknownColumn, o.weightName)
		}

		return grid, nil

	case o.weights != nil:
		if len(o.weights) != r.Nk() {
			return nil, fmt.Errorf("%w: weights have %d rows, want %d", ErrShape, len(o.weights), r.Nk())
		}

		for i, row := range o.weights {
			if len(row) != r.Nmu() {
				return nil, fmt.Errorf("%w: weights row %d has %d entries, want %d",
					ErrShape, i, len(row), r.Nmu())
			}
		}

		return o.weights, nil

	default:
		uniform := make([][]float64, r.Nk())
		for i := range uniform {
			row := make([]float64, r.Nmu())
			for j := range row {
				row[j] = 1
			}

			uniform[i] = row
		}

		return uniform, nil
	}
}

// digitize assigns each value the bucket b such that
// edges[b-1] <= v < edges[b]. Values below the first edge land in
// bucket 0, values at or above the last edge land in bucket
// len(edges).
func digitize(values, edges []float64) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = sort.Search(len(edges), func(j int) bool { return edges[j] > v })
	}

	return out
}
