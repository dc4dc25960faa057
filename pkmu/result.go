package pkmu

import (
	"fmt"
	"math"
	"sort"
)

// Result is a binned P(k, mu) measurement: named column grids over a
// fixed (Nk, Nmu) bin layout, an explicit validity grid, and optional
// metadata. The shape is immutable; cell contents may be updated
// through the live grids returned by Column.
type Result struct {
	kedges  []float64
	muedges []float64

	names   []string
	columns map[string][][]float64
	valid   [][]bool

	forceIndexMatch bool
	meta            map[string]any
}

// Option configures Result construction.
type Option func(*options)

type options struct {
	forceIndexMatch bool
	meta            map[string]any
}

// WithForceIndexMatch makes bin-center lookups resolve to the nearest
// center instead of requiring an exact value match.
func WithForceIndexMatch() Option {
	return func(o *options) { o.forceIndexMatch = true }
}

// WithMetadata attaches scalar or array attributes to the result.
// Values are carried, never interpreted. Supported kinds for the
// serialized record are float64, []float64, bool and string.
func WithMetadata(meta map[string]any) Option {
	return func(o *options) {
		if o.meta == nil {
			o.meta = make(map[string]any, len(meta))
		}

		for k, v := range meta {
			o.meta[k] = v
		}
	}
}

// New builds a Result from bin edges and a mapping of column name to
// (Nk, Nmu) grid. Grids are deep-copied. A cell is marked invalid when
// any column holds a non-finite value there. Construction either fully
// succeeds or returns an error with nothing built.
func New(kedges, muedges []float64, data map[string][][]float64, opts ...Option) (*Result, error) {
	if err := validateEdges(kedges); err != nil {
		return nil, err
	}

	if err := validateEdges(muedges); err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, ErrNoColumns
	}

	nk := len(kedges) - 1
	nmu := len(muedges) - 1

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}

	sort.Strings(names)

	columns := make(map[string][][]float64, len(data))
	for _, name := range names {
		grid := data[name]
		if len(grid) != nk {
			return nil, fmt.Errorf("%w: column %q has %d rows, want %d", ErrShape, name, len(grid), nk)
		}

		dup := make([][]float64, nk)
		for i, row := range grid {
			if len(row) != nmu {
				return nil, fmt.Errorf("%w: column %q row %d has %d entries, want %d",
					ErrShape, name, i, len(row), nmu)
			}

			dup[i] = append([]float64(nil), row...)
		}

		columns[name] = dup
	}

	valid := make([][]bool, nk)
	for i := range valid {
		valid[i] = make([]bool, nmu)
		for j := range valid[i] {
			ok := true
			for _, name := range names {
				v := columns[name][i][j]
				if math.IsNaN(v) || math.IsInf(v, 0) {
					ok = false

					break
				}
			}

			valid[i][j] = ok
		}
	}

	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return &Result{
		kedges:          append([]float64(nil), kedges...),
		muedges:         append([]float64(nil), muedges...),
		names:           names,
		columns:         columns,
		valid:           valid,
		forceIndexMatch: o.forceIndexMatch,
		meta:            o.meta,
	}, nil
}

func validateEdges(edges []float64) error {
	if len(edges) < 2 {
		return ErrEdges
	}

	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return fmt.Errorf("%w: edge %d (%v) not above edge %d (%v)",
				ErrEdges, i, edges[i], i-1, edges[i-1])
		}
	}

	return nil
}

// Nk returns the number of k bins.
func (r *Result) Nk() int { return len(r.kedges) - 1 }

// Nmu returns the number of mu bins.
func (r *Result) Nmu() int { return len(r.muedges) - 1 }

// KEdges returns a copy of the k bin edges.
func (r *Result) KEdges() []float64 { return append([]float64(nil), r.kedges...) }

// MuEdges returns a copy of the mu bin edges.
func (r *Result) MuEdges() []float64 { return append([]float64(nil), r.muedges...) }

// KCenters returns the k bin centers, recomputed from the edges.
func (r *Result) KCenters() []float64 { return centers(r.kedges) }

// MuCenters returns the mu bin centers, recomputed from the edges.
func (r *Result) MuCenters() []float64 { return centers(r.muedges) }

func centers(edges []float64) []float64 {
	out := make([]float64, len(edges)-1)
	for i := range out {
		out[i] = 0.5 * (edges[i] + edges[i+1])
	}

	return out
}

// Columns returns the column names in sorted order.
func (r *Result) Columns() []string { return append([]string(nil), r.names...) }

// Column returns the named grid. The grid is live: writing through it
// updates the result's contents (the shape and the validity grid are
// fixed at construction).
func (r *Result) Column(name string) ([][]float64, error) {
	grid, ok := r.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}

	return grid, nil
}

// IsValid reports whether the cell at bin indices (i, j) holds valid
// data.
func (r *Result) IsValid(i, j int) bool {
	if i < 0 || i >= r.Nk() || j < 0 || j >= r.Nmu() {
		return false
	}

	return r.valid[i][j]
}

// ValidCount returns the number of valid cells.
func (r *Result) ValidCount() int {
	n := 0
	for _, row := range r.valid {
		for _, ok := range row {
			if ok {
				n++
			}
		}
	}

	return n
}

// ForceIndexMatch reports whether bin-center lookups resolve to the
// nearest center.
func (r *Result) ForceIndexMatch() bool { return r.forceIndexMatch }

// Metadata returns the attached metadata mapping, or nil.
func (r *Result) Metadata() map[string]any { return r.meta }

// Meta returns one metadata value.
func (r *Result) Meta(key string) (any, bool) {
	v, ok := r.meta[key]

	return v, ok
}
