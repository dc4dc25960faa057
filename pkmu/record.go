package pkmu

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// Reserved field names of the serialized record; metadata keys must
// not collide with them.
var reservedRecordKeys = map[string]bool{
	"columns":           true,
	"kedges":            true,
	"muedges":           true,
	"force_index_match": true,
	"valid":             true,
	"data":              true,
	"metadata_keys":     true,
}

// Encode writes the result as a single JSON record: data, columns,
// edges, the matching policy, the validity grid, and every metadata
// value as a top-level field listed under "metadata_keys". Invalid
// cells are stored as zero and restored from the validity grid, since
// non-finite values have no JSON representation.
func (r *Result) Encode(w io.Writer) error {
	record := map[string]any{
		"columns":           r.names,
		"kedges":            r.kedges,
		"muedges":           r.muedges,
		"force_index_match": r.forceIndexMatch,
		"valid":             r.valid,
	}

	data := make(map[string][][]float64, len(r.names))
	for _, name := range r.names {
		grid := make([][]float64, r.Nk())
		for i := range grid {
			row := append([]float64(nil), r.columns[name][i]...)
			for j := range row {
				if !r.valid[i][j] {
					row[j] = 0
				}
			}

			grid[i] = row
		}

		data[name] = grid
	}

	record["data"] = data

	metaKeys := make([]string, 0, len(r.meta))
	for k, v := range r.meta {
		if reservedRecordKeys[k] {
			return fmt.Errorf("pkmu: metadata key %q collides with a record field", k)
		}

		metaKeys = append(metaKeys, k)
		record[k] = v
	}

	record["metadata_keys"] = metaKeys

	return json.NewEncoder(w).Encode(record)
}

// Decode reconstructs a Result from a record written by Encode.
func Decode(rd io.Reader) (*Result, error) {
	var raw struct {
		Columns         []string               `json:"columns"`
		KEdges          []float64              `json:"kedges"`
		MuEdges         []float64              `json:"muedges"`
		ForceIndexMatch bool                   `json:"force_index_match"`
		Valid           [][]bool               `json:"valid"`
		Data            map[string][][]float64 `json:"data"`
		MetaKeys        []string               `json:"metadata_keys"`
	}

	payload, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("pkmu: reading record: %w", err)
	}

	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("pkmu: decoding record: %w", err)
	}

	// Restore masking: invalid cells were flattened to zero on encode.
	for _, name := range raw.Columns {
		grid, ok := raw.Data[name]
		if !ok {
			return nil, fmt.Errorf("%w: record lists column %q without data", ErrUnknownColumn, name)
		}

		for i := range grid {
			if i >= len(raw.Valid) {
				break
			}

			for j := range grid[i] {
				if j < len(raw.Valid[i]) && !raw.Valid[i][j] {
					grid[i][j] = math.NaN()
				}
			}
		}
	}

	var opts []Option
	if raw.ForceIndexMatch {
		opts = append(opts, WithForceIndexMatch())
	}

	if len(raw.MetaKeys) > 0 {
		var top map[string]any
		if err := json.Unmarshal(payload, &top); err != nil {
			return nil, fmt.Errorf("pkmu: decoding record metadata: %w", err)
		}

		meta := make(map[string]any, len(raw.MetaKeys))
		for _, key := range raw.MetaKeys {
			meta[key] = coerceMetaValue(top[key])
		}

		opts = append(opts, WithMetadata(meta))
	}

	return New(raw.KEdges, raw.MuEdges, raw.Data, opts...)
}

// coerceMetaValue narrows decoded JSON values to the supported
// metadata kinds: numeric arrays come back as []float64.
func coerceMetaValue(v any) any {
	arr, ok := v.([]any)
	if !ok {
		return v
	}

	out := make([]float64, len(arr))
	for i, e := range arr {
		f, ok := e.(float64)
		if !ok {
			return v
		}

		out[i] = f
	}

	return out
}
