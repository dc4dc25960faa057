// Package store writes measurement reports as plain-text column
// tables. Metadata goes first as "# key: value" comment lines, then a
// commented column header, then one row per bin. Masked bins print as
// "nan".
package store

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/algo-cosmo/measure/power"
	"github.com/cwbudde/algo-cosmo/pkmu"
)

// ErrEmptyReport reports a nil report or one carrying no result.
var ErrEmptyReport = errors.New("store: report carries no result")

// Write renders a report to w. The layout follows the report: k-only
// tables for 1d and multipole measurements, the flattened (k, mu)
// grid for 2d.
func Write(w io.Writer, rep *power.Report) error {
	if rep == nil {
		return ErrEmptyReport
	}

	switch {
	case rep.Poles != nil:
		return writePoles(w, rep)
	case rep.Pkmu != nil && rep.Mode == power.Mode1D:
		return write1D(w, rep)
	case rep.Pkmu != nil:
		return write2D(w, rep)
	}

	return ErrEmptyReport
}

func writeMeta(w io.Writer, meta map[string]any) error {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "# %s: %s\n", k, formatMetaValue(meta[k])); err != nil {
			return err
		}
	}

	return nil
}

func formatMetaValue(v any) string {
	switch v := v.(type) {
	case float64:
		return fmt.Sprintf("%g", v)
	case []float64:
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = fmt.Sprintf("%g", x)
		}

		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(v)
	}
}

func write1D(w io.Writer, rep *power.Report) error {
	if err := writeMeta(w, rep.Meta); err != nil {
		return err
	}

	r := rep.Pkmu

	k, p, modes, err := resultColumns(r)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "# k\tpower\tmodes\n"); err != nil {
		return err
	}

	for i := range r.Nk() {
		if _, err := fmt.Fprintf(tw, "%g\t%g\t%g\n", k[i][0], p[i][0], modes[i][0]); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func write2D(w io.Writer, rep *power.Report) error {
	if err := writeMeta(w, rep.Meta); err != nil {
		return err
	}

	r := rep.Pkmu

	k, p, modes, err := resultColumns(r)
	if err != nil {
		return err
	}

	mu, err := r.Column("mu")
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "# k\tmu\tpower\tmodes\n"); err != nil {
		return err
	}

	for i := range r.Nk() {
		for j := range r.Nmu() {
			if _, err := fmt.Fprintf(tw, "%g\t%g\t%g\t%g\n",
				k[i][j], mu[i][j], p[i][j], modes[i][j]); err != nil {
				return err
			}
		}
	}

	return tw.Flush()
}

func resultColumns(r *pkmu.Result) (k, p, modes [][]float64, err error) {
	if k, err = r.Column("k"); err != nil {
		return nil, nil, nil, err
	}

	if p, err = r.Column("power"); err != nil {
		return nil, nil, nil, err
	}

	if modes, err = r.Column("modes"); err != nil {
		return nil, nil, nil, err
	}

	return k, p, modes, nil
}

func writePoles(w io.Writer, rep *power.Report) error {
	if err := writeMeta(w, rep.Meta); err != nil {
		return err
	}

	poles := rep.Poles

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := "# k"
	for _, ell := range poles.Ells {
		header += fmt.Sprintf("\tpower_%d", ell)
	}

	if _, err := fmt.Fprintf(tw, "%s\tmodes\n", header); err != nil {
		return err
	}

	for i, kk := range poles.K {
		row := fmt.Sprintf("%g", kk)
		for li := range poles.Ells {
			row += fmt.Sprintf("\t%g", poles.Power[i][li])
		}

		if _, err := fmt.Fprintf(tw, "%s\t%g\n", row, poles.Modes[i]); err != nil {
			return err
		}
	}

	return tw.Flush()
}
