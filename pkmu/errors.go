package pkmu

import "errors"

var (
	// ErrEdges reports bin edges that are not strictly increasing or
	// have fewer than two entries.
	ErrEdges = errors.New("pkmu: bin edges must be strictly increasing with at least two entries")

	// ErrNoColumns reports a construction attempt without data columns.
	ErrNoColumns = errors.New("pkmu: at least one data column is required")

	// ErrShape reports a column or weight grid whose shape does not
	// match the bin grid.
	ErrShape = errors.New("pkmu: grid shape must match (Nk, Nmu)")

	// ErrUnknownColumn reports a column name that does not exist.
	ErrUnknownColumn = errors.New("pkmu: no such column")

	// ErrNoExactMatch reports a bin-center lookup value with no exact
	// match while nearest matching is disabled.
	ErrNoExactMatch = errors.New("pkmu: no bin center matches value exactly")

	// ErrIndexRange reports a bin index outside the grid.
	ErrIndexRange = errors.New("pkmu: bin index out of range")

	// ErrTooManyBins reports a rebin target that does not strictly
	// reduce the bin count on its axis.
	ErrTooManyBins = errors.New("pkmu: rebinning requires strictly fewer bins")

	// ErrOpenRef reports an Open reference used where a single bin is
	// required.
	ErrOpenRef = errors.New("pkmu: open reference is only valid as a slice bound")
)
