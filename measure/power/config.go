package power

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-cosmo/transfer"
)

const (
	defaultNmu       = 5
	defaultBunchSize = 1024 * 1024 * 4
)

var (
	// ErrBoxMismatch reports two cross-power inputs with different box
	// sizes. Detected before any computation.
	ErrBoxMismatch = errors.New("power: mismatch in box sizes for cross power measurement")

	// ErrNoSource reports a measurement without a first input.
	ErrNoSource = errors.New("power: a first input source is required")
)

// Mode selects the binning dimensionality of the output.
type Mode string

const (
	// Mode1D bins by k only; the mu dimension collapses to one bin.
	Mode1D Mode = "1d"
	// Mode2D bins the full (k, mu) grid.
	Mode2D Mode = "2d"
)

// Config holds measurement parameters. Zero values fall back to the
// defaults documented per field.
type Config struct {
	// Mode selects 1d or 2d binning. Default 2d. Ignored when
	// Multipoles is set (multipole output is a function of k alone).
	Mode Mode

	// NMesh is the mesh size per side; must be a power of two.
	NMesh int

	// Nmu is the number of mu bins. Default 5; forced to 1 in 1d mode.
	Nmu int

	// Los is the line-of-sight axis (0, 1 or 2). Default 2 (z).
	Los int

	// BinShift moves the k digitization edges by this fraction of the
	// bin width. The reported edges stay unshifted.
	BinShift float64

	// Deconv selects the cloud-in-cell deconvolution variant.
	Deconv transfer.CICMode

	// RemoveShotNoise subtracts volume/N from the auto power.
	// Ignored for cross power.
	RemoveShotNoise bool

	// Dk is the k bin width. Default: the box fundamental 2*pi/L.
	Dk float64

	// Kmin is the lower edge of the first k bin. Default 0.
	Kmin float64

	// Multipoles lists Legendre orders to project onto instead of
	// (k, mu) binning.
	Multipoles []int

	// BunchSize caps particles processed per paint round on each
	// rank. Default 4M.
	BunchSize int
}

func normalizeConfig(cfg Config) Config {
	if cfg.Mode == "" {
		cfg.Mode = Mode2D
	}

	if cfg.Nmu <= 0 {
		cfg.Nmu = defaultNmu
	}

	if cfg.BunchSize <= 0 {
		cfg.BunchSize = defaultBunchSize
	}

	return cfg
}

func validateConfig(cfg Config) error {
	if cfg.Mode != Mode1D && cfg.Mode != Mode2D {
		return fmt.Errorf("power: mode must be %q or %q: %q", Mode1D, Mode2D, cfg.Mode)
	}

	if cfg.Los < 0 || cfg.Los > 2 {
		return fmt.Errorf("power: line-of-sight axis must be 0, 1 or 2: %d", cfg.Los)
	}

	for _, ell := range cfg.Multipoles {
		if ell < 0 {
			return fmt.Errorf("power: multipole order must be >= 0: %d", ell)
		}
	}

	if cfg.Kmin < 0 {
		return fmt.Errorf("power: kmin must be >= 0: %f", cfg.Kmin)
	}

	return nil
}
