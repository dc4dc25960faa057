// Command pkpower measures the power spectrum of synthetic particle
// catalogs on a distributed mesh.
//
// Usage:
//
//	pkpower [flags] mode nmesh output source [source2]
//
// mode is "1d" or "2d", nmesh the mesh size per side (power of two),
// output a file path or "-" for stdout, and source a catalog
// descriptor such as "uniform:nbar=3e-3,box=512,seed=42". A second
// source yields the cross power.
//
// Examples:
//
//	pkpower 1d 64 - uniform:nbar=3e-3,box=512,seed=42
//	pkpower -remove-shotnoise 2d 128 pkmu.txt uniform:nbar=1e-3,box=1024
//	pkpower -l 0 -l 2 -l 4 1d 64 poles.txt uniform:nbar=3e-3,box=512
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-cosmo/catalog"
	"github.com/cwbudde/algo-cosmo/comm"
	"github.com/cwbudde/algo-cosmo/measure/power"
	"github.com/cwbudde/algo-cosmo/store"
	"github.com/cwbudde/algo-cosmo/transfer"
)

func main() {
	binShift := flag.Float64("binshift", 0, "shift the k digitization edges by this fraction of the bin width")
	removeCIC := flag.String("remove-cic", "anisotropic", "cloud-in-cell deconvolution: anisotropic, isotropic or none")
	removeShot := flag.Bool("remove-shotnoise", false, "subtract volume/N shot noise from the auto power")
	nmu := flag.Int("nmu", 5, "number of mu bins (2d mode)")
	los := flag.Int("los", 2, "line-of-sight axis (0, 1 or 2)")
	dk := flag.Float64("dk", 0, "k bin width; 0 means the box fundamental 2*pi/L")
	kmin := flag.Float64("kmin", 0, "lower edge of the first k bin")
	np := flag.Int("np", runtime.GOMAXPROCS(0), "number of ranks")
	bunchSize := flag.Int("bunchsize", 0, "particles painted per round on each rank; 0 means the default")
	verbose := flag.Bool("v", false, "log pipeline progress to stderr")

	var poles []int
	flag.Func("l", "multipole order to project onto (repeatable); implies k-only output", func(s string) error {
		ell, err := strconv.Atoi(s)
		if err != nil {
			return err
		}

		poles = append(poles, ell)

		return nil
	})

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pkpower [flags] mode nmesh output source [source2]\n\n")
		fmt.Fprintf(os.Stderr, "Measures the power spectrum of a particle catalog.\n")
		fmt.Fprintf(os.Stderr, "mode is 1d or 2d; output may be - for stdout.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pkpower 1d 64 - uniform:nbar=3e-3,box=512,seed=42\n")
		fmt.Fprintf(os.Stderr, "  pkpower -l 0 -l 2 1d 64 poles.txt uniform:nbar=3e-3,box=512\n")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 4 || len(args) > 5 {
		flag.Usage()
		os.Exit(2)
	}

	nmesh, err := strconv.Atoi(args[1])
	if err != nil {
		fatalf("invalid nmesh %q: %v", args[1], err)
	}

	first, err := catalog.Parse(args[3])
	if err != nil {
		fatalf("%v", err)
	}

	var second catalog.Source
	if len(args) == 5 {
		second, err = catalog.Parse(args[4])
		if err != nil {
			fatalf("%v", err)
		}
	}

	deconv, err := transfer.ParseCICMode(*removeCIC)
	if err != nil {
		fatalf("%v", err)
	}

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fatalf("logger: %v", err)
		}
		defer func() { _ = log.Sync() }()

		power.SetLogger(log)
	}

	cfg := power.Config{
		Mode:            power.Mode(args[0]),
		NMesh:           nmesh,
		Nmu:             *nmu,
		Los:             *los,
		BinShift:        *binShift,
		Deconv:          deconv,
		RemoveShotNoise: *removeShot,
		Dk:              *dk,
		Kmin:            *kmin,
		Multipoles:      poles,
		BunchSize:       *bunchSize,
	}

	var report *power.Report

	err = comm.Run(*np, func(c *comm.Comm) error {
		rep, err := power.Measure(c, cfg, first, second)
		if err != nil {
			return err
		}

		if c.Rank() == 0 {
			report = rep
		}

		return nil
	})
	if err != nil {
		fatalf("%v", err)
	}

	out := os.Stdout
	if args[2] != "-" {
		f, err := os.Create(args[2])
		if err != nil {
			fatalf("%v", err)
		}
		defer func() { _ = f.Close() }()

		out = f
	}

	if err := store.Write(out, report); err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
