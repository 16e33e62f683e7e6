// Command pfsim drives particle filters against synthetic observations with
// known ground truth and reports how fast each axis converges.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/banshee-data/particle.refine/internal/config"
	"github.com/banshee-data/particle.refine/internal/monitoring"
	"github.com/banshee-data/particle.refine/internal/particle"
	"github.com/banshee-data/particle.refine/internal/version"
)

// Config holds the command-line configuration of one simulation run.
type Config struct {
	ConfigPath   string
	Mode         string
	Symmetry     string
	Observations int
	Rounds       int
	NC, NR       int
	NT, ND       int
	TransS       float64
	Seed         uint64
	Workers      int
	DBPath       string
	PNGDir       string
	HTMLPath     string
	DumpDir      string
	Debug        bool
	ShowVersion  bool
}

func main() {
	cfg := parseFlags(os.Args[1:])
	if cfg.ShowVersion {
		fmt.Println(version.String("pfsim"))
		return
	}
	monitoring.SetDebug(cfg.Debug)

	tuning, err := loadTuning(cfg.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := Run(ctx, cfg, tuning)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
	printResults(os.Stdout, res)
}

func parseFlags(args []string) Config {
	cfg := Config{}
	fs := flag.NewFlagSet("pfsim", flag.ExitOnError)

	fs.StringVar(&cfg.ConfigPath, "config", "", "Path to tuning JSON (defaults built in when empty)")
	fs.StringVar(&cfg.Mode, "mode", "3d", "Rotation mode: 2d or 3d")
	fs.StringVar(&cfg.Symmetry, "sym", "", "Point group for 3D runs (e.g. C1, C4, D3, T, O, I)")
	fs.IntVar(&cfg.Observations, "observations", 8, "Number of synthetic observations")
	fs.IntVar(&cfg.Rounds, "rounds", 25, "Refinement rounds per observation")
	fs.IntVar(&cfg.NC, "nc", 1, "Number of classes")
	fs.IntVar(&cfg.NR, "nr", 500, "Rotation samples per observation")
	fs.IntVar(&cfg.NT, "nt", 300, "Translation samples per observation")
	fs.IntVar(&cfg.ND, "nd", 50, "Defocus samples per observation")
	fs.Float64Var(&cfg.TransS, "trans-s", 2, "Sigma of the translation prior")
	fs.Uint64Var(&cfg.Seed, "seed", 1, "Random seed for ground truth and filters")
	fs.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "Observations refined in parallel")
	fs.StringVar(&cfg.DBPath, "db", "", "SQLite diagnostics database (temporary when empty)")
	fs.StringVar(&cfg.PNGDir, "png", "", "Directory for PNG convergence plots")
	fs.StringVar(&cfg.HTMLPath, "html", "", "Path of the HTML convergence chart")
	fs.StringVar(&cfg.DumpDir, "dump-dir", "", "Directory for per-observation text dumps")
	fs.BoolVar(&cfg.Debug, "debug", false, "Log per-round convergence")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")

	_ = fs.Parse(args)
	return cfg
}

func loadTuning(path string) (particle.Config, error) {
	if path == "" {
		return particle.DefaultConfig(), nil
	}
	tc, err := config.LoadTuningConfig(path)
	if err != nil {
		return particle.Config{}, err
	}
	return particle.ConfigFromTuning(tc), nil
}
