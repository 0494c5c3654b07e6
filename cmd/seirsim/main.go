package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ryandielhenn/seirnet/pkg/history"
	"github.com/ryandielhenn/seirnet/pkg/network"
	"github.com/ryandielhenn/seirnet/pkg/seir"
)

type options struct {
	edges     string
	grid      string
	days      int
	seed      int64
	params    seir.Params
	sd        bool
	sdStart   int
	factor    float64
	introduce int
	runs      int
	verbose   bool
}

func main() {
	var o options
	o.params = seir.DefaultParams()
	flag.StringVar(&o.edges, "edges", "", "edge-list file (\"a b\" per line); overrides -grid")
	flag.StringVar(&o.grid, "grid", "40x40", "city grid WxH used when -edges is empty")
	flag.IntVar(&o.days, "days", 120, "days to simulate")
	flag.Int64Var(&o.seed, "seed", 0, "random seed (0 = time based)")
	flag.Float64Var(&o.params.Beta, "beta", seir.DefaultBeta, "transmission probability per contact per day")
	flag.IntVar(&o.params.Sigma, "sigma", seir.DefaultSigma, "mean days exposed")
	flag.IntVar(&o.params.Mu, "mu", seir.DefaultMu, "mean days infected")
	flag.IntVar(&o.params.InitialInfections, "initial", 5, "initially infected people")
	flag.Float64Var(&o.params.DeathProbability, "death", seir.DefaultDeathProbability, "probability a removal is a death")
	flag.Float64Var(&o.params.Density, "density", 0, "reserved; has no effect")
	flag.BoolVar(&o.sd, "sd", false, "enable social distancing")
	flag.IntVar(&o.sdStart, "sd-start", 0, "day social distancing starts")
	flag.Float64Var(&o.factor, "factor", 0.5, "distancing multiplier on beta, (0,1]")
	flag.IntVar(&o.introduce, "introduce-every", 0, "expose one new person every N days (0 = never)")
	flag.IntVar(&o.runs, "runs", 1, "independent runs; the population is reset between runs")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.Parse()

	log := zap.NewNop()
	if o.verbose {
		var err error
		if log, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	defer log.Sync()

	if err := run(o, os.Stdout, log); err != nil {
		fmt.Fprintln(os.Stderr, "seirsim:", err)
		os.Exit(1)
	}
}

func run(o options, out io.Writer, log *zap.Logger) error {
	g, err := loadNetwork(o.edges, o.grid)
	if err != nil {
		return err
	}
	log.Info("network loaded", zap.Int("nodes", g.Len()), zap.Int("edges", g.NumEdges()))

	if o.seed == 0 {
		o.seed = time.Now().UnixNano()
	}
	hist := history.New(o.days + 1)
	sim, err := seir.New(g, o.params, seir.WithSeed(o.seed), seir.WithLogger(log), seir.WithObserver(hist))
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Run, Day, Susceptible, Exposed, Infected, Removed, CumulativeInfections, Deaths, Distancing")
	for r := 1; r <= o.runs; r++ {
		if r > 1 {
			sim.Reset()
			hist.Clear()
		}
		printStats(out, r, sim.Stats(), false)
		for day := 1; day <= o.days; day++ {
			sd := o.sd && day > o.sdStart
			if err := sim.Advance(1, sd, o.factor); err != nil {
				return err
			}
			if o.introduce > 0 && day%o.introduce == 0 {
				if _, err := sim.IntroduceInfectedNode(); err != nil {
					log.Debug("no one left to expose", zap.Int("day", day), zap.Error(err))
				}
			}
			printStats(out, r, sim.Stats(), sd)
		}
		if peak, ok := peakInfected(hist); ok {
			log.Info("run complete", zap.Int("run", r), zap.Int("peak_day", peak.Day), zap.Int("peak_infected", peak.Infected))
		}
	}
	return nil
}

func printStats(out io.Writer, run int, st seir.Stats, sd bool) {
	fmt.Fprintf(out, "%d, %d, %d, %d, %d, %d, %d, %d, %v\n",
		run,
		st.Day,
		st.Susceptible,
		st.Exposed,
		st.Infected,
		st.Removed,
		st.CumulativeInfections,
		st.Deaths,
		sd,
	)
}

func peakInfected(hist *history.Log) (seir.Stats, bool) {
	var peak seir.Stats
	found := false
	for _, r := range hist.Recent(0) {
		if !found || r.Infected > peak.Infected {
			peak, found = r.Stats, true
		}
	}
	return peak, found
}

func loadNetwork(edges, grid string) (*network.Graph, error) {
	if edges != "" {
		f, err := os.Open(edges)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return network.ReadEdgeList(f)
	}
	var w, h int
	if _, err := fmt.Sscanf(grid, "%dx%d", &w, &h); err != nil {
		return nil, errors.Wrapf(err, "bad -grid %q", grid)
	}
	return network.Grid(w, h)
}
