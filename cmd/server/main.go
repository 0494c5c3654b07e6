package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/seirnet/internal/config"
	"github.com/ryandielhenn/seirnet/internal/telemetry"
	"github.com/ryandielhenn/seirnet/pkg/history"
	"github.com/ryandielhenn/seirnet/pkg/network"
	"github.com/ryandielhenn/seirnet/pkg/node"
	"github.com/ryandielhenn/seirnet/pkg/registry"
	"github.com/ryandielhenn/seirnet/pkg/seir"
)

var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	telemetry.SetBuildInfo(version, gitSHA)

	// 1. Build the contact network
	g, err := loadNetwork(cfg)
	if err != nil {
		return err
	}
	log.Info("[Boot] network ready", zap.Int("nodes", g.Len()), zap.Int("edges", g.NumEdges()), zap.Float64("mean_degree", g.MeanDegree()))

	// 2. Initialize the simulator with history and metrics attached
	hist := history.New(cfg.History)
	opts := []seir.Option{
		seir.WithLogger(log.Named("seir")),
		seir.WithObserver(hist),
		seir.WithObserver(telemetry.SimObserver{}),
	}
	if cfg.Seed != 0 {
		opts = append(opts, seir.WithSeed(cfg.Seed))
	}
	sim, err := seir.New(g, cfg.Params, opts...)
	if err != nil {
		return err
	}
	n := node.NewNode(sim, hist, cfg.ID, cfg.Addr,
		node.WithLogger(log.Named("node")),
		node.WithPublisher(telemetry.Publish),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Register with etcd and watch the other simulators
	if len(cfg.EtcdEndpoints) > 0 {
		log.Info("[Boot] creating etcd client", zap.Strings("endpoints", cfg.EtcdEndpoints))
		cli, err := registry.NewClient(cfg.EtcdEndpoints)
		if err != nil {
			return err
		}
		defer cli.Close()

		leaseID, cancel, err := registry.RegisterSimulator(cli, cfg.ID, cfg.Addr, cfg.LeaseTTL)
		if err != nil {
			return err
		}
		defer func() {
			cancel()
			rctx, rcancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer rcancel()
			_, _ = cli.Revoke(rctx, leaseID)
		}()
		log.Info("[Boot] registered", zap.String("id", cfg.ID), zap.String("addr", cfg.Addr))

		registry.WatchSimulators(ctx, cli, log.Named("registry"), func(peers map[string]string) {
			log.Info("[WatchSimulators] peers changed", zap.Int("count", len(peers)))
			n.SetPeers(peers)
		})
	}

	// 4. Wire up HTTP endpoints
	mux := http.NewServeMux()
	n.Routes(mux, telemetry.Instrument)
	mux.Handle("GET /metrics", telemetry.MetricsHandler())

	srv := &http.Server{Addr: cfg.Listen, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		log.Info("seirnet simulator listening", zap.String("addr", cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func loadNetwork(cfg config.Config) (*network.Graph, error) {
	if cfg.EdgesPath == "" {
		return network.Grid(cfg.GridWidth, cfg.GridHeight)
	}
	f, err := os.Open(cfg.EdgesPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return network.ReadEdgeList(f)
}
