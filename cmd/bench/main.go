package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ryandielhenn/seirnet/pkg/node"
	"github.com/ryandielhenn/seirnet/pkg/registry"
	"github.com/ryandielhenn/seirnet/pkg/seir"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "simulator address (ignored when -etcd is set)")
	etcd := flag.String("etcd", "", "comma separated etcd endpoints to discover simulators")
	n := flag.Int("n", 200, "advance requests per simulator")
	conc := flag.Int("c", 8, "concurrency")
	days := flag.Int("days", 1, "days per advance request")
	sd := flag.Bool("sd", false, "request social distancing")
	factor := flag.Float64("factor", 0.5, "distancing factor")
	reset := flag.Bool("reset", true, "reset each simulator before the run")
	flag.Parse()

	log, _ := zap.NewDevelopment()
	defer log.Sync()

	targets, err := discover(*addr, *etcd)
	if err != nil {
		log.Fatal("discovery failed", zap.Error(err))
	}
	if len(targets) == 0 {
		log.Fatal("no simulators found")
	}

	client := &http.Client{Timeout: 60 * time.Second}
	if *reset {
		for _, base := range targets {
			if _, err := post(client, base+"/reset"); err != nil {
				log.Fatal("reset failed", zap.String("target", base), zap.Error(err))
			}
		}
	}

	path := fmt.Sprintf("/advance?days=%d&sd=%t&factor=%g", *days, *sd, *factor)
	wg := sync.WaitGroup{}
	ch := make(chan struct{}, *conc)
	var failures sync.Map
	start := time.Now()

	total := 0
	for _, base := range targets {
		for i := 0; i < *n; i++ {
			total++
			wg.Add(1)
			ch <- struct{}{}
			go func(base string) {
				defer wg.Done()
				defer func() { <-ch }()
				if _, err := post(client, base+path); err != nil {
					failures.Store(base, err)
				}
			}(base)
		}
	}
	wg.Wait()
	dur := time.Since(start)

	failures.Range(func(k, v any) bool {
		log.Warn("advance failed", zap.String("target", k.(string)), zap.Any("error", v))
		return true
	})
	for _, base := range targets {
		st, err := stats(client, base)
		if err != nil {
			log.Warn("stats failed", zap.String("target", base), zap.Error(err))
			continue
		}
		fmt.Printf("%s day=%d S=%d E=%d I=%d R=%d cumulative=%d deaths=%d\n",
			base, st.Day, st.Susceptible, st.Exposed, st.Infected, st.Removed, st.CumulativeInfections, st.Deaths)
	}
	simulated := total * *days
	fmt.Printf("Completed %d advance calls (%d simulated days) in %s (%.2f days/s)\n",
		total, simulated, dur, float64(simulated)/dur.Seconds())
}

func discover(addr, etcd string) ([]string, error) {
	if etcd == "" {
		return []string{node.BaseURL(addr, "8080")}, nil
	}
	cli, err := registry.NewClient(strings.Split(etcd, ","))
	if err != nil {
		return nil, err
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sims, err := registry.ListSimulators(ctx, cli)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(sims))
	for _, a := range sims {
		out = append(out, node.BaseURL(a, "8080"))
	}
	return out, nil
}

func post(client *http.Client, url string) ([]byte, error) {
	resp, err := client.Post(url, "application/octet-stream", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func stats(client *http.Client, base string) (seir.Stats, error) {
	var st seir.Stats
	resp, err := client.Get(base + "/stats")
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, err
	}
	return st, nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags]\n\nDrives /advance on one or more simulators and reports throughput.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
}
