// Package config reads the simulator service settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ryandielhenn/seirnet/pkg/seir"
)

// Config is the service configuration. Zero values from the environment fall
// back to the defaults in Load.
type Config struct {
	ID     string // SIM_ID
	Addr   string // SIM_ADDR, advertised in etcd
	Listen string // SIM_LISTEN

	EdgesPath  string // SIM_EDGES, edge-list file; takes precedence over the grid
	GridWidth  int    // SIM_GRID, "WxH"
	GridHeight int

	Seed    int64 // SIM_SEED, 0 means time based
	Params  seir.Params
	History int // SIM_HISTORY, days kept for /history

	EtcdEndpoints []string // ETCD_ENDPOINTS, comma separated; empty disables registration
	LeaseTTL      int64    // SIM_LEASE_TTL seconds
}

// Load reads the configuration using os.Getenv.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration from getenv.
func LoadFrom(getenv func(string) string) (Config, error) {
	host, _ := os.Hostname()
	c := Config{
		ID:         host,
		Listen:     ":8080",
		GridWidth:  50,
		GridHeight: 50,
		Params:     seir.DefaultParams(),
		History:    365,
		LeaseTTL:   10,
	}
	c.Params.InitialInfections = 5

	if v := getenv("SIM_ID"); v != "" {
		c.ID = v
	}
	if v := getenv("SIM_LISTEN"); v != "" {
		c.Listen = v
	}
	c.Addr = getenv("SIM_ADDR")
	if c.Addr == "" {
		c.Addr = c.ID + c.Listen
	}
	c.EdgesPath = getenv("SIM_EDGES")

	if v := getenv("SIM_GRID"); v != "" {
		w, h, err := parseGrid(v)
		if err != nil {
			return Config{}, err
		}
		c.GridWidth, c.GridHeight = w, h
	}

	var err error
	set := func(name string, fn func(string) error) {
		if err != nil {
			return
		}
		if v := getenv(name); v != "" {
			if e := fn(v); e != nil {
				err = errors.Wrapf(e, "%s=%q", name, v)
			}
		}
	}
	set("SIM_SEED", func(v string) (e error) { c.Seed, e = strconv.ParseInt(v, 10, 64); return })
	set("SIM_BETA", func(v string) (e error) { c.Params.Beta, e = strconv.ParseFloat(v, 64); return })
	set("SIM_SIGMA", func(v string) (e error) { c.Params.Sigma, e = strconv.Atoi(v); return })
	set("SIM_MU", func(v string) (e error) { c.Params.Mu, e = strconv.Atoi(v); return })
	set("SIM_INITIAL", func(v string) (e error) { c.Params.InitialInfections, e = strconv.Atoi(v); return })
	set("SIM_DEATH_PROB", func(v string) (e error) { c.Params.DeathProbability, e = strconv.ParseFloat(v, 64); return })
	set("SIM_DENSITY", func(v string) (e error) { c.Params.Density, e = strconv.ParseFloat(v, 64); return })
	set("SIM_HISTORY", func(v string) (e error) { c.History, e = strconv.Atoi(v); return })
	set("SIM_LEASE_TTL", func(v string) (e error) { c.LeaseTTL, e = strconv.ParseInt(v, 10, 64); return })
	if err != nil {
		return Config{}, err
	}

	if v := getenv("ETCD_ENDPOINTS"); v != "" {
		for _, ep := range strings.Split(v, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				c.EtcdEndpoints = append(c.EtcdEndpoints, ep)
			}
		}
	}
	return c, nil
}

func parseGrid(v string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(v), "x")
	if !ok {
		return 0, 0, errors.Errorf("SIM_GRID=%q: want WxH", v)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "SIM_GRID=%q", v)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "SIM_GRID=%q", v)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, errors.Errorf("SIM_GRID=%q: dimensions must be positive", v)
	}
	return w, h, nil
}
