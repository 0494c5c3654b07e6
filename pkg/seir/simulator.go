// Package seir runs an SEIR epidemic over a contact network in daily steps.
//
// A Simulator owns the state of every node and is not safe for concurrent
// use; wrap it in a mutex when it is shared.
package seir

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ryandielhenn/seirnet/pkg/network"
)

// Network is the contact network a Simulator runs on. Nodes must return the
// same order on every call and the network must not change during a run.
type Network interface {
	Nodes() []network.NodeID
	Neighbors(id network.NodeID) []network.NodeID
	Len() int
}

// Observer is told about every completed simulated day.
type Observer interface {
	ObserveDay(st Stats, elapsed time.Duration)
}

// Stats is a snapshot of the population counters.
type Stats struct {
	Day                  int `json:"day"`
	Susceptible          int `json:"susceptible"`
	Exposed              int `json:"exposed"`
	Infected             int `json:"infected"`
	Removed              int `json:"removed"`
	CumulativeInfections int `json:"cumulative_infections"`
	Deaths               int `json:"deaths"`
}

// Counts are compartment totals obtained by scanning every node.
type Counts [Removed + 1]int

type Option func(*Simulator)

// WithRand sets the random source. Runs with the same source state, network
// and params are identical.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) { s.rng = rng }
}

func WithSeed(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

func WithObserver(o Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

type Simulator struct {
	net    Network
	params Params
	rng    *rand.Rand
	log    *zap.Logger

	// order is fixed at construction; every day walks it front to back.
	order []network.NodeID
	state map[network.NodeID]*NodeState

	day                  int
	infected             int
	exposed              int
	removed              int
	cumulativeInfections int
	deaths               int

	observers []Observer
}

// New builds a Simulator over net with every node Susceptible, then infects
// p.InitialInfections distinct nodes chosen uniformly at random.
func New(net Network, p Params, opts ...Option) (*Simulator, error) {
	if net == nil {
		return nil, errors.Wrap(ErrInvalidParameter, "nil network")
	}
	if err := p.Validate(net.Len()); err != nil {
		return nil, err
	}
	s := &Simulator{
		net:    net,
		params: p,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	nodes := net.Nodes()
	s.order = make([]network.NodeID, len(nodes))
	copy(s.order, nodes)
	s.state = make(map[network.NodeID]*NodeState, len(s.order))
	for _, id := range s.order {
		s.state[id] = &NodeState{Compartment: Susceptible, Remaining: NoCountdown}
	}
	if len(s.state) != len(s.order) {
		return nil, errors.Wrapf(ErrInvalidParameter, "network lists %d nodes but only %d are distinct", len(s.order), len(s.state))
	}

	s.seed()
	s.log.Info("simulator ready",
		zap.Int("nodes", len(s.order)),
		zap.Int("initial_infections", s.infected),
		zap.Float64("beta", p.Beta),
		zap.Int("sigma", p.Sigma),
		zap.Int("mu", p.Mu),
	)
	return s, nil
}

// seed infects InitialInfections distinct nodes. Draws that land on an
// already infected node are repeated.
func (s *Simulator) seed() {
	for _, ns := range s.state {
		ns.Compartment = Susceptible
		ns.Remaining = NoCountdown
	}
	s.infected = 0
	for s.infected < s.params.InitialInfections {
		ns := s.state[s.order[s.rng.Intn(len(s.order))]]
		if ns.Compartment == Infected {
			continue
		}
		ns.Compartment = Infected
		ns.Remaining = s.params.Mu
		s.infected++
	}
}

// Reset returns every node to Susceptible, clears the live counters and the
// day counter, and reseeds the initial infections. Cumulative infections and
// deaths are kept.
func (s *Simulator) Reset() {
	s.exposed = 0
	s.removed = 0
	s.infected = 0
	s.day = 0
	s.seed()
	s.log.Info("simulator reset",
		zap.Int("initial_infections", s.infected),
		zap.Int("cumulative_infections", s.cumulativeInfections),
		zap.Int("deaths", s.deaths),
	)
}

// Advance runs days simulated days. With distancing enabled the transmission
// probability is multiplied by factor. factor must lie in (0,1] either way.
//
// Nodes are visited in network order and state changes are visible to the
// rest of the same day's pass: a neighbor exposed early in the pass counts
// down when it is reached later that day.
func (s *Simulator) Advance(days int, distancing bool, factor float64) error {
	if days < 0 {
		return errors.Wrapf(ErrInvalidParameter, "days %d is negative", days)
	}
	if !validFactor(factor) {
		return errors.Wrapf(ErrInvalidParameter, "distancing factor %v outside (0,1]", factor)
	}
	threshold := s.params.Beta
	if distancing {
		threshold *= factor
	}
	for i := 0; i < days; i++ {
		start := time.Now()
		s.step(threshold)
		s.day++
		st := s.Stats()
		elapsed := time.Since(start)
		s.log.Debug("day complete",
			zap.Int("day", st.Day),
			zap.Int("exposed", st.Exposed),
			zap.Int("infected", st.Infected),
			zap.Int("removed", st.Removed),
			zap.Duration("elapsed", elapsed),
		)
		for _, o := range s.observers {
			o.ObserveDay(st, elapsed)
		}
	}
	return nil
}

func (s *Simulator) step(threshold float64) {
	for _, id := range s.order {
		ns := s.state[id]
		switch ns.Compartment {
		case Infected:
			ns.Remaining--
			if ns.Remaining == 0 {
				ns.Compartment = Removed
				ns.Remaining = NoCountdown
				s.removed++
				s.infected--
				if s.rng.Float64() < s.params.DeathProbability {
					s.deaths++
				}
			}
			// A node removed today still gets its contacts for the day.
			for _, nbr := range s.net.Neighbors(id) {
				nn := s.state[nbr]
				if nn == nil || nn.Compartment != Susceptible {
					continue
				}
				if s.rng.Float64() <= threshold {
					nn.Compartment = Exposed
					nn.Remaining = s.duration(s.params.Sigma, -2, 2)
					s.exposed++
				}
			}
		case Exposed:
			ns.Remaining--
			if ns.Remaining == 0 {
				ns.Compartment = Infected
				ns.Remaining = s.duration(s.params.Mu, -1, 8)
				s.exposed--
				s.infected++
				s.cumulativeInfections++
			}
		}
	}
}

// IntroduceInfectedNode exposes one Susceptible node chosen uniformly at
// random and returns it. It fails without changing anything when no node is
// Susceptible.
func (s *Simulator) IntroduceInfectedNode() (network.NodeID, error) {
	if s.susceptible() == 0 {
		return 0, errors.Wrapf(ErrNoSusceptibleNodes, "all %d nodes are exposed, infected or removed", len(s.order))
	}
	for {
		id := s.order[s.rng.Intn(len(s.order))]
		ns := s.state[id]
		if ns.Compartment != Susceptible {
			continue
		}
		ns.Compartment = Exposed
		ns.Remaining = s.duration(s.params.Sigma, -1, 0)
		s.exposed++
		s.log.Info("introduced exposure", zap.Int64("node", int64(id)), zap.Int("day", s.day))
		return id, nil
	}
}

// duration returns mean plus a uniform integer offset in [lo,hi], floored at
// one day so every countdown reaches zero.
func (s *Simulator) duration(mean, lo, hi int) int {
	d := mean + lo + s.rng.Intn(hi-lo+1)
	if d < 1 {
		d = 1
	}
	return d
}

func (s *Simulator) susceptible() int {
	return len(s.order) - s.infected - s.exposed - s.removed
}

func (s *Simulator) Stats() Stats {
	return Stats{
		Day:                  s.day,
		Susceptible:          s.susceptible(),
		Exposed:              s.exposed,
		Infected:             s.infected,
		Removed:              s.removed,
		CumulativeInfections: s.cumulativeInfections,
		Deaths:               s.deaths,
	}
}

func (s *Simulator) Infected() int             { return s.infected }
func (s *Simulator) Exposed() int              { return s.exposed }
func (s *Simulator) Removed() int              { return s.removed }
func (s *Simulator) Susceptible() int          { return s.susceptible() }
func (s *Simulator) CumulativeInfections() int { return s.cumulativeInfections }
func (s *Simulator) Deaths() int               { return s.deaths }
func (s *Simulator) Day() int                  { return s.day }
func (s *Simulator) Params() Params            { return s.params }
func (s *Simulator) Len() int                  { return len(s.order) }

// State returns the state of node id.
func (s *Simulator) State(id network.NodeID) (NodeState, bool) {
	ns, ok := s.state[id]
	if !ok {
		return NodeState{}, false
	}
	return *ns, true
}

// Compartments returns a copy of every node's compartment, for reporting.
func (s *Simulator) Compartments() map[network.NodeID]Compartment {
	out := make(map[network.NodeID]Compartment, len(s.state))
	for id, ns := range s.state {
		out[id] = ns.Compartment
	}
	return out
}

// Recount scans every node and returns the compartment totals. It should
// always agree with Stats.
func (s *Simulator) Recount() Counts {
	var c Counts
	for _, ns := range s.state {
		c[ns.Compartment]++
	}
	return c
}
