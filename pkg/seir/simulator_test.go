package seir

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/ryandielhenn/seirnet/pkg/network"
)

func grid(t *testing.T, w, h int) *network.Graph {
	t.Helper()
	g, err := network.Grid(w, h)
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	return g
}

func path(ids ...network.NodeID) *network.Graph {
	g := network.New()
	for i := 0; i+1 < len(ids); i++ {
		g.AddEdge(ids[i], ids[i+1])
	}
	return g
}

func params(initial int) Params {
	p := DefaultParams()
	p.InitialInfections = initial
	return p
}

// place puts node id into compartment c, keeping the counters in step.
func place(s *Simulator, id network.NodeID, c Compartment, remaining int) {
	ns := s.state[id]
	switch ns.Compartment {
	case Exposed:
		s.exposed--
	case Infected:
		s.infected--
	case Removed:
		s.removed--
	}
	ns.Compartment = c
	ns.Remaining = remaining
	switch c {
	case Exposed:
		s.exposed++
	case Infected:
		s.infected++
	case Removed:
		s.removed++
	}
}

func checkCounters(t *testing.T, s *Simulator) {
	t.Helper()
	st := s.Stats()
	c := s.Recount()
	if c[Susceptible] != st.Susceptible || c[Exposed] != st.Exposed || c[Infected] != st.Infected || c[Removed] != st.Removed {
		t.Fatalf("day %d: counters %+v disagree with scan %v", st.Day, st, c)
	}
	if st.Susceptible+st.Exposed+st.Infected+st.Removed != s.Len() {
		t.Fatalf("day %d: compartments sum to %d, want %d", st.Day, st.Susceptible+st.Exposed+st.Infected+st.Removed, s.Len())
	}
}

func TestNewSeedsDistinctInfections(t *testing.T) {
	g := grid(t, 10, 10)
	s, err := New(g, params(25), WithSeed(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	st := s.Stats()
	if st.Infected != 25 || st.Exposed != 0 || st.Removed != 0 || st.Susceptible != 75 {
		t.Fatalf("after New: %+v", st)
	}
	if st.CumulativeInfections != 0 || st.Deaths != 0 || st.Day != 0 {
		t.Fatalf("cumulative counters not zero: %+v", st)
	}
	checkCounters(t, s)
	for _, id := range g.Nodes() {
		ns, _ := s.State(id)
		if ns.Compartment == Infected && ns.Remaining != DefaultMu {
			t.Fatalf("seeded node %d has %d days left, want %d", id, ns.Remaining, DefaultMu)
		}
		if ns.Compartment == Susceptible && ns.Remaining != NoCountdown {
			t.Fatalf("susceptible node %d is counting down", id)
		}
	}
}

func TestNewInfectAll(t *testing.T) {
	g := grid(t, 3, 3)
	s, err := New(g, params(9), WithSeed(7))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Infected() != 9 || s.Susceptible() != 0 {
		t.Fatalf("infected=%d susceptible=%d, want 9 and 0", s.Infected(), s.Susceptible())
	}
}

func TestNewRejectsBadParams(t *testing.T) {
	g := grid(t, 2, 2)
	cases := []struct {
		name string
		mod  func(*Params)
	}{
		{"too many initial", func(p *Params) { p.InitialInfections = 5 }},
		{"negative initial", func(p *Params) { p.InitialInfections = -1 }},
		{"beta high", func(p *Params) { p.Beta = 1.5 }},
		{"beta negative", func(p *Params) { p.Beta = -0.1 }},
		{"zero sigma", func(p *Params) { p.Sigma = 0 }},
		{"negative mu", func(p *Params) { p.Mu = -3 }},
		{"death prob", func(p *Params) { p.DeathProbability = 2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := params(1)
			tc.mod(&p)
			if _, err := New(g, p, WithSeed(1)); !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("err = %v, want ErrInvalidParameter", err)
			}
		})
	}
	if _, err := New(network.New(), params(0)); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("empty network err = %v, want ErrInvalidParameter", err)
	}
	if _, err := New(nil, params(0)); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("nil network err = %v, want ErrInvalidParameter", err)
	}
}

func TestAdvanceRejectsBadArgs(t *testing.T) {
	s, err := New(grid(t, 3, 3), params(1), WithSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []float64{0, -0.5, 1.01} {
		if err := s.Advance(1, true, f); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("factor %v: err = %v, want ErrInvalidParameter", f, err)
		}
	}
	if err := s.Advance(-1, false, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("negative days: err = %v", err)
	}
	if s.Day() != 0 {
		t.Fatalf("rejected Advance moved the clock to day %d", s.Day())
	}
}

func TestAdvanceZeroDaysIsNoop(t *testing.T) {
	s, err := New(grid(t, 5, 5), params(3), WithSeed(3))
	if err != nil {
		t.Fatal(err)
	}
	before := s.Stats()
	snap := s.Compartments()
	if err := s.Advance(0, true, 0.5); err != nil {
		t.Fatal(err)
	}
	if s.Stats() != before {
		t.Fatalf("stats changed: %+v -> %+v", before, s.Stats())
	}
	for id, c := range s.Compartments() {
		if snap[id] != c {
			t.Fatalf("node %d changed from %v to %v", id, snap[id], c)
		}
	}
}

func TestTwoNodeScenario(t *testing.T) {
	for _, order := range [][]network.NodeID{{1, 2}, {2, 1}} {
		g := path(order...)
		p := params(1)
		p.Beta = 1.0
		p.Mu = 1
		s, err := New(g, p, WithSeed(11))
		if err != nil {
			t.Fatal(err)
		}
		var a, b network.NodeID = order[0], order[1]
		if ns, _ := s.State(a); ns.Compartment != Infected {
			a, b = b, a
		}

		if err := s.Advance(1, false, 1.0); err != nil {
			t.Fatal(err)
		}
		na, _ := s.State(a)
		nb, _ := s.State(b)
		if na.Compartment != Removed {
			t.Fatalf("order %v: node %d = %v, want Removed", order, a, na.Compartment)
		}
		if nb.Compartment != Exposed {
			t.Fatalf("order %v: node %d = %v, want Exposed", order, b, nb.Compartment)
		}
		lo, hi := p.Sigma-2, p.Sigma+2
		if g.Nodes()[0] == a {
			// b is reached later the same day and counts down once
			lo, hi = lo-1, hi-1
		}
		if nb.Remaining < lo || nb.Remaining > hi {
			t.Fatalf("order %v: exposed for %d days, want [%d,%d]", order, nb.Remaining, lo, hi)
		}
		st := s.Stats()
		if st.Removed != 1 || st.Exposed != 1 || st.Infected != 0 {
			t.Fatalf("order %v: stats %+v", order, st)
		}
		checkCounters(t, s)
	}
}

func TestSameDayExposureCountsDown(t *testing.T) {
	// 0 infects 1; 1 is visited after 0 and must count down the same day
	// without infecting 2.
	g := path(0, 1, 2)
	p := params(0)
	p.Beta = 1.0
	s, err := New(g, p, WithSeed(5))
	if err != nil {
		t.Fatal(err)
	}
	place(s, 0, Infected, 10)

	if err := s.Advance(1, false, 1.0); err != nil {
		t.Fatal(err)
	}
	n1, _ := s.State(1)
	n2, _ := s.State(2)
	if n1.Compartment != Exposed {
		t.Fatalf("node 1 = %v, want Exposed", n1.Compartment)
	}
	if n1.Remaining < p.Sigma-3 || n1.Remaining > p.Sigma+1 {
		t.Fatalf("node 1 has %d days left, want within [%d,%d]", n1.Remaining, p.Sigma-3, p.Sigma+1)
	}
	if n2.Compartment != Susceptible {
		t.Fatalf("node 2 = %v, want Susceptible", n2.Compartment)
	}
	n0, _ := s.State(0)
	if n0.Remaining != 9 {
		t.Fatalf("node 0 has %d days left, want 9", n0.Remaining)
	}
}

func TestExposedBecomesInfected(t *testing.T) {
	g := path(0, 1)
	p := params(0)
	p.Beta = 0
	s, err := New(g, p, WithSeed(2))
	if err != nil {
		t.Fatal(err)
	}
	place(s, 0, Exposed, 2)

	if err := s.Advance(1, false, 1); err != nil {
		t.Fatal(err)
	}
	if ns, _ := s.State(0); ns.Compartment != Exposed || ns.Remaining != 1 {
		t.Fatalf("after day 1: %+v", ns)
	}
	if err := s.Advance(1, false, 1); err != nil {
		t.Fatal(err)
	}
	ns, _ := s.State(0)
	if ns.Compartment != Infected {
		t.Fatalf("after day 2: %v, want Infected", ns.Compartment)
	}
	if ns.Remaining < p.Mu-1 || ns.Remaining > p.Mu+8 {
		t.Fatalf("infected for %d days, want [%d,%d]", ns.Remaining, p.Mu-1, p.Mu+8)
	}
	st := s.Stats()
	if st.Exposed != 0 || st.Infected != 1 || st.CumulativeInfections != 1 {
		t.Fatalf("stats %+v", st)
	}
}

func TestNegligibleThresholdBlocksTransmission(t *testing.T) {
	// With a tiny threshold, draws above it leave neighbors alone.
	g := grid(t, 6, 6)
	p := params(36)
	p.Mu = 3
	s, err := New(g, p, WithSeed(9))
	if err != nil {
		t.Fatal(err)
	}
	// Every node is infected, so nothing can be exposed regardless.
	if err := s.Advance(5, true, 1e-9); err != nil {
		t.Fatal(err)
	}
	if s.Removed() != 36 || s.Exposed() != 0 {
		t.Fatalf("stats %+v", s.Stats())
	}

	g2 := path(0, 1, 2, 3)
	p2 := params(0)
	p2.Beta = 1e-12
	s2, err := New(g2, p2, WithSeed(9))
	if err != nil {
		t.Fatal(err)
	}
	place(s2, 1, Infected, 20)
	if err := s2.Advance(10, true, 1e-3); err != nil {
		t.Fatal(err)
	}
	if s2.Exposed() != 0 {
		t.Fatalf("exposed %d with negligible threshold", s2.Exposed())
	}
}

func TestDistancingScalesBeta(t *testing.T) {
	cases := []struct {
		name       string
		distancing bool
		want       Compartment
	}{
		{"distancing on", true, Susceptible},
		{"distancing off", false, Exposed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// neighbor first so it is not counted down the same day
			g := path(1, 0)
			p := params(0)
			p.Beta = 1.0
			s, err := New(g, p, WithSeed(13))
			if err != nil {
				t.Fatal(err)
			}
			place(s, 0, Infected, 10)

			if err := s.Advance(1, tc.distancing, 1e-9); err != nil {
				t.Fatal(err)
			}
			ns, _ := s.State(1)
			if ns.Compartment != tc.want {
				t.Fatalf("beta=1 factor=1e-9: neighbor = %v, want %v", ns.Compartment, tc.want)
			}
			checkCounters(t, s)
		})
	}
}

func TestInvariantsOverLongRun(t *testing.T) {
	g := grid(t, 20, 20)
	for seed := int64(1); seed <= 5; seed++ {
		p := params(4)
		p.Beta = 0.3
		p.DeathProbability = 0.2
		s, err := New(g, p, WithSeed(seed))
		if err != nil {
			t.Fatal(err)
		}
		removed := map[network.NodeID]bool{}
		last := s.Stats()
		for day := 0; day < 80; day++ {
			sd := day%10 < 5
			if err := s.Advance(1, sd, 0.4); err != nil {
				t.Fatal(err)
			}
			if day == 20 {
				if _, err := s.IntroduceInfectedNode(); err != nil && !errors.Is(err, ErrNoSusceptibleNodes) {
					t.Fatal(err)
				}
			}
			checkCounters(t, s)
			st := s.Stats()
			if st.CumulativeInfections < last.CumulativeInfections || st.Deaths < last.Deaths {
				t.Fatalf("seed %d day %d: cumulative counters went down: %+v -> %+v", seed, st.Day, last, st)
			}
			if st.Deaths > st.Removed {
				t.Fatalf("seed %d: deaths %d exceed removed %d", seed, st.Deaths, st.Removed)
			}
			for _, id := range g.Nodes() {
				ns, _ := s.State(id)
				if removed[id] && ns.Compartment != Removed {
					t.Fatalf("seed %d: node %d left Removed for %v", seed, id, ns.Compartment)
				}
				if ns.Compartment == Removed {
					removed[id] = true
				}
				if ns.Counting() && ns.Remaining < 1 {
					t.Fatalf("seed %d: node %d is %v with %d days left", seed, id, ns.Compartment, ns.Remaining)
				}
			}
			last = st
		}
	}
}

func TestDeterministicWithSeed(t *testing.T) {
	run := func() (Stats, map[network.NodeID]Compartment) {
		g := grid(t, 15, 15)
		s, err := New(g, params(5), WithRand(rand.New(rand.NewSource(2024))))
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Advance(30, false, 1); err != nil {
			t.Fatal(err)
		}
		if err := s.Advance(30, true, 0.5); err != nil {
			t.Fatal(err)
		}
		return s.Stats(), s.Compartments()
	}
	st1, c1 := run()
	st2, c2 := run()
	if st1 != st2 {
		t.Fatalf("stats differ: %+v vs %+v", st1, st2)
	}
	for id, c := range c1 {
		if c2[id] != c {
			t.Fatalf("node %d: %v vs %v", id, c, c2[id])
		}
	}
}

func TestIntroduceInfectedNode(t *testing.T) {
	g := grid(t, 4, 4)
	s, err := New(g, params(2), WithSeed(4))
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.IntroduceInfectedNode()
	if err != nil {
		t.Fatalf("IntroduceInfectedNode: %v", err)
	}
	ns, _ := s.State(id)
	if ns.Compartment != Exposed {
		t.Fatalf("node %d = %v, want Exposed", id, ns.Compartment)
	}
	if ns.Remaining < DefaultSigma-1 || ns.Remaining > DefaultSigma {
		t.Fatalf("exposed for %d days, want %d or %d", ns.Remaining, DefaultSigma-1, DefaultSigma)
	}
	if s.Exposed() != 1 || s.Infected() != 2 {
		t.Fatalf("stats %+v", s.Stats())
	}
	checkCounters(t, s)
}

func TestDurationsFlooredAtOneDay(t *testing.T) {
	g := grid(t, 5, 5)
	p := params(0)
	p.Sigma = 1
	s, err := New(g, p, WithSeed(21))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		id, err := s.IntroduceInfectedNode()
		if err != nil {
			t.Fatal(err)
		}
		if ns, _ := s.State(id); ns.Remaining != 1 {
			t.Fatalf("sigma=1: node %d exposed for %d days, want 1", id, ns.Remaining)
		}
	}

	// one day later every exposure has become an infection
	if err := s.Advance(1, false, 1); err != nil {
		t.Fatal(err)
	}
	if s.Exposed() != 0 || s.Infected() != 10 || s.CumulativeInfections() != 10 {
		t.Fatalf("stats %+v", s.Stats())
	}
}

func TestIntroduceOnExhaustedPopulation(t *testing.T) {
	g := grid(t, 3, 3)
	p := params(9)
	p.Mu = 1
	s, err := New(g, p, WithSeed(8))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Advance(1, false, 1); err != nil {
		t.Fatal(err)
	}
	if s.Removed() != 9 {
		t.Fatalf("removed = %d, want 9", s.Removed())
	}
	before := s.Stats()
	if _, err := s.IntroduceInfectedNode(); !errors.Is(err, ErrNoSusceptibleNodes) {
		t.Fatalf("err = %v, want ErrNoSusceptibleNodes", err)
	}
	if s.Stats() != before {
		t.Fatalf("failed introduce mutated stats: %+v -> %+v", before, s.Stats())
	}
	for id, c := range s.Compartments() {
		if c != Removed {
			t.Fatalf("node %d = %v, want Removed", id, c)
		}
	}
}

func TestResetKeepsCumulativeCounters(t *testing.T) {
	g := grid(t, 10, 10)
	p := params(3)
	p.Beta = 0.6
	p.DeathProbability = 1
	s, err := New(g, p, WithSeed(12))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Advance(40, false, 1); err != nil {
		t.Fatal(err)
	}
	before := s.Stats()
	if before.CumulativeInfections == 0 || before.Deaths == 0 {
		t.Fatalf("run too quiet to test reset: %+v", before)
	}

	s.Reset()
	st := s.Stats()
	if st.Infected != 3 || st.Exposed != 0 || st.Removed != 0 || st.Susceptible != 97 || st.Day != 0 {
		t.Fatalf("after reset: %+v", st)
	}
	if st.CumulativeInfections != before.CumulativeInfections || st.Deaths != before.Deaths {
		t.Fatalf("reset changed cumulative counters: %+v -> %+v", before, st)
	}
	checkCounters(t, s)
	for _, id := range g.Nodes() {
		ns, _ := s.State(id)
		if ns.Compartment == Susceptible && ns.Remaining != NoCountdown {
			t.Fatalf("node %d kept a countdown after reset", id)
		}
	}
}

type dayRecorder struct{ days []Stats }

func (r *dayRecorder) ObserveDay(st Stats, _ time.Duration) { r.days = append(r.days, st) }

func TestObserverSeesEveryDay(t *testing.T) {
	rec := &dayRecorder{}
	s, err := New(grid(t, 5, 5), params(2), WithSeed(6), WithObserver(rec))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Advance(7, false, 1); err != nil {
		t.Fatal(err)
	}
	if len(rec.days) != 7 {
		t.Fatalf("observed %d days, want 7", len(rec.days))
	}
	for i, st := range rec.days {
		if st.Day != i+1 {
			t.Fatalf("observation %d has day %d", i, st.Day)
		}
	}
	if rec.days[6] != s.Stats() {
		t.Fatalf("last observation %+v != stats %+v", rec.days[6], s.Stats())
	}
}

func TestCompartmentText(t *testing.T) {
	for _, c := range []Compartment{Susceptible, Exposed, Infected, Removed} {
		b, err := c.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var back Compartment
		if err := back.UnmarshalText(b); err != nil || back != c {
			t.Fatalf("%v: got %v, %v", c, back, err)
		}
	}
	var c Compartment
	if err := c.UnmarshalText([]byte("zombie")); err == nil {
		t.Fatalf("expected error for unknown compartment")
	}
}
