package seir

import (
	"math"

	"github.com/pkg/errors"
)

var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrNoSusceptibleNodes = errors.New("no susceptible nodes")
)

// Default disease parameters for a city run.
const (
	DefaultBeta             = 0.5
	DefaultSigma            = 4
	DefaultMu               = 16
	DefaultDeathProbability = 0.007
)

// Params configures a Simulator.
//
// Sigma and Mu must be at least 1 day; zero is rejected as well as negative
// values. Every jittered duration (Sigma+[-2,2] on exposure, Sigma+[-1,0] on
// introduction, Mu+[-1,8] on infection) is floored at 1 day, so for small
// Sigma or Mu the low end of those ranges is narrower than mean plus offset.
type Params struct {
	Beta              float64 `json:"beta"`  // per-contact, per-day transmission probability
	Sigma             int     `json:"sigma"` // mean days Exposed
	Mu                int     `json:"mu"`    // mean days Infected
	InitialInfections int     `json:"initial_infections"`
	DeathProbability  float64 `json:"death_probability"` // chance a removal is counted as a death

	// Density is reserved for rewiring the network towards a target contact
	// density before a run. It is stored and reported but has no effect.
	Density float64 `json:"density"`
}

func DefaultParams() Params {
	return Params{
		Beta:              DefaultBeta,
		Sigma:             DefaultSigma,
		Mu:                DefaultMu,
		InitialInfections: 1,
		DeathProbability:  DefaultDeathProbability,
	}
}

// Validate checks p against a network of n nodes.
func (p Params) Validate(n int) error {
	switch {
	case n < 1:
		return errors.Wrap(ErrInvalidParameter, "network has no nodes")
	case !validProb(p.Beta):
		return errors.Wrapf(ErrInvalidParameter, "beta %v outside [0,1]", p.Beta)
	case !validProb(p.DeathProbability):
		return errors.Wrapf(ErrInvalidParameter, "death probability %v outside [0,1]", p.DeathProbability)
	case p.Sigma < 1:
		return errors.Wrapf(ErrInvalidParameter, "sigma %d must be at least 1 day", p.Sigma)
	case p.Mu < 1:
		return errors.Wrapf(ErrInvalidParameter, "mu %d must be at least 1 day", p.Mu)
	case p.InitialInfections < 0:
		return errors.Wrapf(ErrInvalidParameter, "initial infections %d is negative", p.InitialInfections)
	case p.InitialInfections > n:
		return errors.Wrapf(ErrInvalidParameter, "initial infections %d exceeds network size %d", p.InitialInfections, n)
	case math.IsNaN(p.Density) || math.IsInf(p.Density, 0):
		return errors.Wrapf(ErrInvalidParameter, "density %v is not finite", p.Density)
	}
	return nil
}

func validProb(p float64) bool { return p >= 0.0 && p <= 1.0 }

// validFactor reports whether f is a usable distancing multiplier, (0,1].
func validFactor(f float64) bool { return f > 0.0 && f <= 1.0 }
