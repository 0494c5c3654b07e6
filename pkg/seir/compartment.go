package seir

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Compartment is the SEIR state of a single person.
type Compartment uint8

const (
	Susceptible Compartment = iota
	Exposed
	Infected
	Removed
)

// NoCountdown is the Remaining value of nodes that are not counting down
// (Susceptible and Removed).
const NoCountdown = math.MaxInt

func (c Compartment) String() string {
	switch c {
	case Susceptible:
		return "Susceptible"
	case Exposed:
		return "Exposed"
	case Infected:
		return "Infected"
	case Removed:
		return "Removed"
	default:
		return "Unknown"
	}
}

func (c Compartment) MarshalText() ([]byte, error) {
	if c > Removed {
		return nil, errors.Errorf("unknown compartment %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Compartment) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "susceptible", "s":
		*c = Susceptible
	case "exposed", "e":
		*c = Exposed
	case "infected", "i":
		*c = Infected
	case "removed", "r":
		*c = Removed
	default:
		return errors.Errorf("unknown compartment %q", b)
	}
	return nil
}

// NodeState is the per-person record kept by a Simulator.
type NodeState struct {
	Compartment Compartment `json:"compartment"`
	// Remaining counts days left in an Exposed or Infected compartment, and is
	// NoCountdown otherwise.
	Remaining int `json:"remaining"`
}

// Counting reports whether the node is in a compartment with a countdown.
func (ns NodeState) Counting() bool {
	return ns.Compartment == Exposed || ns.Compartment == Infected
}
