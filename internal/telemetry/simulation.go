package telemetry

import (
	"time"

	"github.com/ryandielhenn/seirnet/pkg/seir"
)

// SimObserver publishes simulator counters to the package registry. Attach it
// with seir.WithObserver; call Publish after operations that change state
// without simulating a day (construction, reset, introductions).
type SimObserver struct{}

func (SimObserver) ObserveDay(st seir.Stats, elapsed time.Duration) {
	DaysTotal.Inc()
	DayDuration.Observe(elapsed.Seconds())
	Publish(st)
}

// Publish sets the population gauges from st.
func Publish(st seir.Stats) {
	Population.WithLabelValues(seir.Susceptible.String()).Set(float64(st.Susceptible))
	Population.WithLabelValues(seir.Exposed.String()).Set(float64(st.Exposed))
	Population.WithLabelValues(seir.Infected.String()).Set(float64(st.Infected))
	Population.WithLabelValues(seir.Removed.String()).Set(float64(st.Removed))
	CumulativeInfections.Set(float64(st.CumulativeInfections))
	Deaths.Set(float64(st.Deaths))
	SimulatedDay.Set(float64(st.Day))
}
