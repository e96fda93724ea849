package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/sos-laser/internal/actuator"
	"github.com/oshokin/sos-laser/internal/dispatch"
)

const namespace = "sos_laser"

// errIncompatibleCollector is returned when a metric name is taken by another type.
var errIncompatibleCollector = errors.New("collector already registered with incompatible type")

// Collector bundles the controller metrics.
type Collector struct {
	// gatherer serves the /metrics handler.
	gatherer prometheus.Gatherer

	// Commands counts dispatched commands by name.
	Commands *prometheus.CounterVec
	// Emissions counts finished emissions by kind and outcome.
	Emissions *prometheus.CounterVec
	// EmissionDurations observes emission wall-clock time by kind.
	EmissionDurations *prometheus.HistogramVec
	// Pulses counts rising edges on the output line.
	Pulses prometheus.Counter
	// ActuatorActive is 1 while the line is High.
	ActuatorActive prometheus.Gauge
}

// NewCollector registers the metrics against reg, defaulting to the global registry.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	commands, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Dispatched commands by name.",
	}, []string{"command"}))
	if err != nil {
		return nil, err
	}

	emissions, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emissions_total",
		Help:      "Finished emissions by kind and outcome.",
	}, []string{"kind", "outcome"}))
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "emission_duration_seconds",
		Help:      "Emission wall-clock time in seconds.",
		Buckets:   []float64{0.5, 1, 2, 5, 7.5, 10, 15},
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}

	pulses, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pulses_total",
		Help:      "Rising edges driven on the output line.",
	}))
	if err != nil {
		return nil, err
	}

	active, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "actuator_active",
		Help:      "1 while the output line is active.",
	}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		Commands:          commands,
		Emissions:         emissions,
		EmissionDurations: durations,
		Pulses:            pulses,
		ActuatorActive:    active,
	}, nil
}

// ObserveCommand counts a dispatched command.
func (c *Collector) ObserveCommand(cmd dispatch.Command) {
	c.Commands.WithLabelValues(cmd.String()).Inc()
}

// ObserveLevel tracks the line level and counts rising edges.
func (c *Collector) ObserveLevel(level actuator.Level) {
	if level == actuator.High {
		c.Pulses.Inc()
		c.ActuatorActive.Set(1)

		return
	}

	c.ActuatorActive.Set(0)
}

// ObserveEmission records the outcome and duration of an emission.
func (c *Collector) ObserveEmission(kind string, elapsed time.Duration, err error) {
	outcome := "completed"
	if err != nil {
		outcome = "fault"
	}

	c.Emissions.WithLabelValues(kind, outcome).Inc()
	c.EmissionDurations.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// register adds collector to reg or returns the compatible collector already there.
func register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return collector, fmt.Errorf("register collector: %w", err)
		}

		existing, ok := are.ExistingCollector.(T)
		if !ok {
			return collector, errIncompatibleCollector
		}

		return existing, nil
	}

	return collector, nil
}
