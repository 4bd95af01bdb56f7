// Package metrics also carries a thin DogStatsD wrapper, adapted from
// the teacher's internal/datadog: same client and Gauge idiom, but
// constructed with explicit arguments instead of reading a global env
// singleton, so the supervisor (the sole composition root) owns it.
package metrics

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"
)

type Datadog struct {
	client    *statsd.Client
	namespace string
	tags      []string
}

// NewDatadog creates a DogStatsD client pointed at addr. A construction
// failure is logged and returns a Datadog whose methods are no-ops:
// metrics are an observability nicety, not something actuator control
// should ever block or fail on.
func NewDatadog(addr, namespace string, tags []string) *Datadog {
	client, err := statsd.New(addr)
	if err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("metrics: failed to create dogstatsd client")
		return &Datadog{}
	}

	client.Namespace = namespace
	client.Tags = tags

	log.Info().Str("addr", addr).Str("namespace", namespace).Strs("tags", tags).Msg("metrics: dogstatsd initialized")
	return &Datadog{client: client, namespace: namespace, tags: tags}
}

func (d *Datadog) Gauge(name string, value float64, tags ...string) {
	if d.client == nil {
		return
	}
	if err := d.client.Gauge(name, value, tags, 1); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("metrics: failed to emit gauge")
	}
}

func (d *Datadog) Incr(name string, tags ...string) {
	if d.client == nil {
		return
	}
	if err := d.client.Incr(name, tags, 1); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("metrics: failed to emit counter")
	}
}
