// Package stage defines the contract the pipeline runner needs from each
// phase of a dubbing run.
package stage

import "context"

// Handler describes one pipeline phase. Prepare validates inputs and
// readiness, Execute does the work. Handlers close over the run state.
type Handler interface {
	Name() string
	Prepare(context.Context) error
	Execute(context.Context) error
	HealthCheck(context.Context) Health
}

// Health summarizes the readiness of a pipeline phase.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
