// Package health runs the connectivity checks behind `schoolctl doctor`:
// each Checker probes one dependency (backend, session storage, token) and
// the Manager runs them concurrently under a per-check timeout.
package health

import (
	"context"
	"time"
)

// Checker probes a single dependency.
type Checker interface {
	// Name is a short lowercase label such as "api" or "storage".
	Name() string

	// Check must honour ctx and never return nil.
	Check(ctx context.Context) *Result
}

// Status is the outcome of one check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) String() string {
	return string(s)
}

// Symbol is the marker printed next to a check in text output.
func (s Status) Symbol() string {
	switch s {
	case StatusHealthy:
		return "✓"
	case StatusDegraded:
		return "⚠"
	default:
		return "✗"
	}
}

// Result is what a Checker reports.
type Result struct {
	Status  Status         `json:"status" yaml:"status"`
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	Latency time.Duration  `json:"latency" yaml:"latency"`
}

func newResult(status Status, message string) *Result {
	return &Result{Status: status, Message: message, Details: map[string]any{}}
}

// Healthy, Degraded and Unhealthy build results with an empty detail map.
func Healthy(message string) *Result { return newResult(StatusHealthy, message) }
func Degraded(message string) *Result { return newResult(StatusDegraded, message) }
func Unhealthy(message string) *Result { return newResult(StatusUnhealthy, message) }

// WithDetail adds key to the result's details.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

// CheckFunc adapts a function into a Checker.
type CheckFunc struct {
	Label string
	Fn    func(ctx context.Context) *Result
}

func (c CheckFunc) Name() string { return c.Label }

func (c CheckFunc) Check(ctx context.Context) *Result { return c.Fn(ctx) }
