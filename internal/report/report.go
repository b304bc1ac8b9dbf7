// Package report is the observability seam: components hand it failures and
// breadcrumbs, and it fans them out to the log and the event bus.
//
// Reporting is fire-and-forget by contract. Nothing here returns an error
// and nothing here may influence control flow in the caller.
package report

import (
	"postbot/internal/eventbus"
	logx "postbot/pkg/logx"
)

type Reporter interface {
	// Failure records an error within a named scope (e.g. "scanner.tick").
	Failure(scope string, err error, fields ...logx.Field)

	// Breadcrumb records a low-severity trace point for later debugging.
	Breadcrumb(msg, category string, fields ...logx.Field)
}

// FailureEvent is published on the bus for each reported failure.
type FailureEvent struct {
	Scope string `json:"scope"`
	Error string `json:"error"`
}

// New returns a Reporter backed by the logger and, optionally, the bus.
func New(log logx.Logger, bus eventbus.Bus) Reporter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &logReporter{log: log, bus: bus}
}

// Nop returns a Reporter that records nothing.
func Nop() Reporter { return &logReporter{log: logx.Nop()} }

type logReporter struct {
	log logx.Logger
	bus eventbus.Bus
}

func (r *logReporter) Failure(scope string, err error, fields ...logx.Field) {
	if err == nil {
		return
	}
	all := append([]logx.Field{logx.String("scope", scope), logx.Err(err)}, fields...)
	r.log.Error("failure reported", all...)
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{
			Type: "report.failure",
			Data: FailureEvent{Scope: scope, Error: err.Error()},
		})
	}
}

func (r *logReporter) Breadcrumb(msg, category string, fields ...logx.Field) {
	all := append([]logx.Field{logx.String("category", category)}, fields...)
	r.log.Debug(msg, all...)
}
