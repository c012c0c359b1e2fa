package txvalidator

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks run performance counters. All methods are safe for
// concurrent use; rule timings are recorded from the engine's worker
// goroutines.
type Metrics struct {
	documentsTotal atomic.Uint64
	errorsTotal    atomic.Uint64
	warningsTotal  atomic.Uint64

	schemaTime atomic.Uint64 // nanoseconds

	ruleTiming sync.Map // map[string]*ruleMetrics
}

type ruleMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64 // nanoseconds
	diagnostics atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordDocument records one validated document and its diagnostic counts.
func (m *Metrics) RecordDocument(errors, warnings int) {
	m.documentsTotal.Add(1)
	m.errorsTotal.Add(uint64(errors))
	m.warningsTotal.Add(uint64(warnings))
}

// RecordSchemaValidation accumulates time spent in formal schema validation.
func (m *Metrics) RecordSchemaValidation(d time.Duration) {
	m.schemaTime.Add(uint64(d.Nanoseconds()))
}

// RecordRule records one rule invocation.
func (m *Metrics) RecordRule(name string, d time.Duration, diagnostics int) {
	v, _ := m.ruleTiming.LoadOrStore(name, &ruleMetrics{})
	rm := v.(*ruleMetrics)
	rm.invocations.Add(1)
	rm.totalTime.Add(uint64(d.Nanoseconds()))
	rm.diagnostics.Add(uint64(diagnostics))
}

// RuleStats is a point-in-time snapshot of one rule's counters.
type RuleStats struct {
	Name        string
	Invocations uint64
	TotalTime   time.Duration
	Diagnostics uint64
}

// Stats is a point-in-time snapshot of all counters.
type Stats struct {
	Documents  uint64
	Errors     uint64
	Warnings   uint64
	SchemaTime time.Duration
	Rules      []RuleStats
}

// Snapshot returns the current counters. Rules are sorted by name so the
// snapshot is deterministic.
func (m *Metrics) Snapshot() Stats {
	s := Stats{
		Documents:  m.documentsTotal.Load(),
		Errors:     m.errorsTotal.Load(),
		Warnings:   m.warningsTotal.Load(),
		SchemaTime: time.Duration(m.schemaTime.Load()),
	}
	m.ruleTiming.Range(func(key, value any) bool {
		rm := value.(*ruleMetrics)
		s.Rules = append(s.Rules, RuleStats{
			Name:        key.(string),
			Invocations: rm.invocations.Load(),
			TotalTime:   time.Duration(rm.totalTime.Load()),
			Diagnostics: rm.diagnostics.Load(),
		})
		return true
	})
	sort.Slice(s.Rules, func(i, j int) bool { return s.Rules[i].Name < s.Rules[j].Name })
	return s
}
