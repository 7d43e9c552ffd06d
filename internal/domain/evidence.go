package domain

import (
	"encoding/json"
)

// EvidenceMap maps canonical parameter names to the observations discovered for them,
// in discovery order. It only grows: observations are appended, never replaced.
// An EvidenceMap is not safe for concurrent writers; the aggregator merges per-article
// batches from a single goroutine.
type EvidenceMap struct {
	order        []string
	observations map[string][]ParameterObservation
}

// NewEvidenceMap returns an empty evidence map.
func NewEvidenceMap() *EvidenceMap {
	return &EvidenceMap{observations: make(map[string][]ParameterObservation)}
}

// Add appends an observation under its name.
func (m *EvidenceMap) Add(obs ParameterObservation) {
	if _, ok := m.observations[obs.Name]; !ok {
		m.order = append(m.order, obs.Name)
	}
	m.observations[obs.Name] = append(m.observations[obs.Name], obs)
}

// Merge appends a batch of observations preserving their order.
func (m *EvidenceMap) Merge(batch []ParameterObservation) {
	for _, obs := range batch {
		m.Add(obs)
	}
}

// Has reports whether at least one observation exists for name.
func (m *EvidenceMap) Has(name string) bool {
	return len(m.observations[name]) > 0
}

// Get returns a copy of the observations recorded for name.
func (m *EvidenceMap) Get(name string) []ParameterObservation {
	obs := m.observations[name]
	if len(obs) == 0 {
		return nil
	}
	out := make([]ParameterObservation, len(obs))
	copy(out, obs)
	return out
}

// Names returns parameter names in the order they were first seen.
func (m *EvidenceMap) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Counts returns the number of observations per parameter.
func (m *EvidenceMap) Counts() map[string]int {
	counts := make(map[string]int, len(m.order))
	for _, name := range m.order {
		counts[name] = len(m.observations[name])
	}
	return counts
}

// Len returns the total number of observations.
func (m *EvidenceMap) Len() int {
	n := 0
	for _, obs := range m.observations {
		n += len(obs)
	}
	return n
}

// All flattens the map into discrete records, grouped by parameter in first-seen order.
func (m *EvidenceMap) All() []ParameterObservation {
	out := make([]ParameterObservation, 0, m.Len())
	for _, name := range m.order {
		out = append(out, m.observations[name]...)
	}
	return out
}

// MarshalJSON encodes the map as an object of parameter name to observation list.
func (m *EvidenceMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.observations)
}
