package api

import "math"

// Phase represents a delivery phase of a project. Phases are ordered:
// a project moves from discovery toward handover, and the phase index
// drives the progress percentage reported to clients.
type Phase string

const (
	PhaseDiscovery       Phase = "discovery"
	PhasePlanning        Phase = "planning"
	PhaseComponentSearch Phase = "component_search"
	PhaseGeneration      Phase = "generation"
	PhaseIntegration     Phase = "integration"
	PhaseTesting         Phase = "testing"
	PhaseDeployment      Phase = "deployment"
	PhaseHandover        Phase = "handover"
)

// Phases lists all delivery phases in order.
var Phases = []Phase{
	PhaseDiscovery,
	PhasePlanning,
	PhaseComponentSearch,
	PhaseGeneration,
	PhaseIntegration,
	PhaseTesting,
	PhaseDeployment,
	PhaseHandover,
}

// Valid reports whether p is one of the known delivery phases.
func (p Phase) Valid() bool {
	return p.Index() >= 0
}

// Index returns the zero-based position of p in the phase order,
// or -1 for an unknown phase.
func (p Phase) Index() int {
	for i, ph := range Phases {
		if ph == p {
			return i
		}
	}
	return -1
}

// Progress returns the completion percentage for p, rounded to one
// decimal place. Discovery yields 12.5 and handover yields 100.0.
// An unknown phase yields 0.
func (p Phase) Progress() float64 {
	idx := p.Index()
	if idx < 0 {
		return 0
	}
	pct := float64(idx+1) / float64(len(Phases)) * 100
	return math.Round(pct*10) / 10
}

// ParsePhase converts a string to a Phase, returning false if the
// string does not name a known phase.
func ParsePhase(s string) (Phase, bool) {
	p := Phase(s)
	if p.Valid() {
		return p, true
	}
	return "", false
}
