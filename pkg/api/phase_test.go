package api

import "testing"

func TestPhaseOrder(t *testing.T) {
	if len(Phases) != 8 {
		t.Fatalf("expected 8 phases, got %d", len(Phases))
	}
	if Phases[0] != PhaseDiscovery {
		t.Errorf("first phase = %q, want discovery", Phases[0])
	}
	if Phases[len(Phases)-1] != PhaseHandover {
		t.Errorf("last phase = %q, want handover", Phases[len(Phases)-1])
	}
}

func TestPhaseProgress(t *testing.T) {
	tests := []struct {
		phase Phase
		want  float64
	}{
		{PhaseDiscovery, 12.5},
		{PhasePlanning, 25.0},
		{PhaseComponentSearch, 37.5},
		{PhaseGeneration, 50.0},
		{PhaseIntegration, 62.5},
		{PhaseTesting, 75.0},
		{PhaseDeployment, 87.5},
		{PhaseHandover, 100.0},
		{Phase("bogus"), 0},
	}

	for _, tt := range tests {
		if got := tt.phase.Progress(); got != tt.want {
			t.Errorf("Progress(%q) = %v, want %v", tt.phase, got, tt.want)
		}
	}
}

func TestPhaseProgressMonotonic(t *testing.T) {
	prev := 0.0
	for _, p := range Phases {
		got := p.Progress()
		if got <= prev {
			t.Errorf("Progress(%q) = %v, not greater than previous %v", p, got, prev)
		}
		prev = got
	}
	if prev != 100.0 {
		t.Errorf("final phase progress = %v, want 100.0", prev)
	}
}

func TestParsePhase(t *testing.T) {
	if p, ok := ParsePhase("deployment"); !ok || p != PhaseDeployment {
		t.Errorf("ParsePhase(deployment) = %q, %v", p, ok)
	}
	if _, ok := ParsePhase("shipping"); ok {
		t.Error("ParsePhase(shipping) should fail")
	}
	if _, ok := ParsePhase(""); ok {
		t.Error("ParsePhase(empty) should fail")
	}
}
