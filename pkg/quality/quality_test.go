package quality

import (
	"testing"
	"time"
)

func TestControllerDwell(t *testing.T) {
	var changes []Mode
	c := NewController(func(m Mode) { changes = append(changes, m) })

	// Alternate strong and weak metrics every tick; dwell should cap
	// the number of actual mode changes regardless of how often
	// UpdateMetrics is called within the window.
	deadline := time.Now().Add(250 * time.Millisecond)
	tick := 0
	for time.Now().Before(deadline) {
		if tick%2 == 0 {
			c.UpdateMetrics(60*1_000_000/8, 10) // strong: high bandwidth, low rtt
		} else {
			c.UpdateMetrics(1_000_000/8, 300) // weak
		}
		tick++
		time.Sleep(10 * time.Millisecond)
	}

	if len(changes) > 1 {
		t.Fatalf("expected at most one automatic change inside the dwell window, got %d: %v", len(changes), changes)
	}
}

func TestControllerForcedPinBypassesDwell(t *testing.T) {
	c := NewController(nil)
	c.ForceMode(Minimal)
	if c.Current() != Minimal {
		t.Fatalf("expected Minimal after ForceMode, got %v", c.Current())
	}
	// Even with strong metrics immediately after, the pin should hold.
	c.UpdateMetrics(60*1_000_000/8, 10)
	if c.Current() != Minimal {
		t.Fatalf("pinned mode changed under automatic scoring: got %v", c.Current())
	}
}

func TestModeTable(t *testing.T) {
	if High.TargetFPS() != 30 || High.CompressionLevel() != 3 {
		t.Fatalf("High mode table mismatch: fps=%d level=%d", High.TargetFPS(), High.CompressionLevel())
	}
	if Minimal.ResolutionScale() != 0.25 {
		t.Fatalf("Minimal scale mismatch: %v", Minimal.ResolutionScale())
	}
}
