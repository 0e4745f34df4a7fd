// Package input defines the synthetic-input collaborator interface
// consumed by the host session controller. Platform-specific input
// injectors are out of scope for this core; NullInjector is the
// non-platform implementation used by headless hosts and tests.
package input

import (
	"sync"

	"github.com/beamdesk/beamdesk/pkg/wire"
)

// Injector performs synthetic input on the host's desktop. Its
// methods may block and MUST only be called from a worker dedicated
// to blocking work, never from the session's read loop.
type Injector interface {
	Move(x, y int32)
	Click(button wire.MouseButton, pressed bool, x, y int32)
	Scroll(deltaX, deltaY float64)
	Key(name string, pressed bool, mods wire.KeyModifiers)
}

// Event is one recorded call against a NullInjector, for assertions in
// tests that the session controller dispatched input correctly.
type Event struct {
	Kind      string // "move", "click", "scroll", "key"
	X, Y      int32
	Button    wire.MouseButton
	Pressed   bool
	DeltaX    float64
	DeltaY    float64
	Key       string
	Modifiers wire.KeyModifiers
}

// NullInjector performs no real input; it records every call for
// inspection, standing in for a platform injector in headless hosts
// and tests.
type NullInjector struct {
	mu     sync.Mutex
	events []Event
}

func (n *NullInjector) Move(x, y int32) {
	n.record(Event{Kind: "move", X: x, Y: y})
}

func (n *NullInjector) Click(button wire.MouseButton, pressed bool, x, y int32) {
	n.record(Event{Kind: "click", Button: button, Pressed: pressed, X: x, Y: y})
}

func (n *NullInjector) Scroll(deltaX, deltaY float64) {
	n.record(Event{Kind: "scroll", DeltaX: deltaX, DeltaY: deltaY})
}

func (n *NullInjector) Key(name string, pressed bool, mods wire.KeyModifiers) {
	n.record(Event{Kind: "key", Key: name, Pressed: pressed, Modifiers: mods})
}

func (n *NullInjector) record(e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

// Events returns a snapshot of every call recorded so far.
func (n *NullInjector) Events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}
