package simulator

import (
	"log/slog"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/schedule"
)

// Delays paces bot messages.
type Delays struct {
	// Start is the pause between a reset and the first bot message.
	Start time.Duration
	// Buttons is the pause between a quick-replies label and its buttons.
	Buttons time.Duration
	// Advance is the pause between user input and the next node.
	Advance time.Duration
}

// DefaultDelays matches the pacing of the builder's preview panel.
var DefaultDelays = Delays{
	Start:   500 * time.Millisecond,
	Buttons: 500 * time.Millisecond,
	Advance: 1000 * time.Millisecond,
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s schedule.Scheduler) Option {
	return func(sim *Simulator) {
		sim.sched = s
	}
}

// WithDelays overrides the message pacing.
func WithDelays(d Delays) Option {
	return func(sim *Simulator) {
		sim.delays = d
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sim *Simulator) {
		sim.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(sim *Simulator) {
		sim.hooks = hooks
	}
}

// WithSessionID tags the state and every event with a session id.
func WithSessionID(id string) Option {
	return func(sim *Simulator) {
		sim.sessionID = id
	}
}

// WithIDGenerator replaces the message id generator (UUIDs by default).
func WithIDGenerator(fn func() string) Option {
	return func(sim *Simulator) {
		sim.newID = fn
	}
}
