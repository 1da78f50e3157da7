// Package channel implements the per-channel order lifecycle.
//
// A Channel owns at most one working order. It never performs I/O: every
// transition returns the Action the reconciler must carry out.
package channel

import "github.com/namn-grg/dual-channel-bot/internal/domain/schema"

// State enumerates the channel lifecycle.
type State uint8

const (
	// Idle has no desired order and no working order.
	Idle State = iota
	// Desired has a target and is waiting for the reconciler to place it.
	Desired
	// Placing has a place request in flight.
	Placing
	// Live has a confirmed working order.
	Live
	// Replacing is cancelling the working order before placing the newest target.
	Replacing
	// Cancelling is cancelling the working order and will return to Idle.
	Cancelling
	// Unknown lost track of its order after a command timeout; only a reconciliation query resolves it.
	Unknown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Desired:
		return "desired"
	case Placing:
		return "placing"
	case Live:
		return "live"
	case Replacing:
		return "replacing"
	case Cancelling:
		return "cancelling"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// ActionKind enumerates what a transition asks the reconciler to do.
type ActionKind uint8

const (
	ActionNone ActionKind = iota
	// ActionPlace queues a placement of the channel's current target.
	ActionPlace
	// ActionCancel cancels the channel's working order.
	ActionCancel
	// ActionOrphan cancels an exchange order the channel no longer owns.
	ActionOrphan
)

func (k ActionKind) String() string {
	switch k {
	case ActionPlace:
		return "place"
	case ActionCancel:
		return "cancel"
	case ActionOrphan:
		return "orphan_cancel"
	default:
		return "none"
	}
}

// Action is the side effect requested by a transition.
type Action struct {
	Kind    ActionKind
	Channel schema.ChannelID
	Order   schema.Order
}

// None reports whether nothing needs doing.
func (a Action) None() bool {
	return a.Kind == ActionNone
}
