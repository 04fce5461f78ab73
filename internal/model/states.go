package model

// Side is the contract outcome a position is betting on.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the other side of a binary market.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Valid reports whether the side is one of yes/no.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Action is the direction of an order or fill.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Placement is the submission state of an order.
//
// pending -> submitted -> {confirmed | resting | failed}
//
// resting means the exchange accepted the order but has not matched it; it is
// not a completed position and is excluded from outcome accounting. failed and
// pending orders stay eligible for a later submission cycle.
type Placement string

const (
	PlacementPending   Placement = "pending"
	PlacementSubmitted Placement = "submitted"
	PlacementConfirmed Placement = "confirmed"
	PlacementResting   Placement = "resting"
	PlacementFailed    Placement = "failed"
)

// CanTransition reports whether the placement state machine permits moving
// from p to next.
func (p Placement) CanTransition(next Placement) bool {
	switch p {
	case PlacementPending:
		return next == PlacementSubmitted
	case PlacementSubmitted:
		return next == PlacementConfirmed || next == PlacementResting || next == PlacementFailed
	case PlacementResting:
		// A resting order is reclassified only once fills confirm it.
		return next == PlacementConfirmed
	case PlacementFailed:
		// Failed orders are retried on a later cycle.
		return next == PlacementSubmitted
	default:
		return false
	}
}

// Terminal reports whether no further submission transitions apply.
func (p Placement) Terminal() bool {
	return p == PlacementConfirmed
}

// Outcome is the resolution state of an order.
type Outcome string

const (
	OutcomeUndecided Outcome = "undecided"
	OutcomeWon       Outcome = "won"
	OutcomeLost      Outcome = "lost"
)
