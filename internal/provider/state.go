package provider

import "slices"

// DeliveryState tracks a record through the send lifecycle.
type DeliveryState string

const (
	Received DeliveryState = "received"
	Queued   DeliveryState = "queued"
	Sending  DeliveryState = "sending"
	Sent     DeliveryState = "sent"
	Failed   DeliveryState = "failed"
)

// deliveryTransitions defines allowed state transitions. Sent, Failed and
// Received are terminal; a failed record is replaced, never revived.
var deliveryTransitions = map[DeliveryState][]DeliveryState{
	Queued:  {Sending, Sent, Failed},
	Sending: {Sent, Failed},
}

// CanTransition reports whether a record in state from may move to to.
func CanTransition(from, to DeliveryState) bool {
	return slices.Contains(deliveryTransitions[from], to)
}

// Terminal reports whether no further transition is possible from s.
func (s DeliveryState) Terminal() bool {
	return len(deliveryTransitions[s]) == 0
}

// Valid reports whether s is a known state.
func (s DeliveryState) Valid() bool {
	switch s {
	case Received, Queued, Sending, Sent, Failed:
		return true
	}
	return false
}
