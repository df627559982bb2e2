// Package notifications composes and delivers the booking confirmation
// emails. Delivery is always detached from the booking itself: a failed
// notification is logged and reported, never surfaced as a booking error.
package notifications

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAppointment Kind = "appointment"
	KindDiscovery   Kind = "discovery"
)

// DiscoveryTimePlaceholder is the time shown for discovery calls until the
// clinic fixes one.
const DiscoveryTimePlaceholder = "To be confirmed"

var (
	ErrUnknownKind = errors.New("invalid booking type")
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is stopped")
)

// Request is everything needed to render both messages for one booking.
// Date is already formatted for display.
type Request struct {
	Type  Kind   `json:"type"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
	Time  string `json:"time"`
	UPIID string `json:"upiId,omitempty"`
}

func (r Request) Validate() error {
	switch r.Type {
	case KindAppointment, KindDiscovery:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, r.Type)
	}
}

type Outcome int

const (
	Failed Outcome = iota
	Delivered
)

func (o Outcome) String() string {
	if o == Delivered {
		return "delivered"
	}
	return "failed"
}
