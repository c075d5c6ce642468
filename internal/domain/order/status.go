package order

import "github.com/go-faster/errors"

// Status is the order lifecycle state.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusCooking   Status = "COOKING"
	StatusOnWay     Status = "ON_WAY"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// ErrUnknownStatus is returned when parsing an unrecognized status value.
var ErrUnknownStatus = errors.New("unknown order status")

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusNew, StatusCooking, StatusOnWay, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", ErrUnknownStatus
	}
}

// Terminal reports whether the status permits no further changes. Items
// and modifications of a terminal order are immutable.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// next is the single forward step of the fulfillment pipeline.
var next = map[Status]Status{
	StatusNew:     StatusCooking,
	StatusCooking: StatusOnWay,
	StatusOnWay:   StatusDelivered,
}

// CanTransitionTo reports whether the lifecycle permits moving from s to
// target: one step forward along NEW -> COOKING -> ON_WAY -> DELIVERED,
// or CANCELLED from any non-terminal state.
func (s Status) CanTransitionTo(target Status) bool {
	if s.Terminal() {
		return false
	}
	if target == StatusCancelled {
		return true
	}
	return next[s] == target
}
