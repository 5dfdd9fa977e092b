package service

import (
	"testing"

	"github.com/pixelmart/internal/constants"
)

func TestIsTransitionAllowed(t *testing.T) {
	cases := []struct {
		from    string
		to      string
		allowed bool
	}{
		{constants.OrderStatusPending, constants.OrderStatusProcessing, true},
		{constants.OrderStatusPending, constants.OrderStatusCancelled, true},
		{constants.OrderStatusPending, constants.OrderStatusCompleted, false},
		{constants.OrderStatusPending, constants.OrderStatusRefunded, false},
		{constants.OrderStatusProcessing, constants.OrderStatusCompleted, true},
		{constants.OrderStatusProcessing, constants.OrderStatusRefunded, true},
		{constants.OrderStatusProcessing, constants.OrderStatusPending, false},
		{constants.OrderStatusAwaitingCustomize, constants.OrderStatusUnderCustomization, true},
		{constants.OrderStatusUnderCustomization, constants.OrderStatusCompleted, true},
		{constants.OrderStatusCompleted, constants.OrderStatusProcessing, false},
		{constants.OrderStatusCancelled, constants.OrderStatusProcessing, false},
		{constants.OrderStatusRefunded, constants.OrderStatusCompleted, false},
	}
	for _, c := range cases {
		if got := isTransitionAllowed(c.from, c.to); got != c.allowed {
			t.Fatalf("%s -> %s: expected %v, got %v", c.from, c.to, c.allowed, got)
		}
	}
}

func TestIsTransitionAllowedSameStatus(t *testing.T) {
	for _, status := range []string{
		constants.OrderStatusPending,
		constants.OrderStatusCompleted,
		constants.OrderStatusCancelled,
	} {
		if !isTransitionAllowed(status, status) {
			t.Fatalf("same-status transition must be treated as idempotent replay: %s", status)
		}
	}
}
