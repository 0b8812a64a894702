package booking

import "errors"

var (
	// ErrInvalidState is returned when an operation targets an order whose
	// status does not allow it, such as paying an expired order.
	ErrInvalidState = errors.New("order state does not allow this operation")
	// ErrExpiryRaceLost means an expiry attempt lost the race against a
	// concurrent payment or extension. The sweeper treats it as a skip.
	ErrExpiryRaceLost = errors.New("order was paid or extended concurrently")
	// ErrMixedEvents rejects orders whose selections span multiple events.
	ErrMixedEvents = errors.New("order items must belong to a single event")
)
