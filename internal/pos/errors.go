package pos

import "errors"

var (
	// ErrEmptyCart is returned when completing a sale with no line items; no
	// remote call is made.
	ErrEmptyCart = errors.New("pos: cart is empty")
	// ErrInsufficientPayment is raised by the completion gate before any
	// submission attempt.
	ErrInsufficientPayment = errors.New("pos: payment does not cover the total")
	// ErrSubmitInFlight rejects a second submission while one is pending.
	ErrSubmitInFlight = errors.New("pos: sale submission already in progress")
	// ErrSessionNotFound indicates an unknown or expired terminal session.
	ErrSessionNotFound = errors.New("pos: session not found")
	// ErrNoReceipt indicates no sale has completed in this session yet.
	ErrNoReceipt = errors.New("pos: no receipt available")
)
