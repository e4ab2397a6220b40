package core

import "errors"

// Sentinel errors for the billing and inventory domain. Services wrap these
// with fmt.Errorf("...: %w", ...) so callers can classify failures with
// errors.Is while still getting a descriptive message.
var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConstraintViolation covers scalar input violations: non-positive
	// quantities, negative amounts, empty line sets, malformed references.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidStateTransition is returned when an operation is not legal
	// in the entity's current status (e.g. paying a void invoice).
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrInsufficientStock is returned when a consumption would drive a
	// product's on-hand quantity below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrOverReturn is returned when a supplier return exceeds the quantity
	// still returnable on a purchase order line.
	ErrOverReturn = errors.New("return exceeds returnable quantity")

	// ErrExcessiveRefund is returned when a refund exceeds the refundable
	// portion of the payment it targets.
	ErrExcessiveRefund = errors.New("refund exceeds refundable amount")

	// ErrForbidden is returned when the acting user's role does not permit
	// the operation.
	ErrForbidden = errors.New("operation not permitted for role")
)
