package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotRegistered     = errors.New("user not registered")
	ErrAlreadyRegistered = errors.New("user already registered")

	ErrCodeNotFound      = errors.New("code not found")
	ErrCodeNotOwned      = errors.New("code belongs to another user")
	ErrCodeSettled       = errors.New("code already settled")
	ErrSettlementPending = errors.New("settlement already pending for code")

	ErrSettlementNotFound = errors.New("settlement not found")
	ErrAlreadyProcessed   = errors.New("settlement already processed")
	ErrReceiptRequired    = errors.New("receipt required before approval")

	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketClosed   = errors.New("ticket already closed")
	ErrEmptyMessage   = errors.New("message is empty")

	ErrNotAdmin              = errors.New("admin rights required")
	ErrNotPrimaryAdmin       = errors.New("only the primary admin can remove admins")
	ErrPrimaryAdminImmutable = errors.New("primary admin cannot be removed")
	ErrAdminExists           = errors.New("already an admin")
	ErrAdminNotFound         = errors.New("admin not found")

	ErrLinkExists   = errors.New("link already listed")
	ErrLinkNotFound = errors.New("link not found")
)

// ValidationError reports malformed input before any ledger mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
