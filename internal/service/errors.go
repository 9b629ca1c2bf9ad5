package service

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidState       = errors.New("invalid state for this action")
	ErrDuplicateRequest   = errors.New("pending request already exists")
	ErrInsufficientAmount = errors.New("contribution below required amount")
	ErrSubsidyUnavailable = errors.New("gas subsidy unavailable")
	ErrAlreadySettled     = errors.New("transaction already settled")
	ErrLedgerFailure      = errors.New("external ledger failure")
)
