package billing

import "errors"

// Error taxonomy for the payment recording paths. Duplicate inserts on the
// provider payment id are NOT surfaced through ErrDuplicate by default; the
// recorder translates them into an idempotent success. ErrDuplicate is
// returned only in strict mode and for contexts where duplication is a real
// fault (e.g. a second company with the same name).
var (
	ErrNotFound               = errors.New("record not found")
	ErrMismatch               = errors.New("company/subscription mismatch")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrDuplicate              = errors.New("duplicate record")
	ErrRefundExceedsAvailable = errors.New("refund exceeds available amount")
	ErrSignatureInvalid       = errors.New("invalid webhook signature")
)
