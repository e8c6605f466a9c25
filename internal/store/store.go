package store

import (
	"context"
	"errors"
	"time"

	"usermgmt/internal/models"
)

// DefaultTTL is how long a reset token stays redeemable after issuance.
const DefaultTTL = 24 * time.Hour

// ErrPersistence wraps any storage read/write failure. A failed Issue must
// never leak its token to a caller.
var ErrPersistence = errors.New("store: persistence failure")

// ValidationState classifies a token lookup.
type ValidationState int

const (
	// StateNotFound covers both tokens that never existed and tokens that
	// were already consumed. Callers must not be able to tell those apart.
	StateNotFound ValidationState = iota
	// StateExpired is an unused token past its expiry.
	StateExpired
	// StateValid is an unused, unexpired token.
	StateValid
)

// Validation is the outcome of a Validate call. Record is set for
// StateExpired and StateValid only.
type Validation struct {
	State  ValidationState
	Record *models.ResetTokenRecord
}

// TokenStore persists reset-token records and enforces the single-use/expiry
// state machine. Records are never deleted.
type TokenStore interface {
	// Issue generates a unique token for the user, persists it unused with
	// expiry = now + TTL, and returns the persisted record.
	Issue(ctx context.Context, user models.TargetUser) (*models.ResetTokenRecord, error)

	// Validate looks the token up among unused records only.
	Validate(ctx context.Context, token string) (Validation, error)

	// Finalize marks an unused token used. Returns false with a nil error
	// when the token is already used or unknown; that state is terminal and
	// the second call is a no-op.
	Finalize(ctx context.Context, token string) (bool, error)
}
