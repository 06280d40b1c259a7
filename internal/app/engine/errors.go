package engine

import (
	"errors"
	"fmt"

	"github.com/covenant-network/option-layer/internal/app/domain/funds"
)

// Transition failures. Every precondition violation is terminal for the call:
// no record is written and no effects are queued.
var (
	// ErrInvalidExpiry rejects creation with an expiry at or before the
	// current height.
	ErrInvalidExpiry = errors.New("cannot create expired option")

	// ErrUnauthorized rejects transfer and execute calls from anyone but
	// the current owner.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrExpired rejects execute at or after the expiry height.
	ErrExpired = errors.New("option expired")

	// ErrNotYetExpired rejects burn before the expiry height.
	ErrNotYetExpired = errors.New("option not yet expired")

	// ErrUnexpectedFunds rejects burn calls that attach funds.
	ErrUnexpectedFunds = errors.New("don't send funds with burn")

	// ErrInvalidRecipient rejects transfer calls with an empty recipient.
	ErrInvalidRecipient = errors.New("recipient is required")
)

// FundMismatchError rejects execute calls whose attached funds do not exactly
// match the counter-offer. Expected carries the required amount for client
// diagnostics.
type FundMismatchError struct {
	Expected funds.Coins
}

func (e *FundMismatchError) Error() string {
	return fmt.Sprintf("must send exact counter offer: %s", e.Expected)
}
