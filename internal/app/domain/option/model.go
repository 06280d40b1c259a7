// Package option holds the persisted option escrow record.
package option

import "github.com/covenant-network/option-layer/internal/app/domain/funds"

// State is the single record an option instance persists between calls.
// Creator, Collateral, CounterOffer and Expires are fixed at creation;
// only Owner changes afterwards, via transfer.
type State struct {
	// Creator opened the option and receives the counter-offer on execute,
	// or the collateral back on burn.
	Creator string `json:"creator" db:"creator"`
	// Owner is entitled to execute the option before expiry.
	Owner string `json:"owner" db:"owner"`
	// Collateral was locked by the creator when the option was opened.
	Collateral funds.Coins `json:"collateral"`
	// CounterOffer is what the owner must pay, exactly, to execute.
	CounterOffer funds.Coins `json:"counter_offer"`
	// Expires is the block height at and after which the option can only
	// be burned.
	Expires uint64 `json:"expires" db:"expires"`
}

// Clone returns a deep copy so callers can mutate without aliasing the
// stored record.
func (s State) Clone() State {
	s.Collateral = s.Collateral.Clone()
	s.CounterOffer = s.CounterOffer.Clone()
	return s
}
