// Package engine implements the option state machine as pure transition
// functions. Each transition maps (current record, environment facts, request
// parameters) to a new record or deletion plus ordered fund-transfer effects
// and log attributes. The engine never touches storage, clocks or I/O; the
// surrounding service owns persistence and effect delivery.
package engine

import (
	"fmt"
	"strings"

	"github.com/covenant-network/option-layer/internal/app/domain/funds"
	"github.com/covenant-network/option-layer/internal/app/domain/option"
)

// Env carries the host-supplied facts for one invocation.
type Env struct {
	// Height is the current block height.
	Height uint64
	// Sender is the authenticated caller.
	Sender string
	// SentFunds is the multiset of funds the caller attached to the call.
	SentFunds funds.Coins
	// Contract labels the escrow as the from-address on outbound effects.
	Contract string
}

// BankSend is an outbound fund-transfer effect, executed by the host after a
// successful transition.
type BankSend struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Amount funds.Coins `json:"amount"`
}

// Attribute is one key-value log entry emitted by a transition.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Result is the ordered output of a successful transition: effects first
// queued, then attributes. Order is preserved so effect logs are reproducible.
type Result struct {
	Messages   []BankSend
	Attributes []Attribute
}

// Create opens a new option. The caller's attached funds become the locked
// collateral; the expiry must lie strictly beyond the current height. The
// host guarantees no record exists yet for this instance, so the engine does
// not check.
func Create(env Env, counterOffer funds.Coins, expires uint64) (option.State, error) {
	if expires <= env.Height {
		return option.State{}, ErrInvalidExpiry
	}
	if err := counterOffer.Validate(); err != nil {
		return option.State{}, fmt.Errorf("counter offer: %w", err)
	}
	if err := env.SentFunds.Validate(); err != nil {
		return option.State{}, fmt.Errorf("collateral: %w", err)
	}

	return option.State{
		Creator:      env.Sender,
		Owner:        env.Sender,
		Collateral:   env.SentFunds.Clone(),
		CounterOffer: counterOffer.Clone(),
		Expires:      expires,
	}, nil
}

// Transfer hands ownership to recipient. Only the current owner may transfer;
// nothing else on the record changes and no funds move.
func Transfer(st option.State, env Env, recipient string) (option.State, Result, error) {
	if env.Sender != st.Owner {
		return option.State{}, Result{}, ErrUnauthorized
	}
	if strings.TrimSpace(recipient) == "" {
		return option.State{}, Result{}, ErrInvalidRecipient
	}

	next := st.Clone()
	next.Owner = recipient

	res := Result{
		Attributes: []Attribute{
			{Key: "action", Value: "transfer"},
			{Key: "owner", Value: recipient},
		},
	}
	return next, res, nil
}

// Execute exercises the option: the owner pays the exact counter-offer and
// receives the collateral. Preconditions are checked in order: authorization,
// expiry, fund match. On success the record is deleted and two effects are
// queued, counter-offer to the creator first, then collateral to the owner.
func Execute(st option.State, env Env) (Result, error) {
	if env.Sender != st.Owner {
		return Result{}, ErrUnauthorized
	}
	if env.Height >= st.Expires {
		return Result{}, ErrExpired
	}
	if !env.SentFunds.Equal(st.CounterOffer) {
		return Result{}, &FundMismatchError{Expected: st.CounterOffer.Clone()}
	}

	res := Result{
		Messages: []BankSend{
			{From: env.Contract, To: st.Creator, Amount: st.CounterOffer.Clone()},
			{From: env.Contract, To: st.Owner, Amount: st.Collateral.Clone()},
		},
		Attributes: []Attribute{
			{Key: "action", Value: "execute"},
		},
	}
	return res, nil
}

// Burn reclaims the collateral for the creator once the option has expired.
// Any caller may trigger it; the sole beneficiary is the fixed creator. The
// call must not attach funds. On success the record is deleted.
func Burn(st option.State, env Env) (Result, error) {
	if env.Height < st.Expires {
		return Result{}, ErrNotYetExpired
	}
	if !env.SentFunds.IsZero() {
		return Result{}, ErrUnexpectedFunds
	}

	res := Result{
		Messages: []BankSend{
			{From: env.Contract, To: st.Creator, Amount: st.Collateral.Clone()},
		},
		Attributes: []Attribute{
			{Key: "action", Value: "burn"},
		},
	}
	return res, nil
}
