// Package funds models amounts of on-chain denominations. A Coins value is a
// multiset keyed by denomination; comparisons never depend on the order in
// which coins were supplied.
package funds

import (
	"fmt"
	"sort"
	"strings"
)

// Coin is an amount of a single denomination.
type Coin struct {
	Denom  string `json:"denom"`
	Amount uint64 `json:"amount"`
}

// Coins is a multiset of coins. Callers may hold it in any order; use
// Normalize or Equal rather than comparing slices directly.
type Coins []Coin

// New builds a Coins value from the given coins.
func New(coins ...Coin) Coins {
	return Coins(coins)
}

// NewCoin returns a single coin.
func NewCoin(amount uint64, denom string) Coin {
	return Coin{Denom: denom, Amount: amount}
}

// Validate reports the first malformed coin: an empty denomination.
func (c Coins) Validate() error {
	for _, coin := range c {
		if strings.TrimSpace(coin.Denom) == "" {
			return fmt.Errorf("coin with empty denomination")
		}
	}
	return nil
}

// IsZero reports whether the multiset carries no value.
func (c Coins) IsZero() bool {
	for _, coin := range c {
		if coin.Amount != 0 {
			return false
		}
	}
	return true
}

// Normalize returns a canonical copy: duplicate denominations merged,
// zero amounts dropped, sorted by denomination. The receiver is not modified.
func (c Coins) Normalize() Coins {
	merged := make(map[string]uint64, len(c))
	for _, coin := range c {
		merged[coin.Denom] += coin.Amount
	}

	out := make(Coins, 0, len(merged))
	for denom, amount := range merged {
		if amount == 0 {
			continue
		}
		out = append(out, Coin{Denom: denom, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out
}

// Equal reports whether both multisets carry exactly the same amounts of the
// same denominations, regardless of ordering or zero-amount entries.
func (c Coins) Equal(other Coins) bool {
	a, b := c.Normalize(), other.Normalize()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the multiset.
func (c Coins) Clone() Coins {
	if c == nil {
		return nil
	}
	out := make(Coins, len(c))
	copy(out, c)
	return out
}

// String renders the multiset in canonical order, e.g. "1000earth,500token".
func (c Coins) String() string {
	norm := c.Normalize()
	if len(norm) == 0 {
		return ""
	}
	parts := make([]string, 0, len(norm))
	for _, coin := range norm {
		parts = append(parts, fmt.Sprintf("%d%s", coin.Amount, coin.Denom))
	}
	return strings.Join(parts, ",")
}
