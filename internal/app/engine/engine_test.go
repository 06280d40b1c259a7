package engine

import (
	"errors"
	"testing"

	"github.com/covenant-network/option-layer/internal/app/domain/funds"
	"github.com/covenant-network/option-layer/internal/app/domain/option"
)

const contractAddr = "contract"

func newOption(t *testing.T) option.State {
	t.Helper()
	st, err := Create(Env{
		Height:    100,
		Sender:    "alice",
		SentFunds: funds.New(funds.NewCoin(1000, "earth")),
		Contract:  contractAddr,
	}, funds.New(funds.NewCoin(500, "token")), 200)
	if err != nil {
		t.Fatalf("create option: %v", err)
	}
	return st
}

func TestCreate(t *testing.T) {
	st := newOption(t)

	if st.Creator != "alice" || st.Owner != "alice" {
		t.Fatalf("creator should start as owner: %#v", st)
	}
	if !st.Collateral.Equal(funds.New(funds.NewCoin(1000, "earth"))) {
		t.Fatalf("collateral should equal sent funds: %s", st.Collateral)
	}
	if !st.CounterOffer.Equal(funds.New(funds.NewCoin(500, "token"))) {
		t.Fatalf("unexpected counter offer: %s", st.CounterOffer)
	}
	if st.Expires != 200 {
		t.Fatalf("expires = %d, want 200", st.Expires)
	}
}

func TestCreate_InvalidExpiry(t *testing.T) {
	for _, expires := range []uint64{0, 99, 100} {
		_, err := Create(Env{Height: 100, Sender: "alice"}, nil, expires)
		if !errors.Is(err, ErrInvalidExpiry) {
			t.Fatalf("expires=%d: got %v, want ErrInvalidExpiry", expires, err)
		}
	}
}

func TestTransfer(t *testing.T) {
	st := newOption(t)

	next, res, err := Transfer(st, Env{Height: 110, Sender: "alice"}, "bob")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if next.Owner != "bob" {
		t.Fatalf("owner = %q, want bob", next.Owner)
	}
	if next.Creator != st.Creator || next.Expires != st.Expires ||
		!next.Collateral.Equal(st.Collateral) || !next.CounterOffer.Equal(st.CounterOffer) {
		t.Fatalf("transfer must change only the owner: %#v", next)
	}
	if len(res.Messages) != 0 {
		t.Fatalf("transfer must not move funds, got %d messages", len(res.Messages))
	}
	wantAttrs := []Attribute{{Key: "action", Value: "transfer"}, {Key: "owner", Value: "bob"}}
	if len(res.Attributes) != len(wantAttrs) {
		t.Fatalf("attributes = %v, want %v", res.Attributes, wantAttrs)
	}
	for i, attr := range wantAttrs {
		if res.Attributes[i] != attr {
			t.Fatalf("attribute[%d] = %v, want %v", i, res.Attributes[i], attr)
		}
	}
}

func TestTransfer_Unauthorized(t *testing.T) {
	st := newOption(t)

	if _, _, err := Transfer(st, Env{Height: 110, Sender: "mallory"}, "mallory"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}

	// after a transfer the previous owner loses authority
	next, _, err := Transfer(st, Env{Height: 110, Sender: "alice"}, "bob")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, _, err := Transfer(next, Env{Height: 111, Sender: "alice"}, "carol"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("former owner should be unauthorized, got %v", err)
	}
}

func TestTransfer_EmptyRecipient(t *testing.T) {
	st := newOption(t)

	for _, recipient := range []string{"", "   "} {
		if _, _, err := Transfer(st, Env{Height: 110, Sender: "alice"}, recipient); !errors.Is(err, ErrInvalidRecipient) {
			t.Fatalf("recipient %q: got %v, want ErrInvalidRecipient", recipient, err)
		}
	}
}

func TestExecute(t *testing.T) {
	st := newOption(t)
	st, _, err := Transfer(st, Env{Height: 110, Sender: "alice"}, "bob")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	res, err := Execute(st, Env{
		Height:    150,
		Sender:    "bob",
		SentFunds: funds.New(funds.NewCoin(500, "token")),
		Contract:  contractAddr,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(res.Messages) != 2 {
		t.Fatalf("expected 2 bank sends, got %d", len(res.Messages))
	}
	// counter-offer to the creator first, then collateral to the owner
	first, second := res.Messages[0], res.Messages[1]
	if first.From != contractAddr || first.To != "alice" || !first.Amount.Equal(funds.New(funds.NewCoin(500, "token"))) {
		t.Fatalf("unexpected first send: %#v", first)
	}
	if second.From != contractAddr || second.To != "bob" || !second.Amount.Equal(funds.New(funds.NewCoin(1000, "earth"))) {
		t.Fatalf("unexpected second send: %#v", second)
	}
	if len(res.Attributes) != 1 || res.Attributes[0] != (Attribute{Key: "action", Value: "execute"}) {
		t.Fatalf("unexpected attributes: %v", res.Attributes)
	}
}

func TestExecute_Unauthorized(t *testing.T) {
	st := newOption(t)
	_, err := Execute(st, Env{Height: 150, Sender: "bob", SentFunds: st.CounterOffer})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}

func TestExecute_Expired(t *testing.T) {
	st := newOption(t)
	for _, height := range []uint64{200, 250} {
		_, err := Execute(st, Env{Height: height, Sender: "alice", SentFunds: st.CounterOffer})
		if !errors.Is(err, ErrExpired) {
			t.Fatalf("height=%d: got %v, want ErrExpired", height, err)
		}
	}
}

func TestExecute_FundMismatch(t *testing.T) {
	st := newOption(t)

	cases := map[string]funds.Coins{
		"deficit":     funds.New(funds.NewCoin(400, "token")),
		"excess":      funds.New(funds.NewCoin(600, "token")),
		"extra denom": funds.New(funds.NewCoin(500, "token"), funds.NewCoin(1, "earth")),
		"no funds":    nil,
	}
	for name, sent := range cases {
		_, err := Execute(st, Env{Height: 150, Sender: "alice", SentFunds: sent})
		var mismatch *FundMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("%s: got %v, want FundMismatchError", name, err)
		}
		if !mismatch.Expected.Equal(st.CounterOffer) {
			t.Fatalf("%s: expected payload %s, want %s", name, mismatch.Expected, st.CounterOffer)
		}
	}
}

func TestExecute_FundOrderIndependent(t *testing.T) {
	st, err := Create(Env{
		Height:    100,
		Sender:    "alice",
		SentFunds: funds.New(funds.NewCoin(1000, "earth")),
	}, funds.New(funds.NewCoin(500, "token"), funds.NewCoin(20, "earth")), 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// same multiset, reversed order
	sent := funds.New(funds.NewCoin(20, "earth"), funds.NewCoin(500, "token"))
	if _, err := Execute(st, Env{Height: 150, Sender: "alice", SentFunds: sent}); err != nil {
		t.Fatalf("reordered funds should match: %v", err)
	}
}

func TestBurn(t *testing.T) {
	st := newOption(t)

	// anyone may burn once expired, with no funds attached
	res, err := Burn(st, Env{Height: 250, Sender: "anyone", Contract: contractAddr})
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if len(res.Messages) != 1 {
		t.Fatalf("expected 1 bank send, got %d", len(res.Messages))
	}
	send := res.Messages[0]
	if send.To != "alice" || !send.Amount.Equal(funds.New(funds.NewCoin(1000, "earth"))) {
		t.Fatalf("collateral should return to the creator: %#v", send)
	}
	if len(res.Attributes) != 1 || res.Attributes[0] != (Attribute{Key: "action", Value: "burn"}) {
		t.Fatalf("unexpected attributes: %v", res.Attributes)
	}
}

func TestBurn_NotYetExpired(t *testing.T) {
	st := newOption(t)
	for _, height := range []uint64{100, 150, 199} {
		if _, err := Burn(st, Env{Height: height}); !errors.Is(err, ErrNotYetExpired) {
			t.Fatalf("height=%d: got %v, want ErrNotYetExpired", height, err)
		}
	}
}

func TestBurn_UnexpectedFunds(t *testing.T) {
	st := newOption(t)
	env := Env{Height: 250, Sender: "anyone", SentFunds: funds.New(funds.NewCoin(1, "token"))}
	if _, err := Burn(st, env); !errors.Is(err, ErrUnexpectedFunds) {
		t.Fatalf("got %v, want ErrUnexpectedFunds", err)
	}
}

// At any height exactly one of execute and burn is admissible time-wise.
func TestExecuteBurnHeightExclusivity(t *testing.T) {
	st := newOption(t)
	for _, height := range []uint64{101, 199, 200, 201, 300} {
		env := Env{Height: height, Sender: "alice", SentFunds: st.CounterOffer}
		_, execErr := Execute(st, env)
		_, burnErr := Burn(st, Env{Height: height})

		execOK := execErr == nil
		burnOK := burnErr == nil
		if execOK == burnOK {
			t.Fatalf("height=%d: execute ok=%v, burn ok=%v; exactly one must be admissible", height, execOK, burnOK)
		}
		if height < st.Expires && !execOK {
			t.Fatalf("height=%d: execute should succeed before expiry: %v", height, execErr)
		}
		if height >= st.Expires && !burnOK {
			t.Fatalf("height=%d: burn should succeed at/after expiry: %v", height, burnErr)
		}
	}
}
