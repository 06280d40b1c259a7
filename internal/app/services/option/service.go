// Package option hosts the option escrow state machine: it builds the
// environment for each call, runs the pure engine transition, persists the
// outcome and forwards effects. The record is only ever written after the
// engine succeeds, so a failed call leaves no partial state behind.
package option

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/covenant-network/option-layer/internal/app/chain"
	"github.com/covenant-network/option-layer/internal/app/domain/funds"
	optiondomain "github.com/covenant-network/option-layer/internal/app/domain/option"
	"github.com/covenant-network/option-layer/internal/app/engine"
	"github.com/covenant-network/option-layer/internal/app/metrics"
	"github.com/covenant-network/option-layer/internal/app/storage"
	"github.com/covenant-network/option-layer/pkg/logger"
)

// Event describes one successful transition, for observability feeds.
type Event struct {
	Instance   string             `json:"instance"`
	Action     string             `json:"action"`
	Height     uint64             `json:"height"`
	Attributes []engine.Attribute `json:"attributes"`
	Time       time.Time          `json:"time"`
}

// EventSink receives transition events after they are committed.
type EventSink interface {
	Publish(ev Event)
}

// Service is the host surface of the option state machine.
type Service struct {
	store   storage.OptionStore
	heights chain.HeightSource
	bank    BankSink
	events  EventSink
	log     *logger.Logger
}

// New constructs an option service. A nil bank sink defaults to the logging
// sink and a nil logger to the package default.
func New(store storage.OptionStore, heights chain.HeightSource, bank BankSink, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("options")
	}
	if bank == nil {
		bank = NewLogSink(log)
	}
	return &Service{
		store:   store,
		heights: heights,
		bank:    bank,
		log:     log,
	}
}

// WithEvents attaches a sink for committed transition events.
func (s *Service) WithEvents(events EventSink) {
	s.events = events
}

// contractAddr labels outbound effects with the escrow address of an instance.
func contractAddr(id string) string {
	return "option/" + id
}

func (s *Service) env(ctx context.Context, id, sender string, sent funds.Coins) (engine.Env, error) {
	height, err := s.heights.BlockHeight(ctx)
	if err != nil {
		return engine.Env{}, fmt.Errorf("block height: %w", err)
	}
	return engine.Env{
		Height:    height,
		Sender:    sender,
		SentFunds: sent,
		Contract:  contractAddr(id),
	}, nil
}

// Create opens a new option instance. The sender's attached funds become the
// collateral. Returns the new instance ID and record.
func (s *Service) Create(ctx context.Context, sender string, sent, counterOffer funds.Coins, expires uint64) (id string, st optiondomain.State, err error) {
	defer func() { metrics.RecordTransition("create", err, 0) }()

	if sender == "" {
		return "", optiondomain.State{}, fmt.Errorf("sender is required")
	}

	id = uuid.NewString()
	env, err := s.env(ctx, id, sender, sent)
	if err != nil {
		return "", optiondomain.State{}, err
	}

	st, err = engine.Create(env, counterOffer, expires)
	if err != nil {
		return "", optiondomain.State{}, err
	}
	if err = s.store.CreateOption(ctx, id, st); err != nil {
		return "", optiondomain.State{}, fmt.Errorf("persist option: %w", err)
	}

	s.log.WithField("instance", id).
		WithField("creator", sender).
		WithField("collateral", st.Collateral.String()).
		WithField("counter_offer", st.CounterOffer.String()).
		WithField("expires", st.Expires).
		Info("option created")
	s.publish(id, "create", env.Height, nil)
	return id, st, nil
}

// Transfer hands the option to a new owner. Only the current owner may call.
func (s *Service) Transfer(ctx context.Context, id, sender, recipient string) (st optiondomain.State, err error) {
	defer func() { metrics.RecordTransition("transfer", err, 0) }()

	current, err := s.store.GetOption(ctx, id)
	if err != nil {
		return optiondomain.State{}, err
	}
	env, err := s.env(ctx, id, sender, nil)
	if err != nil {
		return optiondomain.State{}, err
	}

	next, res, err := engine.Transfer(current, env, recipient)
	if err != nil {
		return optiondomain.State{}, err
	}
	if err = s.store.UpdateOption(ctx, id, next); err != nil {
		return optiondomain.State{}, fmt.Errorf("persist option: %w", err)
	}

	s.log.WithField("instance", id).
		WithField("owner", recipient).
		Info("option transferred")
	s.publish(id, "transfer", env.Height, res.Attributes)
	return next, nil
}

// Execute exercises the option: the owner pays the exact counter-offer, the
// record is deleted, and the two settlement effects are queued in order.
func (s *Service) Execute(ctx context.Context, id, sender string, sent funds.Coins) (res engine.Result, err error) {
	defer func() { metrics.RecordTransition("execute", err, len(res.Messages)) }()

	current, err := s.store.GetOption(ctx, id)
	if err != nil {
		return engine.Result{}, err
	}
	env, err := s.env(ctx, id, sender, sent)
	if err != nil {
		return engine.Result{}, err
	}

	res, err = engine.Execute(current, env)
	if err != nil {
		return engine.Result{}, err
	}
	if err = s.store.DeleteOption(ctx, id); err != nil {
		return engine.Result{}, fmt.Errorf("remove option: %w", err)
	}
	s.deliver(ctx, id, res)

	s.log.WithField("instance", id).
		WithField("owner", sender).
		WithField("height", env.Height).
		Info("option executed")
	s.publish(id, "execute", env.Height, res.Attributes)
	return res, nil
}

// Burn reclaims the collateral for the creator once the option has expired.
// Any caller may trigger it; the call must not attach funds.
func (s *Service) Burn(ctx context.Context, id, sender string, sent funds.Coins) (res engine.Result, err error) {
	defer func() { metrics.RecordTransition("burn", err, len(res.Messages)) }()

	current, err := s.store.GetOption(ctx, id)
	if err != nil {
		return engine.Result{}, err
	}
	env, err := s.env(ctx, id, sender, sent)
	if err != nil {
		return engine.Result{}, err
	}

	res, err = engine.Burn(current, env)
	if err != nil {
		return engine.Result{}, err
	}
	if err = s.store.DeleteOption(ctx, id); err != nil {
		return engine.Result{}, fmt.Errorf("remove option: %w", err)
	}
	s.deliver(ctx, id, res)

	s.log.WithField("instance", id).
		WithField("height", env.Height).
		Info("option burned")
	s.publish(id, "burn", env.Height, res.Attributes)
	return res, nil
}

// Config returns the record verbatim. Read-only; callable by anyone at any
// time, including after expiry and before burn.
func (s *Service) Config(ctx context.Context, id string) (optiondomain.State, error) {
	return s.store.GetOption(ctx, id)
}

// List returns all live option records.
func (s *Service) List(ctx context.Context) ([]storage.Record, error) {
	return s.store.ListOptions(ctx)
}

// deliver hands the queued effects to the bank sink in order. The record is
// already deleted at this point; delivery failures are surfaced to the log,
// settlement retries belong to the sink's backend.
func (s *Service) deliver(ctx context.Context, id string, res engine.Result) {
	for _, send := range res.Messages {
		if err := s.bank.Send(ctx, send); err != nil {
			s.log.WithError(err).
				WithField("instance", id).
				WithField("to", send.To).
				Error("bank send delivery failed")
		}
	}
}

func (s *Service) publish(id, action string, height uint64, attrs []engine.Attribute) {
	if s.events == nil {
		return
	}
	s.events.Publish(Event{
		Instance:   id,
		Action:     action,
		Height:     height,
		Attributes: attrs,
		Time:       time.Now().UTC(),
	})
}
