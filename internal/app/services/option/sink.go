package option

import (
	"context"
	"sync"

	"github.com/covenant-network/option-layer/internal/app/engine"
	"github.com/covenant-network/option-layer/pkg/logger"
)

// BankSink receives the ordered fund-transfer effects queued by a successful
// transition. The host executes them after the call returns.
type BankSink interface {
	Send(ctx context.Context, send engine.BankSend) error
}

// LogSink records effects to the structured log. It is the default sink when
// no settlement backend is attached.
type LogSink struct {
	log *logger.Logger
}

var _ BankSink = (*LogSink)(nil)

// NewLogSink creates a sink writing to log, defaulting to a named logger.
func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.NewDefault("bank-sink")
	}
	return &LogSink{log: log}
}

func (s *LogSink) Send(_ context.Context, send engine.BankSend) error {
	s.log.WithField("from", send.From).
		WithField("to", send.To).
		WithField("amount", send.Amount.String()).
		Info("bank send queued")
	return nil
}

// MemorySink records effects in order for inspection in tests.
type MemorySink struct {
	mu    sync.Mutex
	sends []engine.BankSend
}

var _ BankSink = (*MemorySink)(nil)

// NewMemorySink creates an empty recording sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Send(_ context.Context, send engine.BankSend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, send)
	return nil
}

// Sends returns a copy of the recorded effects in delivery order.
func (s *MemorySink) Sends() []engine.BankSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engine.BankSend, len(s.sends))
	copy(out, s.sends)
	return out
}
