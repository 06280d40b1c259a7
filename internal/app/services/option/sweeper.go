package option

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/covenant-network/option-layer/internal/app/chain"
	"github.com/covenant-network/option-layer/internal/app/metrics"
	"github.com/covenant-network/option-layer/internal/app/storage"
	"github.com/covenant-network/option-layer/pkg/logger"
)

// Sweeper periodically takes a census of live option records, publishing how
// many are active and how many have passed their expiry without being burned.
// It never burns on its own; burn stays caller-triggered.
type Sweeper struct {
	store    storage.OptionStore
	heights  chain.HeightSource
	schedule string
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewSweeper creates a sweeper on the given cron schedule, for example
// "@every 30s". An empty schedule defaults to once a minute.
func NewSweeper(store storage.OptionStore, heights chain.HeightSource, schedule string, log *logger.Logger) *Sweeper {
	if schedule == "" {
		schedule = "@every 1m"
	}
	if log == nil {
		log = logger.NewDefault("option-sweeper")
	}
	return &Sweeper{
		store:    store,
		heights:  heights,
		schedule: schedule,
		log:      log,
	}
}

// Name identifies the sweeper to the service manager.
func (s *Sweeper) Name() string { return "option-sweeper" }

// Start schedules the sweep. Starting a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.running = true
	s.log.WithField("schedule", s.schedule).Info("sweeper started")
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.running = false
	return nil
}

// Sweep runs one census pass immediately.
func (s *Sweeper) Sweep(ctx context.Context) {
	height, err := s.heights.BlockHeight(ctx)
	if err != nil {
		s.log.WithError(err).Warn("sweep skipped: block height unavailable")
		return
	}
	records, err := s.store.ListOptions(ctx)
	if err != nil {
		s.log.WithError(err).Warn("sweep skipped: list options")
		return
	}

	expired := 0
	for _, rec := range records {
		if height >= rec.State.Expires {
			expired++
			s.log.WithField("instance", rec.ID).
				WithField("expires", rec.State.Expires).
				WithField("height", height).
				Info("option expired and awaiting burn")
		}
	}
	metrics.SetOptionGauges(len(records), expired)
}
