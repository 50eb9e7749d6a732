package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/reportctl/internal/models"
	"github.com/wolfeidau/reportctl/internal/telemetry"
)

// DefaultInterval is the re-fetch interval while any job is active.
const DefaultInterval = 5 * time.Second

var (
	// ErrLoadFailed is passed to OnError when a fetch fails.
	ErrLoadFailed = errors.New("failed to load analyses")

	// ErrAlreadyStarted is returned by Run on a poller that has been run before.
	ErrAlreadyStarted = errors.New("poller already started")
)

// FetchFunc loads the current analysis list for the owning resource.
type FetchFunc func(ctx context.Context) ([]models.Analysis, error)

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Name identifies the owning resource in logs, usually the file id.
	Name string

	Interval time.Duration
	Fetch    FetchFunc

	// OnUpdate receives every successfully fetched list, latest wins.
	OnUpdate func([]models.Analysis)

	// OnError receives fetch failures wrapped in ErrLoadFailed.
	OnError func(error)

	// Tracked has ids evicted once their job reaches a terminal status.
	Tracked *Set

	// ExitWhenIdle makes Run return once a fetch observes no active job.
	ExitWhenIdle bool
}

// Poller keeps one analysis list current. It re-fetches on a fixed interval
// only while the last fetched list has active work; otherwise no timer exists.
// Fetches run on the Run goroutine so they never overlap.
type Poller struct {
	cfg PollerConfig

	started   atomic.Bool
	triggerCh chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	doneCh    chan struct{}
}

// NewPoller creates a poller, Run must be called to start it.
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if cfg.Fetch == nil {
		return nil, fmt.Errorf("fetch function is required")
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	return &Poller{
		cfg:       cfg,
		triggerCh: make(chan struct{}, 1), // Buffered so trigger doesn't block
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Run fetches immediately, then polls while work is active. It returns nil
// when stopped or idle (with ExitWhenIdle) and the context error if cancelled.
// An idle-exiting poller whose fetch fails with no poll scheduled returns
// that failure. A poller runs once, later calls return ErrAlreadyStarted.
func (p *Poller) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(p.doneCh)

	var (
		ticker *time.Ticker
		tickC  <-chan time.Time
	)

	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}
	defer stopTicker()

	// poll fetches once and starts or stops the ticker from the result.
	// It reports whether Run should return, and with which error.
	poll := func(reason string) (bool, error) {
		active, err := p.fetch(ctx, reason)
		if err != nil {
			// keep the current schedule, the next tick is the retry;
			// with nothing scheduled an idle-exiting poller would wait forever
			return ticker == nil && p.cfg.ExitWhenIdle, err
		}

		if active {
			if ticker == nil {
				ticker = time.NewTicker(p.cfg.Interval)
				tickC = ticker.C

				log.Debug().
					Str("name", p.cfg.Name).
					Dur("interval", p.cfg.Interval).
					Msg("Active analyses found, polling started")
			}
			return false, nil
		}

		if ticker != nil {
			log.Debug().Str("name", p.cfg.Name).Msg("No active analyses, polling stopped")
		}
		stopTicker()

		return p.cfg.ExitWhenIdle, nil
	}

	if done, err := poll("initial"); done {
		return err
	}

	for {
		var (
			done bool
			err  error
		)

		select {
		case <-tickC:
			done, err = poll("interval")

		case <-p.triggerCh:
			done, err = poll("trigger")

		case <-p.stopCh:
			log.Debug().Str("name", p.cfg.Name).Msg("Poller stopping")
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}

		if done {
			return err
		}
	}
}

// Trigger forces one immediate fetch regardless of the polling state.
// Triggers arriving while one is already queued are coalesced.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Stop signals Run to return, use Done to wait for it. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
}

// Done is closed once Run returns.
func (p *Poller) Done() <-chan struct{} {
	return p.doneCh
}

func (p *Poller) fetch(ctx context.Context, reason string) (bool, error) {
	metrics := telemetry.GetMetrics()
	started := time.Now()

	analyses, err := p.cfg.Fetch(ctx)

	metrics.PollsTotal.Add(ctx, 1)
	metrics.PollDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

	if err != nil {
		metrics.PollErrorsTotal.Add(ctx, 1)

		log.Warn().
			Err(err).
			Str("name", p.cfg.Name).
			Str("reason", reason).
			Msg("Failed to fetch analyses")

		err = fmt.Errorf("%w: %w", ErrLoadFailed, err)
		if p.cfg.OnError != nil {
			p.cfg.OnError(err)
		}
		return false, err
	}

	if p.cfg.Tracked != nil {
		for _, id := range p.cfg.Tracked.EvictTerminal(analyses) {
			log.Debug().
				Str("name", p.cfg.Name).
				Str("analysisID", id).
				Msg("Analysis finished, no longer tracked")
		}
	}

	if p.cfg.OnUpdate != nil {
		p.cfg.OnUpdate(analyses)
	}

	return HasActive(analyses), nil
}
