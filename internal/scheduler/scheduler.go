// Package scheduler wires up the cron job that periodically scrapes the
// listings page and delivers new listings to every subscribed channel.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobmate/internship-service/internal/model"
	"jobmate/internship-service/internal/notifier"
	"jobmate/internship-service/internal/scraper"
)

// Pipeline produces the current sorted scrape result. *scraper.Worker
// implements it.
type Pipeline interface {
	Run(ctx context.Context) []model.Listing
}

// Dispatcher delivers listings to one channel. *notifier.Notifier
// implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, channelID string, listings []model.Listing) notifier.Result
}

// Subscriptions is the part of the subscription store the scheduler uses.
type Subscriptions interface {
	Get(ctx context.Context, channelID string) (model.Subscription, error)
	List(ctx context.Context) ([]model.Subscription, error)
	Advance(ctx context.Context, channelID string, at time.Time) error
}

// TickStats summarises the last completed run.
type TickStats struct {
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"durationNs"`
	Records  int           `json:"records"`
	Channels int           `json:"channels"`
	Sent     int           `json:"sent"`
	Failed   int           `json:"failed"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the clock used for watermarks.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler wraps robfig/cron and manages the scrape loop.
type Scheduler struct {
	cron     *cron.Cron
	pipeline Pipeline
	subs     Subscriptions
	notify   Dispatcher
	spec     string // cron spec, e.g. "@every 30m"
	now      func() time.Time
	log      *slog.Logger

	// run is held for the whole of a tick or backfill.
	run sync.Mutex
	wg  sync.WaitGroup

	statsMu sync.Mutex
	last    *TickStats
}

// New creates a Scheduler that fires every interval.
func New(pipeline Pipeline, subs Subscriptions, notify Dispatcher, interval time.Duration, opts ...Option) *Scheduler {
	log := slog.With("component", "scheduler")
	s := &Scheduler{
		pipeline: pipeline,
		subs:     subs,
		notify:   notify,
		spec:     fmt.Sprintf("@every %s", interval),
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}

	logger := cronLogger{log: log}
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return s
}

// Start registers the job and starts the scheduler. Also runs one tick
// immediately so subscribers do not wait a full interval after a restart.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.Tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info("cron started", "spec", s.spec)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Tick(ctx)
	}()
	return nil
}

// Stop shuts down the scheduler and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("cron stopped")
}

// LastTick returns the stats of the last completed tick, if any.
func (s *Scheduler) LastTick() (TickStats, bool) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if s.last == nil {
		return TickStats{}, false
	}
	return *s.last, true
}

// Tick scrapes once and delivers new listings to every subscriber.
// It reports false without doing anything if another run is in progress.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.run.TryLock() {
		s.log.WarnContext(ctx, "previous run still in progress, skipping tick")
		return false
	}
	defer s.run.Unlock()

	began := time.Now()
	stats := TickStats{At: s.now()}
	defer func() {
		stats.Duration = time.Since(began)
		s.statsMu.Lock()
		s.last = &stats
		s.statsMu.Unlock()
	}()

	listings := s.pipeline.Run(ctx)
	stats.Records = len(listings)
	if len(listings) == 0 {
		s.log.WarnContext(ctx, "scrape returned no listings, nothing to deliver")
		return true
	}

	subs, err := s.subs.List(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "could not list subscriptions", "err", err)
		return true
	}
	stats.Channels = len(subs)

	for _, sub := range subs {
		if ctx.Err() != nil {
			s.log.WarnContext(ctx, "tick cancelled", "err", ctx.Err())
			break
		}
		res := s.deliver(ctx, sub, listings)
		stats.Sent += res.Sent
		stats.Failed += res.Failed
	}

	s.log.InfoContext(ctx, "tick complete",
		"records", stats.Records, "channels", stats.Channels, "sent", stats.Sent, "failed", stats.Failed)
	return true
}

// Backfill delivers the current scrape to one newly registered channel.
// It waits for a running tick instead of skipping.
func (s *Scheduler) Backfill(ctx context.Context, channelID string) error {
	s.run.Lock()
	defer s.run.Unlock()

	sub, err := s.subs.Get(ctx, channelID)
	if err != nil {
		return fmt.Errorf("backfill %s: %w", channelID, err)
	}

	listings := s.pipeline.Run(ctx)
	if len(listings) == 0 {
		s.log.WarnContext(ctx, "scrape returned no listings, backfill skipped", "channel", channelID)
		return nil
	}

	res := s.deliver(ctx, sub, listings)
	s.log.InfoContext(ctx, "backfill complete", "channel", channelID, "sent", res.Sent, "failed", res.Failed)
	return nil
}

// deliver sends the listings newer than the channel's watermark and
// advances the watermark when at least one message went out.
func (s *Scheduler) deliver(ctx context.Context, sub model.Subscription, listings []model.Listing) notifier.Result {
	fresh := scraper.DiffWatermark(listings, sub.LastUpdate)
	if len(fresh) == 0 {
		s.log.DebugContext(ctx, "no new listings", "channel", sub.ChannelID)
		return notifier.Result{}
	}

	res := s.notify.Dispatch(ctx, sub.ChannelID, fresh)
	if res.Sent == 0 {
		s.log.WarnContext(ctx, "nothing delivered, watermark unchanged",
			"channel", sub.ChannelID, "failed", res.Failed)
		return res
	}

	if err := s.subs.Advance(ctx, sub.ChannelID, s.now()); err != nil {
		// The listings will be sent again on the next tick.
		s.log.ErrorContext(ctx, "could not advance watermark", "channel", sub.ChannelID, "err", err)
	}
	return res
}

// cronLogger routes robfig/cron's logging through slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
