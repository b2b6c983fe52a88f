package scheduler_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobmate/internship-service/internal/model"
	"jobmate/internship-service/internal/notifier"
	"jobmate/internship-service/internal/scheduler"
	"jobmate/internship-service/internal/store"
)

type stubPipeline struct {
	mu       sync.Mutex
	listings []model.Listing
	runs     int

	entered chan struct{} // signalled on each run when non-nil
	release chan struct{} // run blocks until closed when non-nil
}

func (p *stubPipeline) Run(ctx context.Context) []model.Listing {
	p.mu.Lock()
	p.runs++
	out := p.listings
	entered, release := p.entered, p.release
	p.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return out
}

func (p *stubPipeline) set(l []model.Listing) {
	p.mu.Lock()
	p.listings = l
	p.mu.Unlock()
}

type recordingDispatcher struct {
	mu      sync.Mutex
	sent    map[string][]string // channel -> company names
	failAll map[string]bool
}

func newDispatcher() *recordingDispatcher {
	return &recordingDispatcher{sent: map[string][]string{}, failAll: map[string]bool{}}
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, channelID string, listings []model.Listing) notifier.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll[channelID] {
		return notifier.Result{Failed: len(listings)}
	}
	for _, l := range listings {
		d.sent[channelID] = append(d.sent[channelID], l.Company)
	}
	return notifier.Result{Sent: len(listings)}
}

func (d *recordingDispatcher) companies(channelID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent[channelID]...)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func day(d int) *time.Time {
	t := time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func listing(company string, posted *time.Time) model.Listing {
	return model.Listing{Company: company, Role: "Intern", DatePosted: posted, RawRow: []string{company}}
}

type fixture struct {
	pipeline *stubPipeline
	store    *store.FileStore
	notify   *recordingDispatcher
	clock    *clock
	sched    *scheduler.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.OpenFileStore(filepath.Join(t.TempDir(), "channel_config.json"))
	require.NoError(t, err)

	f := &fixture{
		pipeline: &stubPipeline{},
		store:    s,
		notify:   newDispatcher(),
		clock:    &clock{t: time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)},
	}
	f.sched = scheduler.New(f.pipeline, f.store, f.notify, time.Hour, scheduler.WithClock(f.clock.now))
	return f
}

func (f *fixture) register(t *testing.T, channelID string) {
	t.Helper()
	_, _, err := f.store.Register(context.Background(), channelID, "")
	require.NoError(t, err)
}

func (f *fixture) watermark(t *testing.T, channelID string) *time.Time {
	t.Helper()
	sub, err := f.store.Get(context.Background(), channelID)
	require.NoError(t, err)
	return sub.LastUpdate
}

// ── Backfill ─────────────────────────────────────────────────────────────────

// A new channel gets every current listing once, undated ones included,
// and its watermark is set to the dispatch time.
func TestBackfill_DeliversEverythingOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pipeline.set([]model.Listing{
		listing("A", day(3)),
		listing("B", day(5)),
		listing("C", nil),
	})
	f.register(t, "c1")

	require.NoError(t, f.sched.Backfill(ctx, "c1"))
	require.Equal(t, []string{"A", "B", "C"}, f.notify.companies("c1"))

	wm := f.watermark(t, "c1")
	require.NotNil(t, wm)
	require.True(t, wm.Equal(f.clock.now()))

	f.clock.set(f.clock.now().Add(time.Hour))
	require.True(t, f.sched.Tick(ctx))
	require.Equal(t, []string{"A", "B", "C"}, f.notify.companies("c1"), "no second delivery")
}

func TestBackfill_UnknownChannel(t *testing.T) {
	f := newFixture(t)
	err := f.sched.Backfill(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

// ── Tick ─────────────────────────────────────────────────────────────────────

func TestTick_DeliversOnlyNewerListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "c1")
	require.NoError(t, f.store.Advance(ctx, "c1", *day(4)))

	f.pipeline.set([]model.Listing{
		listing("old", day(3)),
		listing("same-day", day(4)),
		listing("new", day(5)),
		listing("undated", nil),
	})

	require.True(t, f.sched.Tick(ctx))
	require.Equal(t, []string{"new"}, f.notify.companies("c1"))
	require.True(t, f.watermark(t, "c1").Equal(f.clock.now()))

	stats, ok := f.sched.LastTick()
	require.True(t, ok)
	require.Equal(t, 4, stats.Records)
	require.Equal(t, 1, stats.Channels)
	require.Equal(t, 1, stats.Sent)
}

// A failed fetch yields no listings: nothing is sent and no watermark moves.
func TestTick_EmptyScrapeTouchesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "c1")
	f.register(t, "c2")
	require.NoError(t, f.store.Advance(ctx, "c2", *day(2)))

	require.True(t, f.sched.Tick(ctx))
	require.Empty(t, f.notify.companies("c1"))
	require.Empty(t, f.notify.companies("c2"))
	require.Nil(t, f.watermark(t, "c1"))
	require.True(t, f.watermark(t, "c2").Equal(*day(2)))
}

func TestTick_FailedChannelDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "bad")
	f.register(t, "good")
	f.notify.failAll["bad"] = true
	f.pipeline.set([]model.Listing{listing("A", day(5))})

	require.True(t, f.sched.Tick(ctx))
	require.Equal(t, []string{"A"}, f.notify.companies("good"))
	require.NotNil(t, f.watermark(t, "good"))
	require.Nil(t, f.watermark(t, "bad"), "watermark only advances after a successful send")

	stats, _ := f.sched.LastTick()
	require.Equal(t, 1, stats.Sent)
	require.Equal(t, 1, stats.Failed)
}

func TestTick_WatermarkNeverDecreases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "c1")
	f.pipeline.set([]model.Listing{listing("A", nil)})

	require.True(t, f.sched.Tick(ctx))
	first := *f.watermark(t, "c1")

	// Clock moves backwards; a newer listing still arrives.
	f.clock.set(first.Add(-48 * time.Hour))
	later := first.Add(time.Hour)
	f.pipeline.set([]model.Listing{listing("B", &later)})

	require.True(t, f.sched.Tick(ctx))
	require.Equal(t, []string{"A", "B"}, f.notify.companies("c1"))
	require.True(t, f.watermark(t, "c1").Equal(first))
}

func TestTick_SkipsWhenBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pipeline.entered = make(chan struct{}, 1)
	f.pipeline.release = make(chan struct{})

	done := make(chan bool)
	go func() { done <- f.sched.Tick(ctx) }()
	<-f.pipeline.entered

	require.False(t, f.sched.Tick(ctx))

	close(f.pipeline.release)
	require.True(t, <-done)
	require.Equal(t, 1, f.pipeline.runs)
}

func TestBackfill_WaitsForRunningTick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "c1")
	f.pipeline.set([]model.Listing{listing("A", day(5))})
	f.pipeline.entered = make(chan struct{}, 2)
	f.pipeline.release = make(chan struct{})

	tickDone := make(chan bool)
	go func() { tickDone <- f.sched.Tick(ctx) }()
	<-f.pipeline.entered

	backfillDone := make(chan error)
	go func() { backfillDone <- f.sched.Backfill(ctx, "c1") }()

	select {
	case <-backfillDone:
		t.Fatal("backfill ran while a tick held the guard")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.pipeline.release)
	require.True(t, <-tickDone)
	require.NoError(t, <-backfillDone)

	// The tick already delivered "A"; the backfill sees the new watermark.
	require.Equal(t, []string{"A"}, f.notify.companies("c1"))
}

type failingAdvance struct {
	*store.FileStore
}

func (failingAdvance) Advance(context.Context, string, time.Time) error {
	return errors.New("disk full")
}

func TestTick_StoreErrorIsContained(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "c1")
	f.register(t, "c2")
	f.pipeline.set([]model.Listing{listing("A", day(5))})

	sched := scheduler.New(f.pipeline, failingAdvance{f.store}, f.notify, time.Hour)
	require.True(t, sched.Tick(ctx))
	require.Equal(t, []string{"A"}, f.notify.companies("c1"))
	require.Equal(t, []string{"A"}, f.notify.companies("c2"))
}

// ── Start / Stop ─────────────────────────────────────────────────────────────

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	f.pipeline.entered = make(chan struct{}, 1)

	require.NoError(t, f.sched.Start(context.Background()))
	select {
	case <-f.pipeline.entered:
	case <-time.After(time.Second):
		t.Fatal("no tick at startup")
	}
	f.sched.Stop()

	_, ok := f.sched.LastTick()
	require.True(t, ok)
}
