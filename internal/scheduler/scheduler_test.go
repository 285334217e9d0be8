package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend_reposter/internal/clock"
	"trend_reposter/internal/domain"
	"trend_reposter/internal/schedule"
	"trend_reposter/internal/service"
)

type stubPublisher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *stubPublisher) PublishNext(_ context.Context) (*domain.CycleStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return &domain.CycleStats{}, p.err
}

func (p *stubPublisher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type dirFunc func() error

func (f dirFunc) EnsureDir() error { return f() }

var t0 = time.Unix(1_700_000_000, 0)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		PollInterval: 10 * time.Minute,
		InitialDelay: time.Hour,
		CycleTimeout: time.Minute,
	}
}

func newTestScheduler(t *testing.T, pub Publisher) (*Scheduler, *schedule.Store, *clock.Fake) {
	t.Helper()
	store := schedule.NewStore(afero.NewMemMapFs(), "persistent.json")
	clk := clock.NewFake(t0)
	sched := NewScheduler(pub, store, dirFunc(func() error { return nil }), clk, testConfig(), discardLogger())
	return sched, store, clk
}

func TestBootstrap(t *testing.T) {
	sched, store, _ := newTestScheduler(t, &stubPublisher{})

	require.NoError(t, sched.Bootstrap())

	state, err := store.Read()
	require.NoError(t, err)
	assert.True(t, state.NextPostTime.Equal(t0.Add(time.Hour)))
	assert.Equal(t, StateChecking, sched.State())
}

func TestBootstrap_AssetDirError(t *testing.T) {
	store := schedule.NewStore(afero.NewMemMapFs(), "persistent.json")
	sched := NewScheduler(&stubPublisher{}, store, dirFunc(func() error { return errors.New("read-only fs") }),
		clock.NewFake(t0), testConfig(), discardLogger())

	err := sched.Bootstrap()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure asset directory")
}

// stepWaiting runs a Step in the waiting state and fires its timer by
// advancing the clock by d.
func stepWaiting(t *testing.T, sched *Scheduler, clk *clock.Fake, d time.Duration) {
	t.Helper()
	require.Equal(t, StateWaiting, sched.State())

	errCh := make(chan error, 1)
	go func() { errCh <- sched.Step(context.Background()) }()

	clk.BlockUntil(1)
	clk.Advance(d)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waiting step did not return")
	}
}

func TestStep_Transitions(t *testing.T) {
	ctx := context.Background()
	pub := &stubPublisher{}
	sched, _, clk := newTestScheduler(t, pub)
	require.NoError(t, sched.Bootstrap())

	require.NoError(t, sched.Step(ctx))
	assert.Equal(t, StateWaiting, sched.State(), "not due yet")

	stepWaiting(t, sched, clk, time.Hour)
	assert.Equal(t, StateChecking, sched.State())

	require.NoError(t, sched.Step(ctx))
	assert.Equal(t, StateWaiting, sched.State(), "exactly at post time is not past it")

	stepWaiting(t, sched, clk, 10*time.Minute)
	require.NoError(t, sched.Step(ctx))
	assert.Equal(t, StatePublishing, sched.State())

	require.NoError(t, sched.Step(ctx))
	assert.Equal(t, StateWaiting, sched.State())
	assert.Equal(t, 1, pub.Calls())
}

func TestStep_NoFreshCandidatesIsNotFatal(t *testing.T) {
	ctx := context.Background()
	pub := &stubPublisher{err: service.ErrNoFreshCandidates}
	sched, store, _ := newTestScheduler(t, pub)
	require.NoError(t, sched.Bootstrap())
	require.NoError(t, store.Write(domain.ScheduleState{NextPostTime: t0.Add(-time.Minute)}))

	require.NoError(t, sched.Step(ctx))
	require.NoError(t, sched.Step(ctx))

	assert.Equal(t, StateWaiting, sched.State())
	assert.Equal(t, 1, pub.Calls())
}

func TestStart_PublishErrorStopsLoop(t *testing.T) {
	pub := &stubPublisher{err: errors.New("download asset: connection reset")}
	sched, store, _ := newTestScheduler(t, pub)
	require.NoError(t, sched.Bootstrap())
	require.NoError(t, store.Write(domain.ScheduleState{NextPostTime: t0.Add(-time.Minute)}))

	err := sched.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish cycle")
	assert.Equal(t, 1, pub.Calls())
}

func TestStart_CorruptScheduleStopsLoop(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "persistent.json", []byte("{"), 0o644))
	store := schedule.NewStore(fs, "persistent.json")
	sched := NewScheduler(&stubPublisher{}, store, dirFunc(func() error { return nil }), clock.NewFake(t0), testConfig(), discardLogger())

	err := sched.Start(context.Background())

	assert.ErrorIs(t, err, schedule.ErrCorruptState)
}

func TestStart_StopsOnCancel(t *testing.T) {
	pub := &stubPublisher{}
	sched, _, clk := newTestScheduler(t, pub)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sched.Start(ctx) }()

	clk.BlockUntil(1)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, 0, pub.Calls())
}
