package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/monitoring"
)

func newTestSlot() *Slot {
	return NewSlot(monitoring.NewWith(prometheus.NewRegistry()), zap.NewNop())
}

type fakeSource struct {
	mu    sync.Mutex
	sites []domain.Website
	last  map[string]time.Time
}

func (f *fakeSource) ListActive(ctx context.Context) ([]domain.Website, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Website, len(f.sites))
	copy(out, f.sites)
	return out, nil
}

func (f *fakeSource) LastCheckTime(ctx context.Context, websiteID string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last[websiteID], nil
}

func (f *fakeSource) setSites(sites ...domain.Website) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sites = sites
}

type fakeRunner struct {
	mu        sync.Mutex
	delay     time.Duration
	active    int
	maxActive int
	runs      []string
}

func (f *fakeRunner) RunCheck(ctx context.Context, site *domain.Website, checkType domain.CheckType) (*domain.CheckRecord, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.runs = append(f.runs, site.ID)
	delay := f.delay
	f.mu.Unlock()

	time.Sleep(delay)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	return &domain.CheckRecord{WebsiteID: site.ID, Status: domain.StatusNoSignificantChange}, nil
}

func (f *fakeRunner) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func (f *fakeRunner) peakConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func TestSlotSerializesConcurrentAcquires(t *testing.T) {
	slot := newTestSlot()

	var active, violations int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			websiteID := fmt.Sprintf("site-%d", id)
			if err := slot.Acquire(context.Background(), websiteID); err != nil {
				atomic.AddInt32(&violations, 1)
				return
			}
			defer slot.Release(websiteID)

			if atomic.AddInt32(&active, 1) != 1 {
				atomic.AddInt32(&violations, 1)
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&violations), "acquires overlapped")
	assert.Empty(t, slot.Holder())
}

func TestSlotAcquireAbandonedOnContextDone(t *testing.T) {
	slot := newTestSlot()
	require.NoError(t, slot.Acquire(context.Background(), "holder"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := slot.Acquire(ctx, "waiter")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "holder", slot.Holder())

	slot.Release("holder")
	assert.Empty(t, slot.Holder())
}

func TestSlotReleaseByNonHolderIsNoOp(t *testing.T) {
	slot := newTestSlot()
	require.NoError(t, slot.Acquire(context.Background(), "holder"))

	slot.Release("someone-else")
	assert.Equal(t, "holder", slot.Holder())

	slot.Release("holder")
	assert.Empty(t, slot.Holder())
}

func TestSchedulerRunsDueSiteOnce(t *testing.T) {
	source := &fakeSource{last: map[string]time.Time{}}
	source.setSites(domain.Website{ID: "a", RootURL: "https://a.test", IntervalMinutes: 60})
	runner := &fakeRunner{}

	sched := New(Config{Tick: 5 * time.Millisecond, DefaultInterval: time.Hour},
		source, runner, newTestSlot(), zap.NewNop())
	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	require.Eventually(t, func() bool { return runner.runCount() == 1 },
		time.Second, 5*time.Millisecond)

	// The interval has not elapsed, so later ticks must not re-run it.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, runner.runCount())
}

func TestSchedulerNeverOverlapsChecks(t *testing.T) {
	source := &fakeSource{last: map[string]time.Time{}}
	source.setSites(
		domain.Website{ID: "a", RootURL: "https://a.test", IntervalMinutes: 60},
		domain.Website{ID: "b", RootURL: "https://b.test", IntervalMinutes: 60},
		domain.Website{ID: "c", RootURL: "https://c.test", IntervalMinutes: 60},
	)
	runner := &fakeRunner{delay: 30 * time.Millisecond}

	sched := New(Config{Tick: 5 * time.Millisecond, DefaultInterval: time.Hour},
		source, runner, newTestSlot(), zap.NewNop())
	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	require.Eventually(t, func() bool { return runner.runCount() == 3 },
		2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, runner.peakConcurrency(),
		"all three sites were due at once yet checks must not overlap")
}

func TestSchedulerDefaultIntervalForUnsetInterval(t *testing.T) {
	source := &fakeSource{last: map[string]time.Time{}}
	sched := New(Config{Tick: time.Hour, DefaultInterval: 30 * time.Minute},
		source, &fakeRunner{}, newTestSlot(), zap.NewNop())

	assert.Equal(t, 30*time.Minute, sched.intervalFor(&domain.Website{IntervalMinutes: 0}))
	assert.Equal(t, 30*time.Minute, sched.intervalFor(&domain.Website{IntervalMinutes: -5}))
	assert.Equal(t, 15*time.Minute, sched.intervalFor(&domain.Website{IntervalMinutes: 15}))
}

func TestRescheduleRebuildsJobTable(t *testing.T) {
	source := &fakeSource{last: map[string]time.Time{}}
	source.setSites(
		domain.Website{ID: "a", RootURL: "https://a.test"},
		domain.Website{ID: "b", RootURL: "https://b.test"},
	)
	sched := New(Config{Tick: time.Hour, DefaultInterval: time.Hour},
		source, &fakeRunner{}, newTestSlot(), zap.NewNop())

	require.NoError(t, sched.Reschedule(context.Background()))
	sched.mu.Lock()
	require.Len(t, sched.jobs, 2)
	anchor := time.Now().Add(-10 * time.Minute)
	sched.jobs["b"].lastRun = anchor
	sched.mu.Unlock()

	// Removing a site and adding another rebuilds the table from
	// scratch while surviving sites keep their anchor.
	persisted := time.Now().Add(-5 * time.Minute)
	source.mu.Lock()
	source.last["c"] = persisted
	source.mu.Unlock()
	source.setSites(
		domain.Website{ID: "b", RootURL: "https://b.test"},
		domain.Website{ID: "c", RootURL: "https://c.test"},
	)

	require.NoError(t, sched.Reschedule(context.Background()))

	sched.mu.Lock()
	defer sched.mu.Unlock()
	require.Len(t, sched.jobs, 2)
	assert.NotContains(t, sched.jobs, "a")
	assert.Equal(t, anchor, sched.jobs["b"].lastRun)
	assert.Equal(t, persisted, sched.jobs["c"].lastRun, "new site anchored to persisted history")
}

func TestStopWaitsForInflightCheck(t *testing.T) {
	source := &fakeSource{last: map[string]time.Time{}}
	source.setSites(domain.Website{ID: "a", RootURL: "https://a.test", IntervalMinutes: 60})
	runner := &fakeRunner{delay: 150 * time.Millisecond}

	sched := New(Config{Tick: 5 * time.Millisecond, DefaultInterval: time.Hour},
		source, runner, newTestSlot(), zap.NewNop())
	require.NoError(t, sched.Start(context.Background()))

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return runner.active == 1
	}, time.Second, time.Millisecond, "check must be in flight before stopping")

	sched.Stop()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Zero(t, runner.active, "Stop returned while a check was still running")
	assert.Len(t, runner.runs, 1)
}

func TestTriggerNowSharesSerializationPath(t *testing.T) {
	runner := &fakeRunner{delay: 20 * time.Millisecond}
	sched := New(Config{Tick: time.Hour, DefaultInterval: time.Hour},
		&fakeSource{last: map[string]time.Time{}}, runner, newTestSlot(), zap.NewNop())

	for i := 0; i < 4; i++ {
		site := domain.Website{ID: fmt.Sprintf("m-%d", i), RootURL: "https://m.test"}
		require.NoError(t, sched.TriggerNow(&site, domain.CheckTypeCrawl))
	}

	require.Eventually(t, func() bool { return runner.runCount() == 4 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, runner.peakConcurrency())

	sched.Stop()
}

func TestTriggerNowRejectedAfterStop(t *testing.T) {
	sched := New(Config{Tick: time.Hour, DefaultInterval: time.Hour},
		&fakeSource{last: map[string]time.Time{}}, &fakeRunner{}, newTestSlot(), zap.NewNop())
	require.NoError(t, sched.Start(context.Background()))
	sched.Stop()

	err := sched.TriggerNow(&domain.Website{ID: "a"}, domain.CheckTypeCrawl)
	assert.ErrorIs(t, err, domain.ErrScheduling)
}
