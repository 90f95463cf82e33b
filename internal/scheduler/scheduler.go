// Package scheduler decides when website checks run and forces every
// execution, scheduled or manual, through one process-wide slot.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
)

// CheckRunner executes one website check end to end, persisting its
// record including on failure.
type CheckRunner interface {
	RunCheck(ctx context.Context, site *domain.Website, checkType domain.CheckType) (*domain.CheckRecord, error)
}

// SiteSource supplies the active websites and the timestamp of each
// site's most recent check, used to anchor intervals across restarts.
type SiteSource interface {
	ListActive(ctx context.Context) ([]domain.Website, error)
	LastCheckTime(ctx context.Context, websiteID string) (time.Time, error)
}

// HolderMirror publishes which website currently holds the run slot to
// an external store, so dashboards can show the in-flight check.
type HolderMirror interface {
	SetCurrentCheck(ctx context.Context, websiteID string) error
	ClearCurrentCheck(ctx context.Context) error
}

// Config carries the scheduler's timing knobs.
type Config struct {
	// Tick is how often the poll loop scans the job table.
	Tick time.Duration
	// DefaultInterval applies to sites with an unset or invalid
	// check interval.
	DefaultInterval time.Duration
}

type job struct {
	site     domain.Website
	lastRun  time.Time
	inflight bool
}

// Scheduler owns the job table and the poll loop. A website is due when
// now >= lastRun + interval; due jobs are dispatched to goroutines that
// all serialize on the single-flight slot.
type Scheduler struct {
	cfg    Config
	sites  SiteSource
	runner CheckRunner
	slot   *Slot
	mirror HolderMirror
	logger *zap.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	stopped bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, sites SiteSource, runner CheckRunner, slot *Slot, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		sites:  sites,
		runner: runner,
		slot:   slot,
		logger: logger,
		jobs:   make(map[string]*job),
		runCtx: context.Background(),
	}
}

// MirrorHolder publishes slot ownership to m around every check.
// Mirror writes are best effort and never delay or fail a check.
func (s *Scheduler) MirrorHolder(m HolderMirror) {
	s.mirror = m
}

// Start builds the initial job table and launches the poll loop.
func (s *Scheduler) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	// Checks run on a context detached from the loop's cancellation:
	// Stop halts dispatching but never cuts a running check short.
	s.runCtx = context.WithoutCancel(ctx)

	if err := s.Reschedule(ctx); err != nil {
		cancel()
		return err
	}

	s.wg.Add(1)
	go s.loop(loopCtx)

	s.logger.Info("scheduler started",
		zap.Duration("tick", s.cfg.Tick),
		zap.Duration("default_interval", s.cfg.DefaultInterval))
	return nil
}

// Stop halts dispatching and blocks until the poll loop and every
// in-flight check have returned.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Reschedule throws away the whole job table and rebuilds it from the
// website store, rather than patching entries in place. Sites that
// survive the rebuild keep their in-memory anchor and claim state; new
// sites are anchored to their persisted last check, making a brand-new
// site due immediately.
func (s *Scheduler) Reschedule(ctx context.Context) error {
	sites, err := s.sites.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("%w: list active websites: %v", domain.ErrScheduling, err)
	}

	anchors := make(map[string]time.Time, len(sites))
	for _, site := range sites {
		if last, err := s.sites.LastCheckTime(ctx, site.ID); err == nil {
			anchors[site.ID] = last
		}
	}

	s.mu.Lock()
	next := make(map[string]*job, len(sites))
	for i := range sites {
		site := sites[i]
		j := &job{site: site}
		if old, ok := s.jobs[site.ID]; ok {
			j.lastRun = old.lastRun
			j.inflight = old.inflight
		} else {
			j.lastRun = anchors[site.ID]
		}
		next[site.ID] = j
	}
	s.jobs = next
	s.mu.Unlock()

	s.logger.Info("job table rebuilt", zap.Int("jobs", len(next)))
	return nil
}

// RunNow pushes one check through the single-flight slot, blocking
// until the slot frees. Manual and scheduled checks share this path;
// there is no fast lane. The release is deferred so a panicking runner
// still frees the slot.
func (s *Scheduler) RunNow(ctx context.Context, site *domain.Website, checkType domain.CheckType) (*domain.CheckRecord, error) {
	if err := s.slot.Acquire(ctx, site.ID); err != nil {
		return nil, fmt.Errorf("%w: acquire run slot for %s: %v", domain.ErrScheduling, site.ID, err)
	}
	defer s.slot.Release(site.ID)

	if s.mirror != nil {
		if err := s.mirror.SetCurrentCheck(ctx, site.ID); err != nil {
			s.logger.Debug("holder mirror update failed", zap.Error(err))
		}
		defer func() {
			if err := s.mirror.ClearCurrentCheck(context.Background()); err != nil {
				s.logger.Debug("holder mirror clear failed", zap.Error(err))
			}
		}()
	}

	record, err := s.runner.RunCheck(ctx, site, checkType)

	s.mu.Lock()
	if j, ok := s.jobs[site.ID]; ok {
		j.lastRun = time.Now()
	}
	s.mu.Unlock()

	return record, err
}

// TriggerNow queues a manual check through the same serialization path
// scheduled runs use. It returns once the check is dispatched; callers
// observe the outcome through check history.
func (s *Scheduler) TriggerNow(site *domain.Website, checkType domain.CheckType) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("%w: scheduler stopped", domain.ErrScheduling)
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if _, err := s.RunNow(s.runCtx, site, checkType); err != nil {
			s.logger.Error("manual check failed",
				zap.String("website_id", site.ID),
				zap.String("check_type", string(checkType)),
				zap.Error(err))
		}
	}()
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue()
		}
	}
}

// dispatchDue claims every due job and hands each to its own goroutine.
// Execution still serializes on the slot; the claim flag only stops a
// site from stacking up extra waiters on later ticks while it queues.
func (s *Scheduler) dispatchDue() {
	now := time.Now()

	s.mu.Lock()
	var due []domain.Website
	for _, j := range s.jobs {
		if j.inflight || now.Before(j.lastRun.Add(s.intervalFor(&j.site))) {
			continue
		}
		j.inflight = true
		due = append(due, j.site)
	}
	s.mu.Unlock()

	for i := range due {
		site := due[i]
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runDue(&site)
		}()
	}
}

func (s *Scheduler) runDue(site *domain.Website) {
	checkType := scheduledCheckType(site)
	s.logger.Info("check due",
		zap.String("website_id", site.ID),
		zap.String("url", site.RootURL),
		zap.String("check_type", string(checkType)))

	_, err := s.RunNow(s.runCtx, site, checkType)
	if err != nil {
		s.logger.Error("scheduled check failed",
			zap.String("website_id", site.ID),
			zap.Error(err))
	}

	s.mu.Lock()
	if j, ok := s.jobs[site.ID]; ok {
		j.inflight = false
	}
	s.mu.Unlock()
}

// intervalFor applies the configured default to sites with an unset or
// invalid interval.
func (s *Scheduler) intervalFor(site *domain.Website) time.Duration {
	if site.IntervalMinutes <= 0 {
		return s.cfg.DefaultInterval
	}
	return time.Duration(site.IntervalMinutes) * time.Minute
}

// scheduledCheckType picks the widest check a site has enabled for its
// automatic runs.
func scheduledCheckType(site *domain.Website) domain.CheckType {
	switch {
	case site.AutoFull:
		return domain.CheckTypeFull
	case site.AutoVisual:
		return domain.CheckTypeVisual
	case site.AutoBlur:
		return domain.CheckTypeBlur
	case site.AutoPerformance:
		return domain.CheckTypePerformance
	default:
		return domain.CheckTypeCrawl
	}
}
