package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/monitoring"
)

// Slot is the process-wide single-flight marker: at most one check runs
// at any instant, no matter how many websites are due. Waiters block on
// a condition variable until the holder releases, so a freed slot is
// claimed immediately instead of on the next poll.
type Slot struct {
	mu      sync.Mutex
	cond    *sync.Cond
	holder  string
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func NewSlot(metrics *monitoring.Metrics, logger *zap.Logger) *Slot {
	s := &Slot{metrics: metrics, logger: logger}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Acquire claims the slot for websiteID, blocking while another check
// holds it. Returns ctx.Err() when the wait is abandoned. Callers must
// pair every successful Acquire with a deferred Release so a check that
// panics still frees the slot.
func (s *Slot) Acquire(ctx context.Context, websiteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.holder != "" {
		s.metrics.SlotWaiters.Inc()
		s.logger.Debug("waiting for run slot",
			zap.String("website_id", websiteID),
			zap.String("held_by", s.holder))
		defer s.metrics.SlotWaiters.Dec()
	}

	for s.holder != "" {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.wait(ctx)
	}

	s.holder = websiteID
	return nil
}

// wait blocks on the condition variable until a release broadcasts or
// ctx is done. The watcher takes the mutex before broadcasting, which
// guarantees the broadcast cannot slip in between the caller's ctx
// check and its cond.Wait.
func (s *Slot) wait(ctx context.Context) {
	woken := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-woken:
		}
	}()
	s.cond.Wait()
	close(woken)
}

// Release frees the slot if websiteID holds it and wakes all waiters.
// Releasing a slot held by someone else is a no-op.
func (s *Slot) Release(websiteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder != websiteID {
		return
	}
	s.holder = ""
	s.cond.Broadcast()
}

// Holder reports which website currently occupies the slot, "" when
// free.
func (s *Slot) Holder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holder
}
