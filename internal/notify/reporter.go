// Package notify delivers check reports to configured sinks. The check
// pipeline hands over structured records only; formatting and transport
// belong to the sink.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
)

// Reporter receives the record of a completed check. Implementations
// must not mutate the record. A Send failure is logged by the caller
// and never fails the check that produced the record.
type Reporter interface {
	Send(ctx context.Context, site *domain.Website, record *domain.CheckRecord) error
}

// LogReporter writes reports to the structured log. It is the sink used
// when no external transport is configured.
type LogReporter struct {
	logger *zap.Logger
}

func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Send emits one log line per report. Detected changes are logged at
// warn level so they stand out in aggregated logs.
func (r *LogReporter) Send(_ context.Context, site *domain.Website, record *domain.CheckRecord) error {
	fields := []zap.Field{
		zap.String("website_id", site.ID),
		zap.String("website", site.Name),
		zap.String("check_id", record.ID),
		zap.String("check_type", string(record.CheckType)),
		zap.String("status", string(record.Status)),
		zap.Strings("reasons", record.Reasons),
	}
	if len(record.NewBaselines) > 0 {
		fields = append(fields, zap.Strings("new_baselines", record.NewBaselines))
	}
	if record.Crawl != nil {
		fields = append(fields,
			zap.Int("pages_crawled", record.Crawl.Stats.PagesCrawled),
			zap.Int("broken_links", record.Crawl.Stats.BrokenCount))
	}

	switch record.Status {
	case domain.StatusChangeDetected:
		r.logger.Warn("significant change detected", fields...)
	case domain.StatusBaselineCreated:
		r.logger.Info("baselines created", fields...)
	default:
		r.logger.Info("check report", fields...)
	}
	return nil
}

// Composite fans one report out to every sink. All sinks are attempted;
// the joined error reports which ones failed.
type Composite []Reporter

func (c Composite) Send(ctx context.Context, site *domain.Website, record *domain.CheckRecord) error {
	var errs []error
	for _, r := range c {
		if err := r.Send(ctx, site, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
