package bootstrap

import (
	"context"
	"fmt"

	"diagflow/pkg/counter"
	"diagflow/pkg/diag"
	"diagflow/pkg/perf"
)

// initTools creates the performance manager and object counter. Both report
// through p.
func (b *Base) initTools(ctx context.Context, p *diag.Pipeline) error {
	pc := b.Config.Perf
	perfs := perf.NewManager(perf.WithReporter(p), perf.WithLogger(b.Logger))
	for _, ec := range pc.Events {
		e, err := perfs.Add(ctx, ec.Name, false)
		if err != nil {
			return fmt.Errorf("perf event %q: %w", ec.Name, err)
		}
		e.SetMaxTime(ec.MaxTime)
		e.SetReportExceeding(pc.ReportExceeding)
	}

	cc := b.Config.Counters
	objects := counter.New(
		counter.WithAutoReset(cc.AutoReset),
		counter.WithExceededFunc(func(cat counter.Category) {
			p.ReportWarning(context.Background(), "Object count of %s exceeded maximum of %d (count = %d)",
				cat.Key(), cat.MaxCount, cat.Count)
		}),
	)
	for _, tc := range cc.Types {
		if err := objects.Add(tc.Type, tc.Name, tc.MaxCount); err != nil {
			return fmt.Errorf("counter %q: %w", tc.Type, err)
		}
	}

	b.Perf = perfs
	b.Counter = objects
	return nil
}

// saveSummaries writes the configured summary files.
func (b *Base) saveSummaries() []error {
	var errs []error
	if b.Perf != nil && b.Config.Perf.SummaryFile != "" {
		if err := b.Perf.SaveSummary(b.Config.Perf.SummaryFile); err != nil {
			errs = append(errs, fmt.Errorf("perf summary error: %w", err))
		}
	}
	if b.Counter != nil && b.Config.Counters.SummaryFile != "" {
		if err := b.Counter.SaveSummary(b.Config.Counters.SummaryFile); err != nil {
			errs = append(errs, fmt.Errorf("counter summary error: %w", err))
		}
	}
	return errs
}
