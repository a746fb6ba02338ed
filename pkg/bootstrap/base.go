// Package bootstrap assembles a pipeline and its sinks from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"diagflow/internal/config"
	"diagflow/pkg/counter"
	"diagflow/pkg/diag"
	"diagflow/pkg/health"
	"diagflow/pkg/logger"
	"diagflow/pkg/models"
	"diagflow/pkg/perf"
	"diagflow/pkg/strtable"
)

type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Pipeline *diag.Pipeline
	Health   *health.CheckerRegistry
	Perf     *perf.Manager
	Counter  *counter.Counter
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Base{
		Config: cfg,
		Logger: log,
		Health: health.NewCheckerRegistry(),
	}
}

// InitPipeline builds the pipeline with its string table, overrides, filters
// and listeners. Listeners open lazily on the first dispatch.
func (b *Base) InitPipeline(ctx context.Context) error {
	table, err := b.loadStrings()
	if err != nil {
		return fmt.Errorf("failed to load string table: %w", err)
	}

	pc := b.Config.Pipeline
	opts := []diag.Option{
		diag.WithName(pc.Name),
		diag.WithLogger(b.Logger),
		diag.WithDefaults(pc.Defaults),
		diag.WithCapacity(pc.Capacity),
		diag.WithStringTable(table),
		diag.WithSkipPackages(pc.SkipPackages...),
	}
	if pc.Color >= 0 {
		opts = append(opts, diag.WithColor(models.ColorByNumber(pc.Color)))
	}
	if pc.Notifier {
		opts = append(opts, diag.WithNotifier(diag.NewTerminalNotifier(os.Stderr)))
	}

	p, err := diag.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	for _, o := range b.Config.Overrides {
		if o.Method == "" {
			p.Resolver().SetTypeOverride(o.Type, o.Override())
		} else {
			p.Resolver().SetMethodOverride(o.Type, o.Method, o.Override())
		}
	}

	if err := b.addFilters(p); err != nil {
		p.Close()
		return err
	}
	if err := b.addListeners(p); err != nil {
		p.Close()
		return err
	}
	if err := b.initTools(ctx, p); err != nil {
		p.Close()
		return err
	}

	b.Pipeline = p
	b.Logger.InfowCtx(ctx, "Pipeline initialized",
		"pipeline", pc.Name,
		"listeners", p.ListenerCount(),
		"filters", p.FilterCount(),
		"strings", table.Len(),
	)
	return nil
}

func (b *Base) loadStrings() (*strtable.Table, error) {
	table := strtable.New()
	for _, path := range b.Config.Strings.Files {
		if err := table.LoadFile(path); err != nil {
			return nil, err
		}
	}
	for key, value := range b.Config.Strings.Entries {
		if err := table.Set(key, value); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// Shutdown writes the configured summaries, closes every listener, then runs
// additionalShutdown.
func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.InfowCtx(ctx, "Shutting down pipeline...")

	errs := b.saveSummaries()

	if b.Pipeline != nil {
		if err := b.Pipeline.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pipeline close error: %w", err))
		}
	}

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.InfowCtx(ctx, "Pipeline closed")
	return nil
}
