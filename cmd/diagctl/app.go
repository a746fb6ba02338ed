package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"diagflow/internal/config"
	"diagflow/pkg/bootstrap"
	"diagflow/pkg/inspect"
	"diagflow/pkg/logger"
	"diagflow/pkg/tracing"
)

type App struct {
	*bootstrap.Base

	loadDump       string
	saveDump       string
	server         *inspect.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger, loadDump, saveDump string) *App {
	return &App{
		Base:     bootstrap.NewBase(cfg, log),
		loadDump: loadDump,
		saveDump: saveDump,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.InitPipeline(ctx); err != nil {
		return err
	}

	if a.loadDump != "" {
		if err := a.Pipeline.Load(a.loadDump); err != nil {
			return fmt.Errorf("failed to load dump: %w", err)
		}
		a.Logger.InfowCtx(ctx, "Dump loaded", "path", a.loadDump, "messages", a.Pipeline.StoredCount())
	}

	if a.Config.Inspector.Enabled {
		opts := []inspect.ServerOption{inspect.WithTools(a.Perf, a.Counter)}
		if a.Config.Tracing.Enabled {
			opts = append(opts, inspect.WithTracing(a.Config.Tracing.ServiceName))
		}
		a.server = inspect.NewServer(inspect.Config{
			Enabled:   true,
			Port:      a.Config.Inspector.Port,
			RateLimit: inspect.RateLimitConfig(a.Config.Inspector.RateLimit),
		}, a.Pipeline, a.Health, a.Logger, opts...)
	}

	return nil
}

// Run blocks until ctx is done and then shuts the pipeline down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			return a.server.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	runErr := g.Wait()

	if err := a.Shutdown(context.Background(), a.additionalShutdown); err != nil {
		a.Logger.ErrorwCtx(ctx, "Shutdown failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func (a *App) additionalShutdown(ctx context.Context) []error {
	var errs []error

	if a.saveDump != "" {
		if err := a.Pipeline.Save(a.saveDump); err != nil {
			errs = append(errs, fmt.Errorf("dump save error: %w", err))
		} else {
			a.Logger.InfowCtx(ctx, "Dump saved", "path", a.saveDump)
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown error: %w", err))
		}
	}

	return errs
}
