package bootstrap

import (
	"context"
	"fmt"

	"diagflow/internal/config"
	"diagflow/internal/constants"
	"diagflow/pkg/cel"
	"diagflow/pkg/circuitbreaker"
	"diagflow/pkg/diag"
	"diagflow/pkg/filter"
	"diagflow/pkg/health"
	"diagflow/pkg/listener"
	"diagflow/pkg/logger"
	"diagflow/pkg/models"
)

type toggler interface {
	SetEnabled(bool)
}

func (b *Base) addFilters(p *diag.Pipeline) error {
	var eval *cel.Evaluator
	for _, fc := range b.Config.Filters {
		if fc.Type == constants.FilterExpression && eval == nil {
			e, err := cel.NewEvaluator()
			if err != nil {
				return err
			}
			eval = e
		}

		f, err := BuildFilter(fc, eval, b.Logger)
		if err != nil {
			return fmt.Errorf("filter %d: %w", fc.ID, err)
		}
		if err := p.AddFilter(f); err != nil {
			return fmt.Errorf("filter %d: %w", fc.ID, err)
		}
	}
	return nil
}

// BuildFilter creates the filter fc describes. eval and log are only used by
// expression filters.
func BuildFilter(fc config.FilterConfig, eval *cel.Evaluator, log logger.Logger) (filter.Filter, error) {
	implication, err := filter.ParseImplication(fc.Implication)
	if err != nil {
		return nil, err
	}

	var f filter.Filter
	switch fc.Type {
	case constants.FilterKind:
		kind, err := models.ParseKind(fc.Value)
		if err != nil {
			return nil, err
		}
		f = filter.NewKindFilter(fc.ID, implication, kind)
	case constants.FilterNamespace:
		f = filter.NewNamespaceFilter(fc.ID, implication, fc.Value)
	case constants.FilterType:
		f = filter.NewTypeFilter(fc.ID, implication, fc.Value)
	case constants.FilterMethod:
		f = filter.NewMethodFilter(fc.ID, implication, fc.Value)
	case constants.FilterExpression:
		if eval == nil {
			return nil, fmt.Errorf("expression filter needs a CEL evaluator")
		}
		ef, err := filter.NewExpressionFilter(fc.ID, implication, eval, fc.Expression, log)
		if err != nil {
			return nil, err
		}
		f = ef
	case constants.FilterPayload:
		f = filter.NewPayloadFilter(fc.ID, implication, fc.Path, fc.Value)
	default:
		return nil, fmt.Errorf("unknown filter type %q", fc.Type)
	}

	if fc.Enabled != nil {
		if t, ok := f.(toggler); ok {
			t.SetEnabled(*fc.Enabled)
		}
	}
	return f, nil
}

func (b *Base) addListeners(p *diag.Pipeline) error {
	for _, lc := range b.Config.Listeners {
		l, remote, err := BuildListener(lc, b.Config, b.Logger)
		if err != nil {
			return fmt.Errorf("listener %d: %w", lc.ID, err)
		}
		if err := p.AddListener(l); err != nil {
			return fmt.Errorf("listener %d: %w", lc.ID, err)
		}
		if remote {
			b.Health.RegisterOptional(health.NewCheckerFunc(listener.Label(l), func(ctx context.Context) error {
				return listener.Check(ctx, l)
			}))
		}
	}
	return nil
}

// BuildListener creates the listener lc describes, wrapped in the throttle and
// circuit breaker it asks for. remote reports whether the sink lives behind a
// network connection.
func BuildListener(lc config.ListenerConfig, cfg *config.Config, log logger.Logger) (l listener.Listener, remote bool, err error) {
	remoteOpts := []listener.RemoteOption{
		listener.WithRetryPolicy(cfg.Retry),
		listener.WithLogger(log),
	}

	switch lc.Type {
	case constants.ListenerConsole:
		l = listener.NewConsoleListener(lc.ID, lc.Console)
	case constants.ListenerFile:
		l = listener.NewFileListener(lc.ID, lc.File)
	case constants.ListenerZap:
		l = listener.NewZapListener(lc.ID, logger.Zap(log))
	case constants.ListenerSpan:
		l = listener.NewSpanListener(lc.ID, lc.Span.MarkErrors)
	case constants.ListenerRedis:
		l, remote = listener.NewRedisListener(lc.ID, lc.Redis, remoteOpts...), true
	case constants.ListenerKafka:
		l, remote = listener.NewKafkaListener(lc.ID, lc.Kafka, remoteOpts...), true
	case constants.ListenerMongoDB:
		l, remote = listener.NewMongoListener(lc.ID, lc.MongoDB, remoteOpts...), true
	case constants.ListenerPostgres:
		l, remote = listener.NewPostgresListener(lc.ID, lc.Postgres, remoteOpts...), true
	default:
		return nil, false, fmt.Errorf("unknown listener type %q", lc.Type)
	}

	if lc.Enabled != nil {
		if t, ok := l.(toggler); ok {
			t.SetEnabled(*lc.Enabled)
		}
	}

	if lc.RateLimit.PerSecond > 0 {
		l = listener.Throttle(l, lc.RateLimit.PerSecond, lc.RateLimit.Burst)
	}
	if lc.CircuitBreaker {
		cb := cfg.CircuitBreaker
		l = listener.WithBreaker(l, circuitbreaker.Config{
			MaxRequests:  cb.MaxRequests,
			Interval:     cb.Interval,
			Timeout:      cb.Timeout,
			FailureRatio: cb.FailureRatio,
			MinRequests:  cb.MinRequests,
		})
	}
	return l, remote, nil
}
