package config

import (
	"fmt"
	"strings"

	"diagflow/internal/constants"
	"diagflow/pkg/filter"
	"diagflow/pkg/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks the configuration without touching any sink.
func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateLogging(cfg.Logging); err != nil {
		errors = append(errors, err)
	}

	if err := validatePipeline(cfg.Pipeline); err != nil {
		errors = append(errors, err)
	}

	for i, o := range cfg.Overrides {
		if err := validateOverride(i, o); err != nil {
			errors = append(errors, err)
		}
	}

	errors = append(errors, validateFilters(cfg.Filters)...)
	errors = append(errors, validateListeners(cfg.Listeners)...)

	if err := validateInspector(cfg.Inspector); err != nil {
		errors = append(errors, err)
	}

	if err := validateRetry(cfg); err != nil {
		errors = append(errors, err)
	}

	if err := validateTracing(cfg); err != nil {
		errors = append(errors, err)
	}

	errors = append(errors, validatePerf(cfg.Perf)...)
	errors = append(errors, validateCounters(cfg.Counters)...)

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateLogging(cfg LoggingConfig) error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return &ValidationError{
		Field:   "logging.level",
		Message: fmt.Sprintf("unknown level %q (supported: debug, info, warn, error)", cfg.Level),
	}
}

func validatePipeline(cfg PipelineConfig) error {
	if cfg.Capacity < 1 {
		return &ValidationError{
			Field:   "pipeline.capacity",
			Message: fmt.Sprintf("capacity must be at least 1, got %d", cfg.Capacity),
		}
	}

	if cfg.Color >= models.PaletteSize() {
		return &ValidationError{
			Field:   "pipeline.color",
			Message: fmt.Sprintf("color index must be below %d, got %d", models.PaletteSize(), cfg.Color),
		}
	}

	return nil
}

func validateOverride(i int, o OverrideConfig) error {
	if o.Type == "" {
		return &ValidationError{
			Field:   fmt.Sprintf("overrides[%d].type", i),
			Message: "type is required",
		}
	}

	if o.Override().IsZero() {
		return &ValidationError{
			Field:   fmt.Sprintf("overrides[%d]", i),
			Message: "override sets no toggle",
		}
	}

	return nil
}

func validateFilters(filters []FilterConfig) []error {
	var errs []error
	seen := make(map[int]bool, len(filters))

	for i, f := range filters {
		field := fmt.Sprintf("filters[%d]", i)

		if seen[f.ID] {
			errs = append(errs, &ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate filter id %d", f.ID),
			})
			continue
		}
		seen[f.ID] = true

		if _, err := filter.ParseImplication(f.Implication); err != nil {
			errs = append(errs, &ValidationError{Field: field + ".implication", Message: err.Error()})
			continue
		}

		var err *ValidationError
		switch f.Type {
		case constants.FilterKind:
			if _, perr := models.ParseKind(f.Value); perr != nil || f.Value == "" {
				err = &ValidationError{Field: field + ".value", Message: "kind must be error, warning or unknown"}
			}
		case constants.FilterNamespace, constants.FilterType, constants.FilterMethod:
			if f.Value == "" {
				err = &ValidationError{Field: field + ".value", Message: "pattern is required"}
			}
		case constants.FilterExpression:
			if strings.TrimSpace(f.Expression) == "" {
				err = &ValidationError{Field: field + ".expression", Message: "expression is required"}
			}
		case constants.FilterPayload:
			if f.Path == "" {
				err = &ValidationError{Field: field + ".path", Message: "payload path is required"}
			}
		default:
			err = &ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unknown filter type %q", f.Type),
			}
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

func validateListeners(listeners []ListenerConfig) []error {
	var errs []error
	seen := make(map[int]bool, len(listeners))

	for i, l := range listeners {
		field := fmt.Sprintf("listeners[%d]", i)

		if seen[l.ID] {
			errs = append(errs, &ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate listener id %d", l.ID),
			})
			continue
		}
		seen[l.ID] = true

		if l.RateLimit.PerSecond < 0 || l.RateLimit.Burst < 0 {
			errs = append(errs, &ValidationError{
				Field:   field + ".rate_limit",
				Message: "per_second and burst must be non-negative",
			})
		}

		var err *ValidationError
		switch l.Type {
		case constants.ListenerConsole:
			switch l.Console.Color {
			case "", "auto", "always", "never":
			default:
				err = &ValidationError{Field: field + ".console.color", Message: "color must be auto, always or never"}
			}
		case constants.ListenerZap, constants.ListenerSpan:
		case constants.ListenerFile:
			if l.File.Path == "" {
				err = &ValidationError{Field: field + ".file.path", Message: "file path is required"}
			}
		case constants.ListenerRedis:
			if l.Redis.Host == "" {
				err = &ValidationError{Field: field + ".redis.host", Message: "redis host is required"}
			}
		case constants.ListenerKafka:
			err = validateBrokers(field, l.Kafka.Brokers)
		case constants.ListenerMongoDB:
			if l.MongoDB.URI == "" {
				err = &ValidationError{Field: field + ".mongodb.uri", Message: "mongodb uri is required"}
			}
		case constants.ListenerPostgres:
			if l.Postgres.DSN == "" && l.Postgres.Host == "" {
				err = &ValidationError{Field: field + ".postgres", Message: "either dsn or host is required"}
			}
		default:
			err = &ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unknown listener type %q", l.Type),
			}
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

func validateBrokers(field string, brokers []string) *ValidationError {
	if len(brokers) == 0 {
		return &ValidationError{
			Field:   field + ".kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("%s.kafka.brokers[%d]", field, i),
				Message: "broker address cannot be empty",
			}
		}
	}

	return nil
}

func validateInspector(cfg InspectorConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "inspector.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.RateLimit.Enabled && (cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst <= 0) {
		return &ValidationError{
			Field:   "inspector.rate_limit",
			Message: "rps and burst must be positive",
		}
	}

	return nil
}

func validateRetry(cfg *Config) error {
	r := cfg.Retry

	if r.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if r.InitialInterval < 0 {
		return &ValidationError{
			Field:   "retry.initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if r.MaxInterval < 0 {
		return &ValidationError{
			Field:   "retry.max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if r.MaxInterval > 0 && r.InitialInterval > 0 && r.MaxInterval < r.InitialInterval {
		return &ValidationError{
			Field:   "retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if r.Multiplier <= 0 {
		return &ValidationError{
			Field:   "retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateTracing(cfg *Config) error {
	if cfg.Tracing.Enabled && cfg.Tracing.OTLP.Endpoint == "" {
		return &ValidationError{
			Field:   "tracing.otlp.endpoint",
			Message: "OTLP endpoint is required when tracing is enabled",
		}
	}
	return nil
}

func validatePerf(cfg PerfConfig) []error {
	var errs []error
	seen := make(map[string]bool, len(cfg.Events))

	for i, e := range cfg.Events {
		field := fmt.Sprintf("perf.events[%d]", i)
		switch {
		case e.Name == "":
			errs = append(errs, &ValidationError{Field: field + ".name", Message: "event name is required"})
		case seen[e.Name]:
			errs = append(errs, &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate event %q", e.Name)})
		case e.MaxTime < 0:
			errs = append(errs, &ValidationError{Field: field + ".max_time", Message: "max_time must be non-negative"})
		}
		seen[e.Name] = true
	}

	return errs
}

func validateCounters(cfg CountersConfig) []error {
	var errs []error
	seen := make(map[string]bool, len(cfg.Types))

	for i, c := range cfg.Types {
		field := fmt.Sprintf("counters.types[%d]", i)
		key := c.Name
		if key == "" {
			key = c.Type
		}
		switch {
		case c.Type == "":
			errs = append(errs, &ValidationError{Field: field + ".type", Message: "type is required"})
		case seen[key]:
			errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf("duplicate counter %q", key)})
		case c.MaxCount < 0:
			errs = append(errs, &ValidationError{Field: field + ".max_count", Message: "max_count must be non-negative"})
		}
		seen[key] = true
	}

	return errs
}
