package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"diagflow/internal/constants"
	"diagflow/pkg/retry"
	"diagflow/pkg/store"
	"diagflow/pkg/tracing"
)

// keyDelimiter separates nested config keys. String table keys are dotted,
// so "." cannot be used.
const keyDelimiter = "::"

// key turns a dotted config path into a viper key.
func key(path string) string {
	return strings.ReplaceAll(path, ".", keyDelimiter)
}

// LoadConfig reads configFile (YAML) on top of the built-in defaults. An empty
// path loads defaults and environment variables only.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))

	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(v, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(key("logging.level"), "info")

	v.SetDefault(key("pipeline.name"), constants.DefaultPipelineName)
	v.SetDefault(key("pipeline.enabled"), true)
	v.SetDefault(key("pipeline.store"), true)
	v.SetDefault(key("pipeline.assert_should_throw"), false)
	v.SetDefault(key("pipeline.capture_stack"), false)
	v.SetDefault(key("pipeline.platform_log"), false)
	v.SetDefault(key("pipeline.capacity"), store.DefaultCapacity)
	v.SetDefault(key("pipeline.color"), -1)

	v.SetDefault(key("inspector.port"), constants.DefaultInspectorPort)
	v.SetDefault(key("inspector.rate_limit.rps"), 10.0)
	v.SetDefault(key("inspector.rate_limit.burst"), 20)
	v.SetDefault(key("inspector.rate_limit.cleanup_interval"), 300)
	v.SetDefault(key("inspector.rate_limit.max_age"), 600)

	v.SetDefault(key("circuit_breaker.max_requests"), 1)
	v.SetDefault(key("circuit_breaker.interval"), "60s")
	v.SetDefault(key("circuit_breaker.timeout"), "30s")
	v.SetDefault(key("circuit_breaker.failure_ratio"), 0.5)
	v.SetDefault(key("circuit_breaker.min_requests"), 5)

	policy := retry.DefaultPolicy()
	v.SetDefault(key("retry.max_attempts"), policy.MaxAttempts)
	v.SetDefault(key("retry.initial_interval"), policy.InitialInterval)
	v.SetDefault(key("retry.max_interval"), policy.MaxInterval)
	v.SetDefault(key("retry.multiplier"), policy.Multiplier)
	v.SetDefault(key("retry.max_elapsed_time"), policy.MaxElapsedTime)

	v.SetDefault(key("tracing.service_name"), tracing.DefaultServiceName)
	v.SetDefault(key("tracing.otlp.insecure"), true)

	v.SetDefault(key("perf.report_exceeding"), true)
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv(key("logging.level"), "LOGGING_LEVEL")

	v.BindEnv(key("pipeline.name"), "PIPELINE_NAME")
	v.BindEnv(key("pipeline.enabled"), "PIPELINE_ENABLED")
	v.BindEnv(key("pipeline.assert_should_throw"), "PIPELINE_ASSERT_SHOULD_THROW")
	v.BindEnv(key("pipeline.store"), "PIPELINE_STORE")
	v.BindEnv(key("pipeline.capture_stack"), "PIPELINE_CAPTURE_STACK")
	v.BindEnv(key("pipeline.platform_log"), "PIPELINE_PLATFORM_LOG")
	v.BindEnv(key("pipeline.capacity"), "PIPELINE_CAPACITY")
	v.BindEnv(key("pipeline.notifier"), "PIPELINE_NOTIFIER")

	v.BindEnv(key("inspector.enabled"), "INSPECTOR_ENABLED")
	v.BindEnv(key("inspector.port"), "INSPECTOR_PORT")
	v.BindEnv(key("inspector.rate_limit.enabled"), "INSPECTOR_RATE_LIMIT_ENABLED")

	v.BindEnv(key("tracing.otlp.endpoint"), "TRACING_OTLP_ENDPOINT")
	v.BindEnv(key("tracing.otlp.insecure"), "TRACING_OTLP_INSECURE")
	v.BindEnv(key("tracing.enabled"), "TRACING_ENABLED")
	v.BindEnv(key("tracing.service_name"), "TRACING_SERVICE_NAME")

	v.BindEnv(key("perf.summary_file"), "PERF_SUMMARY_FILE")
	v.BindEnv(key("counters.summary_file"), "COUNTERS_SUMMARY_FILE")
}

func applyEnvOverrides(v *viper.Viper, cfg *Config) error {
	if files := v.GetString("STRINGS_FILES"); files != "" {
		paths := strings.Split(files, ",")
		cfg.Strings.Files = cfg.Strings.Files[:0]
		for _, p := range paths {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Strings.Files = append(cfg.Strings.Files, p)
			}
		}
	}

	if otlpEndpoint := v.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
