// Package config is the proxy's layered configuration loader, grounded on
// None9527-NGOClaw's gateway/internal/infrastructure/config/config.go —
// same viper.New + SetDefault + layered-file + env-override shape,
// generalized from a Telegram-bot gateway's config schema to this proxy's
// backend/session/reactor schema.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the proxy's full runtime configuration.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Session   SessionConfig             `mapstructure:"session"`
	Backends  map[string]BackendConfig  `mapstructure:"backends"`
	Aliases   map[string]string         `mapstructure:"aliases"`
	Reactor   ReactorConfig             `mapstructure:"reactor"`
	Telemetry TelemetryConfig           `mapstructure:"telemetry"`
	Log       LogConfig                 `mapstructure:"log"`
}

// ServerConfig configures the HTTP ingress adapter.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	CORSAllowOrigins []string     `mapstructure:"cors_allow_origins"`
}

// SessionConfig configures session lifetime and eviction.
type SessionConfig struct {
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	HistoryCapacity int           `mapstructure:"history_capacity"`
}

// BackendConfig configures one registered backend connector.
type BackendConfig struct {
	// Type selects the connector implementation: "openai", "openrouter",
	// "zhipuai", "anthropic", "gemini-api-key", "gemini-oauth",
	// "gemini-vertex", or "qwen-oauth".
	Type  string `mapstructure:"type"`

	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`

	// Gemini Vertex fields.
	Project  string `mapstructure:"project"`
	Location string `mapstructure:"location"`

	// Qwen OAuth fields.
	CredentialsPath string `mapstructure:"credentials_path"`
	ClientID        string `mapstructure:"client_id"`
	WatchFile       bool   `mapstructure:"watch_file"`
}

// ReactorConfig configures the tool-call reactor's built-in handlers.
type ReactorConfig struct {
	DangerousCommandShellTools []string      `mapstructure:"dangerous_command_shell_tools"`
	PytestShellTools           []string      `mapstructure:"pytest_shell_tools"`
	PytestFullSuiteTTL         time.Duration `mapstructure:"pytest_full_suite_ttl"`
	ToolLoopMaxRepeats         int           `mapstructure:"tool_loop_max_repeats"`
	ToolLoopTTL                time.Duration `mapstructure:"tool_loop_ttl"`
	ToolLoopMode               string        `mapstructure:"tool_loop_mode"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
	Insecure     bool   `mapstructure:"insecure"`
}

// LogConfig configures zerolog's output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load builds a viper instance layered (lowest to highest precedence):
// defaults → one config file → PROXYCORE_* environment variables. The file
// is configPath when non-empty; otherwise the first config.yaml found in
// ~/.proxycore, then in the working directory. Only one file is read; the
// files are not merged.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	} else {
		home, _ := os.UserHomeDir()
		if home != "" {
			v.AddConfigPath(filepath.Join(home, ".proxycore"))
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("PROXYCORE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 120*time.Second)

	v.SetDefault("session.idle_timeout", 30*time.Minute)
	v.SetDefault("session.sweep_interval", 5*time.Minute)
	v.SetDefault("session.history_capacity", 200)

	v.SetDefault("reactor.dangerous_command_shell_tools", []string{"bash", "shell", "execute_command", "run_command"})
	v.SetDefault("reactor.pytest_shell_tools", []string{"bash", "shell", "execute_command", "run_command"})
	v.SetDefault("reactor.pytest_full_suite_ttl", 10*time.Minute)
	v.SetDefault("reactor.tool_loop_max_repeats", 3)
	v.SetDefault("reactor.tool_loop_ttl", 120*time.Second)
	v.SetDefault("reactor.tool_loop_mode", "chance_then_break")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate reports configuration errors Load's defaults-and-unmarshal pass
// cannot catch on its own: missing API keys/credential paths for
// configured backends, an unknown backend type, and an invalid tool-loop
// mode. Used by `proxyd validate-config` (spec §6 exit codes).
func Validate(cfg *Config) []error {
	var errs []error

	if len(cfg.Backends) == 0 {
		errs = append(errs, fmt.Errorf("config: no backends configured"))
	}

	for name, b := range cfg.Backends {
		switch b.Type {
		case "openai", "openrouter", "zhipuai", "anthropic", "gemini-api-key", "gemini-oauth":
			if b.APIKey == "" {
				errs = append(errs, fmt.Errorf("config: backend %q requires api_key", name))
			}
		case "gemini-vertex":
			if b.Project == "" || b.Location == "" {
				errs = append(errs, fmt.Errorf("config: backend %q (gemini-vertex) requires project and location", name))
			}
		case "qwen-oauth":
			if b.CredentialsPath == "" {
				errs = append(errs, fmt.Errorf("config: backend %q (qwen-oauth) requires credentials_path", name))
			}
		case "":
			errs = append(errs, fmt.Errorf("config: backend %q is missing a type", name))
		default:
			errs = append(errs, fmt.Errorf("config: backend %q has unknown type %q", name, b.Type))
		}
	}

	switch cfg.Reactor.ToolLoopMode {
	case "break", "chance_then_break":
	default:
		errs = append(errs, fmt.Errorf("config: reactor.tool_loop_mode must be \"break\" or \"chance_then_break\", got %q", cfg.Reactor.ToolLoopMode))
	}

	return errs
}
