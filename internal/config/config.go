package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Governance GovernanceConfig `koanf:"governance"`
	Store      StoreConfig      `koanf:"store"`
	Surfaces   []SurfaceSeed    `koanf:"surfaces"`
	Adapters   AdaptersConfig   `koanf:"adapters"`
	Scheduler  SchedulerConfig  `koanf:"scheduler"`
	Daemon     DaemonConfig     `koanf:"daemon"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

// GovernanceConfig drives the policy evaluators and the decision merge.
// DefaultMode applies to workspaces without a stored override.
type GovernanceConfig struct {
	DefaultMode       string              `koanf:"default_mode"`
	EvaluatorTimeout  string              `koanf:"evaluator_timeout"`
	AutoAllow         []string            `koanf:"auto_allow"`
	Blocked           []string            `koanf:"blocked"`
	RequireApproval   []string            `koanf:"require_approval"`
	Credentials       map[string][]string `koanf:"credentials"`
	IntentLevels      map[string]string   `koanf:"intent_levels"`
	DailyCommandLimit int                 `koanf:"daily_command_limit"`
}

type StoreConfig struct {
	Path         string `koanf:"path"`
	LockTimeout  string `koanf:"lock_timeout"`
	LockRetry    string `koanf:"lock_retry"`
	LockMaxRetry int    `koanf:"lock_max_retry"`
}

// SurfaceSeed registers a surface at startup.
type SurfaceSeed struct {
	ID           string   `koanf:"id"`
	Type         string   `koanf:"type"`
	Name         string   `koanf:"name"`
	Capabilities []string `koanf:"capabilities"`
	Permission   string   `koanf:"permission"`
}

type AdaptersConfig struct {
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type SlackConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Port          int    `koanf:"port"`
	SigningSecret string `koanf:"signing_secret"`
	BotToken      string `koanf:"bot_token"`
}

type TelegramConfig struct {
	Enabled       bool   `koanf:"enabled"`
	BotToken      string `koanf:"bot_token"`
	UpdateTimeout int    `koanf:"update_timeout"`
}

type SchedulerConfig struct {
	Enabled         bool   `koanf:"enabled"`
	TickInterval    string `koanf:"tick_interval"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
	WorkspaceID     string `koanf:"workspace_id"`
}

type DaemonConfig struct {
	ShutdownTimeout        string `koanf:"shutdown_timeout"`
	HealthCheckInterval    string `koanf:"health_check_interval"`
	StartupShutdownTimeout string `koanf:"startup_shutdown_timeout"`
	StaleLockTTL           string `koanf:"stale_lock_ttl"`
}

const (
	DefaultWorkspaceID = "default"

	DefaultServerPort                  = 8787
	DefaultServerLogLevel              = "info"
	DefaultServerReadTimeout           = "15s"
	DefaultServerWriteTimeout          = "15s"
	DefaultServerIdleTimeout           = "60s"
	DefaultServerShutdownTimeout       = "10s"
	DefaultGovernanceMode              = "strict"
	DefaultGovernanceEvaluatorTimeout  = "3s"
	DefaultGovernanceDailyCommandLimit = 500
	DefaultStoreLockTimeout            = "30s"
	DefaultStoreLockRetry              = "100ms"
	DefaultStoreLockMaxRetry           = 300
	DefaultSlackPort                   = 3000
	DefaultTelegramUpdateTimeout       = 60
	DefaultSchedulerTickInterval       = "1m"
	DefaultSchedulerShutdownTimeout    = "30s"
	DefaultDaemonShutdownTimeout       = "30s"
	DefaultDaemonHealthCheckInterval   = "30s"
	DefaultDaemonStartupShutdown       = "10s"
	DefaultDaemonStaleLockTTL          = "15m"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"server.port":                    DefaultServerPort,
		"server.log_level":               DefaultServerLogLevel,
		"server.read_timeout":            DefaultServerReadTimeout,
		"server.write_timeout":           DefaultServerWriteTimeout,
		"server.idle_timeout":            DefaultServerIdleTimeout,
		"server.shutdown_timeout":        DefaultServerShutdownTimeout,
		"governance.default_mode":        DefaultGovernanceMode,
		"governance.evaluator_timeout":   DefaultGovernanceEvaluatorTimeout,
		"governance.auto_allow":          []string{},
		"governance.blocked":             []string{},
		"governance.require_approval":    []string{},
		"governance.daily_command_limit": DefaultGovernanceDailyCommandLimit,
		"store.path":                     filepath.Join(os.Getenv("HOME"), ".regent", "data"),
		"store.lock_timeout":             DefaultStoreLockTimeout,
		"store.lock_retry":               DefaultStoreLockRetry,
		"store.lock_max_retry":           DefaultStoreLockMaxRetry,
		"surfaces": []SurfaceSeed{
			{ID: "cli", Type: "control", Name: "Local CLI", Permission: "admin"},
			{ID: "api", Type: "control", Name: "HTTP API", Permission: "operator"},
			{ID: "scheduler", Type: "control", Name: "Scheduler", Permission: "operator"},
		},
		"adapters.slack.port":              DefaultSlackPort,
		"adapters.telegram.update_timeout": DefaultTelegramUpdateTimeout,
		"scheduler.enabled":                true,
		"scheduler.tick_interval":          DefaultSchedulerTickInterval,
		"scheduler.shutdown_timeout":       DefaultSchedulerShutdownTimeout,
		"scheduler.workspace_id":           DefaultWorkspaceID,
		"daemon.shutdown_timeout":          DefaultDaemonShutdownTimeout,
		"daemon.health_check_interval":     DefaultDaemonHealthCheckInterval,
		"daemon.startup_shutdown_timeout":  DefaultDaemonStartupShutdown,
		"daemon.stale_lock_ttl":            DefaultDaemonStaleLockTTL,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".regent", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables
	k.Load(env.Provider("REGENT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "REGENT_")), "_", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Post-Process: Inject standard Env Vars if missing
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" && cfg.Adapters.Slack.BotToken == "" {
		cfg.Adapters.Slack.BotToken = token
	}
	if secret := os.Getenv("SLACK_SIGNING_SECRET"); secret != "" && cfg.Adapters.Slack.SigningSecret == "" {
		cfg.Adapters.Slack.SigningSecret = secret
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" && cfg.Adapters.Telegram.BotToken == "" {
		cfg.Adapters.Telegram.BotToken = token
	}

	return &cfg, nil
}
