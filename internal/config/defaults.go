package config

import (
	"strings"
	"time"
)

const (
	DefaultTemplatePath    = "./static/BotLauncher.zip"
	DefaultModuleRoot      = "./static/bot/cogs"
	DefaultModuleExtension = ".py"
	DefaultNamespace       = "_internal/cogs"
	DefaultOutputName      = "BotLauncher.zip"
	DefaultAddr            = ":8080"
	DefaultMetricsPath     = "/metrics"
	DefaultEventsSubject   = "botpack.assembly"
)

// applyDefaults fills zero values. It never overrides explicit settings.
func applyDefaults(cfg *Config) {
	if cfg.Template.Path == "" {
		cfg.Template.Path = DefaultTemplatePath
	}

	if cfg.Modules.Root == "" {
		cfg.Modules.Root = DefaultModuleRoot
	}
	if cfg.Modules.Extension == "" {
		cfg.Modules.Extension = DefaultModuleExtension
	} else if !strings.HasPrefix(cfg.Modules.Extension, ".") {
		cfg.Modules.Extension = "." + cfg.Modules.Extension
	}
	if cfg.Modules.Namespace == "" {
		cfg.Modules.Namespace = DefaultNamespace
	}
	if s := cfg.Modules.Sync; s != nil {
		if s.Retry.Backoff == "" {
			s.Retry.Backoff = RetryBackoffExponential
		}
		if s.Retry.Initial == 0 {
			s.Retry.Initial = time.Second
		}
		if s.Retry.Max == 0 {
			s.Retry.Max = 30 * time.Second
		}
	}

	if cfg.Output.Name == "" {
		cfg.Output.Name = DefaultOutputName
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Server.MaxConnections == 0 {
		cfg.Server.MaxConnections = 256
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.AssembleTimeout == 0 {
		cfg.Server.AssembleTimeout = 30 * time.Second
	}
	if cfg.Server.RateLimit.RequestsPerSecond > 0 && cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 1
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultEventsSubject
	}

	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
}
