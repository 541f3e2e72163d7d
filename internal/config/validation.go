package config

import (
	"path"
	"strings"

	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
)

// Validate checks the configuration for values the service cannot run with.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateTemplate(); err != nil {
		return err
	}
	if err := cv.validateModules(); err != nil {
		return err
	}
	if err := cv.validateOutput(); err != nil {
		return err
	}
	return cv.validateServer()
}

func (cv *configurationValidator) validateTemplate() error {
	if strings.TrimSpace(cv.config.Template.Path) == "" {
		return invalid("template.path", "must not be empty")
	}
	return nil
}

func (cv *configurationValidator) validateModules() error {
	m := cv.config.Modules
	if strings.TrimSpace(m.Root) == "" {
		return invalid("modules.root", "must not be empty")
	}
	if m.Extension == "." || strings.ContainsAny(m.Extension, `/\`) {
		return invalid("modules.extension", "must be a file suffix such as .py")
	}
	if err := ValidateNamespace(m.Namespace); err != nil {
		return err
	}
	if m.MaxInjectedBytes < 0 {
		return invalid("modules.max_injected_bytes", "must be zero (unlimited) or positive")
	}
	if s := m.Sync; s.Enabled() {
		if s.Interval < 0 {
			return invalid("modules.sync.interval", "must not be negative")
		}
		if s.Retry.MaxRetries < 0 {
			return invalid("modules.sync.retry.max_retries", "must not be negative")
		}
		mode, err := retryBackoffs.Parse("modules.sync.retry.backoff", string(s.Retry.Backoff))
		if err != nil {
			return err
		}
		s.Retry.Backoff = mode
	}
	return nil
}

func (cv *configurationValidator) validateOutput() error {
	name := cv.config.Output.Name
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\"`) {
		return invalid("output.name", "must be a plain file name")
	}
	return nil
}

func (cv *configurationValidator) validateServer() error {
	s := cv.config.Server
	if s.MaxConnections < 0 {
		return invalid("server.max_connections", "must not be negative")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.AssembleTimeout < 0 {
		return invalid("server timeouts", "must not be negative")
	}
	if s.RateLimit.RequestsPerSecond < 0 || s.RateLimit.Burst < 0 {
		return invalid("server.rate_limit", "must not be negative")
	}
	if !strings.HasPrefix(cv.config.Metrics.Path, "/") {
		return invalid("metrics.path", "must start with /")
	}
	return nil
}

// ValidateNamespace checks that an injection namespace is a clean, relative,
// slash separated archive path.
func ValidateNamespace(ns string) error {
	switch {
	case ns == "":
		return invalid("modules.namespace", "must not be empty")
	case strings.HasPrefix(ns, "/") || strings.Contains(ns, `\`):
		return invalid("modules.namespace", "must be a relative slash separated path")
	case path.Clean(ns) != ns || ns == "." || strings.HasPrefix(ns, ".."):
		return invalid("modules.namespace", "must be a clean path without . or .. segments")
	}
	return nil
}

func invalid(field, reason string) error {
	return derrors.ConfigError("invalid configuration").
		WithContext("field", field).
		WithContext("reason", reason).
		Build()
}
