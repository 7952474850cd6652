package config

import (
	"regexp"
	"time"

	"git.home.luguber.info/inful/assetmanifest/internal/bundler"
	"git.home.luguber.info/inful/assetmanifest/internal/coordinator"
	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/retry"
)

// ValidateConfig checks a defaulted configuration.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, step := range []func() error{v.validateBuilds, v.validateManifest, v.validateOutputs} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validateBuilds() error {
	if len(cv.config.Builds) == 0 {
		return errors.ConfigError("at least one build must be configured").Build()
	}
	names := make(map[string]bool, len(cv.config.Builds))
	for _, b := range cv.config.Builds {
		if names[b.Name] {
			return errors.ConfigError("duplicate build name").WithContext("build", b.Name).Build()
		}
		names[b.Name] = true
		if len(b.Entry) == 0 {
			return errors.ConfigError("build has no entry").WithContext("build", b.Name).Build()
		}
		if b.Devtool != "" && b.Devtool != bundler.DevtoolSourceMap {
			return errors.ConfigError("unsupported devtool").
				WithContext("build", b.Name).WithContext("devtool", b.Devtool).Build()
		}
		for _, r := range b.Rules {
			if _, err := regexp.Compile(r.Test); err != nil {
				return errors.WrapError(err, errors.CategoryConfig, "invalid rule test pattern").
					WithContext("build", b.Name).WithContext("test", r.Test).Build()
			}
			if r.Type != bundler.RuleTypeResource {
				return errors.ConfigError("unsupported rule type").
					WithContext("build", b.Name).WithContext("type", r.Type).Build()
			}
		}
	}
	return nil
}

func (cv *configurationValidator) validateManifest() error {
	m := cv.config.Manifest
	if _, err := coordinator.ParsePolicy(m.PartialPolicy); err != nil {
		return err
	}
	if m.RemoveKeyHash != nil && *m.RemoveKeyHash != "" {
		if _, err := regexp.Compile(*m.RemoveKeyHash); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid remove_key_hash pattern").Build()
		}
	}
	if m.Sort != "" && m.Sort != "name" {
		return errors.ConfigError("unsupported manifest sort").WithContext("sort", m.Sort).Build()
	}
	return nil
}

func (cv *configurationValidator) validateOutputs() error {
	c := cv.config
	if c.NATS.Enabled && c.NATS.Subject == "" {
		return errors.ConfigError("nats subject is required").Build()
	}
	for _, d := range []string{c.NATS.Retry.Initial, c.NATS.Retry.Max} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid nats retry duration").
				WithContext("duration", d).Build()
		}
	}
	switch retry.Mode(c.NATS.Retry.Mode) {
	case "", retry.Fixed, retry.Linear, retry.Exponential:
	default:
		return errors.ConfigError("unsupported nats retry mode").WithContext("mode", c.NATS.Retry.Mode).Build()
	}
	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid watch debounce").
			WithContext("debounce", c.Watch.Debounce).Build()
	}
	return nil
}
