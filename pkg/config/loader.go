package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
)

// Option customises how Load reads the environment.
type Option func(*env.Options)

// WithPrefix only reads variables starting with prefix.
func WithPrefix(prefix string) Option {
	return func(o *env.Options) { o.Prefix = prefix }
}

// WithEnviron reads from the given KEY=VALUE list instead of the process
// environment.
func WithEnviron(environ []string) Option {
	return func(o *env.Options) {
		m := make(map[string]string, len(environ))
		for _, kv := range environ {
			k, v, _ := strings.Cut(kv, "=")
			m[k] = v
		}
		o.Environment = m
	}
}

// Load parses environment variables into cfg using `env` struct tags.
func Load(cfg any, opts ...Option) error {
	o := env.Options{Environment: env.ToMap(os.Environ())}
	for _, opt := range opts {
		opt(&o)
	}
	if err := env.ParseWithOptions(cfg, o); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
