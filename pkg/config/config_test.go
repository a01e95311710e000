package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Port    int           `env:"HTTP_PORT" envDefault:"8080"`
	Secret  string        `env:"SHARED_SECRET,required"`
	Timeout time.Duration `env:"SESSION_LOOKUP_TIMEOUT" envDefault:"500ms"`
	Origins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

func TestLoad_FromEnviron(t *testing.T) {
	var cfg sample
	err := Load(&cfg, WithEnviron([]string{
		"SHARED_SECRET=s3cr3t",
		"CORS_ALLOWED_ORIGINS=https://a.test,https://b.test",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "s3cr3t", cfg.Secret)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Origins)
}

func TestLoad_Prefix(t *testing.T) {
	var cfg sample
	err := Load(&cfg, WithPrefix("PEER_"), WithEnviron([]string{
		"PEER_SHARED_SECRET=peer",
		"SHARED_SECRET=own",
		"PEER_HTTP_PORT=9090",
	}))
	require.NoError(t, err)
	assert.Equal(t, "peer", cfg.Secret)
	assert.Equal(t, 9090, cfg.Port)
}

func TestLoad_MissingRequired(t *testing.T) {
	var cfg sample
	err := Load(&cfg, WithEnviron(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHARED_SECRET")
}

func TestLoad_ProcessEnvironment(t *testing.T) {
	t.Setenv("SHARED_SECRET", "from-process")
	var cfg sample
	require.NoError(t, Load(&cfg))
	assert.Equal(t, "from-process", cfg.Secret)
}
