package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/utafrali/EcommerceGo/authgateway/pkg/config"
)

const (
	testKey = "0123456789abcdef0123456789abcdef-extra"
	testIV  = "fedcba9876543210-extra"
)

func baseEnv() []string {
	return []string{
		"CIPHER_KEY=" + testKey,
		"CIPHER_IV=" + testIV,
		"SHARED_SECRET=test-shared",
		"HMAC_SECRET=test-hmac",
	}
}

func load(t *testing.T, extra ...string) (*Config, error) {
	t.Helper()
	return Load(pkgconfig.WithEnviron(append(baseEnv(), extra...)))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 30*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.SessionLookupTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.IsLocal())
	assert.False(t, cfg.PeerEnabled())
}

func TestLoad_MissingCipherMaterial(t *testing.T) {
	_, err := Load(pkgconfig.WithEnviron(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CIPHER_KEY")
}

func TestLoad_ShortCipherMaterial(t *testing.T) {
	_, err := Load(pkgconfig.WithEnviron(append(baseEnv()[2:], "CIPHER_KEY=short", "CIPHER_IV=tiny")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CIPHER_KEY must be at least 32 bytes")
	assert.Contains(t, err.Error(), "CIPHER_IV must be at least 16 bytes")
}

func TestLoad_DefaultSecretsRejectedInProduction(t *testing.T) {
	_, err := load(t, "ENVIRONMENT=production")
	require.Error(t, err)
	for _, name := range []string{"JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET"} {
		assert.Contains(t, err.Error(), name)
	}

	cfg, err := load(t,
		"ENVIRONMENT=production",
		"JWT_ACCESS_SECRET=prod-access",
		"JWT_REFRESH_SECRET=prod-refresh",
		"CORS_ALLOWED_ORIGINS=https://shop.example.com",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoad_SigningSecretsRequiredEverywhere(t *testing.T) {
	for _, env := range []string{"development", "local"} {
		t.Run(env, func(t *testing.T) {
			_, err := Load(pkgconfig.WithEnviron([]string{
				"ENVIRONMENT=" + env,
				"CIPHER_KEY=" + testKey,
				"CIPHER_IV=" + testIV,
			}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "SHARED_SECRET")
			assert.Contains(t, err.Error(), "HMAC_SECRET")

			_, err = Load(pkgconfig.WithEnviron([]string{
				"ENVIRONMENT=" + env,
				"CIPHER_KEY=" + testKey,
				"CIPHER_IV=" + testIV,
				"SHARED_SECRET=",
				"HMAC_SECRET=",
			}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "SHARED_SECRET")
			assert.Contains(t, err.Error(), "HMAC_SECRET")
		})
	}
}

func TestLoad_TrustedProxiesAndOTPAttempts(t *testing.T) {
	cfg, err := load(t, "TRUSTED_PROXY_CIDRS=10.0.0.0/8,fd00::/8")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "fd00::/8"}, cfg.TrustedProxyCIDRs)
	assert.Equal(t, 5, cfg.OTPMaxAttempts)

	_, err = load(t, "TRUSTED_PROXY_CIDRS=10.0.0.0/8,nonsense", "OTP_MAX_ATTEMPTS=0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRUSTED_PROXY_CIDRS")
	assert.Contains(t, err.Error(), "OTP_MAX_ATTEMPTS must be positive")
}

func TestLoad_LocalAllowsDefaults(t *testing.T) {
	cfg, err := load(t, "ENVIRONMENT=local")
	require.NoError(t, err)
	assert.True(t, cfg.IsLocal())
}

func TestLoad_SameTokenSecrets(t *testing.T) {
	_, err := load(t, "JWT_ACCESS_SECRET=same", "JWT_REFRESH_SECRET=same")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoad_InvalidDurations(t *testing.T) {
	_, err := load(t, "SESSION_LOOKUP_TIMEOUT=0s", "SESSION_TTL=1m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_LOOKUP_TIMEOUT must be positive")
	assert.Contains(t, err.Error(), "SESSION_TTL must not be shorter")
}

func TestLoad_BadBackendURL(t *testing.T) {
	_, err := load(t, "ORDER_SERVICE_URL=orders:8003")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORDER_SERVICE_URL")
}

func TestLoad_Peer(t *testing.T) {
	_, err := load(t, "PEER_BASE_URL=https://peer.example.com", "PEER_CIPHER_KEY=short")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PEER_CIPHER_KEY")
	assert.Contains(t, err.Error(), "PEER_CIPHER_IV")
	assert.Contains(t, err.Error(), "PEER_SHARED_SECRET")

	cfg, err := load(t,
		"PEER_BASE_URL=https://peer.example.com",
		"PEER_CIPHER_KEY=abcdefghijklmnopqrstuvwxyz012345",
		"PEER_CIPHER_IV=abcdefghijklmnop",
		"PEER_SHARED_SECRET=peer-secret",
	)
	require.NoError(t, err)
	assert.True(t, cfg.PeerEnabled())
}
