package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("NOTIFY_RETRY_DELAY", "250ms")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 250*time.Millisecond, cfg.Notifications.RetryDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "Standard Terms of Tutoring System.", cfg.Enrollment.ContractTerms)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
}

func TestParseDurationFallsBack(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, (&Config{Timezone: "Mars/Olympus"}).Location())
	assert.Equal(t, time.UTC, (*Config)(nil).Location())
}
