package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_TYPE", "")
	t.Setenv("OUTBOX_WORKERS", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, 2, cfg.OutboxWorkers)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionDuration)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("OUTBOX_WORKERS", "4")
	t.Setenv("EMAIL_DEBUG", "true")
	t.Setenv("SESSION_DURATION", "30m")

	cfg := Load()

	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, 4, cfg.OutboxWorkers)
	assert.True(t, cfg.EmailDebug)
	assert.Equal(t, 30*time.Minute, cfg.SessionDuration)
}

func TestGetEnvHelpersFallBackOnGarbage(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "not a number", value: "abc"},
		{name: "float", value: "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CHORECHART_TEST_VALUE", tt.value)
			assert.Equal(t, 7, getEnvInt("CHORECHART_TEST_VALUE", 7))
			assert.Equal(t, time.Second, getEnvDuration("CHORECHART_TEST_VALUE", time.Second))
			assert.False(t, getEnvBool("CHORECHART_TEST_VALUE", false))
		})
	}
}
