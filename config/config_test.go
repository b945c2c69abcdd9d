// minutesapi/config/config_test.go
package config_test // Use an external test package

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"minutesapi/config"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		// Ensure no env vars are lingering from other tests
		t.Setenv("MINUTESAPI_PORT", "")
		t.Setenv("MINUTESAPI_MAX_CONCURRENCY", "")
		t.Setenv("MINUTESAPI_AUTH_ENABLE", "")
		t.Setenv("MINUTESAPI_STAGE_TIMEOUT", "")
		t.Setenv("MINUTESAPI_MAX_UPLOAD_SIZE", "")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, 2, cfg.MaxConcurrency)
		assert.Equal(t, false, cfg.AuthEnable)
		assert.Equal(t, "ffmpeg", cfg.FFBin)
		assert.Equal(t, "whisper-cli", cfg.WhisperBin)
		assert.Equal(t, 15*time.Minute, cfg.StageTimeout)
		assert.Equal(t, 24*time.Hour, cfg.JobRetention)
		assert.Equal(t, int64(1024*1024*1024), cfg.MaxUploadSize)
		assert.Equal(t, "data/uploaded_audio", cfg.UploadDir)
		assert.Equal(t, "outputs", cfg.OutputDir)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		t.Setenv("MINUTESAPI_PORT", "9999")
		t.Setenv("MINUTESAPI_MAX_CONCURRENCY", "10")
		t.Setenv("MINUTESAPI_AUTH_ENABLE", "true")
		t.Setenv("MINUTESAPI_AUTH_KEY", "newsecret")
		t.Setenv("MINUTESAPI_MAX_UPLOAD_SIZE", "50MB")
		t.Setenv("MINUTESAPI_STAGE_TIMEOUT", "90s")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "9999", cfg.Port)
		assert.Equal(t, 10, cfg.MaxConcurrency)
		assert.Equal(t, true, cfg.AuthEnable)
		assert.Equal(t, "newsecret", cfg.AuthKey)
		assert.Equal(t, int64(50*1024*1024), cfg.MaxUploadSize)
		assert.Equal(t, 90*time.Second, cfg.StageTimeout)
	})
}
