package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, StoreBackendMongo, cfg.StoreBackend)
	assert.Equal(t, "scan_history", cfg.Mongo.ScansCollection)
	assert.Equal(t, "http://127.0.0.1:8000/predict", cfg.Inference.URL)
	assert.Equal(t, 30*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSAllowedOrigins)
	assert.False(t, cfg.Auth.StrictRegisterStatus)
	assert.Empty(t, cfg.Auth.AdminJWTSecret)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("INFERENCE_URL", "http://ai:8000/predict")
	t.Setenv("INFERENCE_TIMEOUT", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REGISTER_STRICT_STATUS", "true")
	t.Setenv("PREDICT_RATE_LIMIT", "2.5")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
	assert.Equal(t, "http://ai:8000/predict", cfg.Inference.URL)
	assert.Equal(t, 5*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSAllowedOrigins)
	assert.True(t, cfg.Auth.StrictRegisterStatus)
	assert.InDelta(t, 2.5, cfg.HTTP.PredictRateLimit, 0.0001)
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_DURATION", "1m30s")
	assert.Equal(t, 90*time.Second, getEnvDuration("X_DURATION", time.Second))

	t.Setenv("X_DURATION", "garbage")
	assert.Equal(t, time.Second, getEnvDuration("X_DURATION", time.Second))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("X_INT", " 42 ")
	assert.Equal(t, 42, getEnvInt("X_INT", 7))

	for _, bad := range []string{"20MB", "", "abc", "1.5"} {
		t.Setenv("X_INT", bad)
		assert.Equal(t, 7, getEnvInt("X_INT", 7), "value %q", bad)
	}
}

func TestLoadConfig_MalformedIntKeepsDefault(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "20MB")
	t.Setenv("SERVER_PORT", "eighty")

	cfg := LoadConfig()

	assert.Equal(t, int64(20<<20), cfg.Inference.MaxUploadBytes)
	assert.Equal(t, 8080, cfg.ServerPort)
}
