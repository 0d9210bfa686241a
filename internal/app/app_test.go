package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/zdrav-project/internal/config"
	"github.com/pr-poehali-dev/zdrav-project/pkg/tracing"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:       "test",
		LogLevel:          "error",
		HTTPPort:          0,
		SessionStore:      config.StoreMemory,
		SessionTTLHours:   1,
		OTELSampleRate:    1,
		RateLimitRPS:      100,
		RateLimitBurst:    100,
		PprofAllowedCIDRs: []string{"127.0.0.0/8"},
	}
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewApp_MemoryStore(t *testing.T) {
	a, err := NewApp(testConfig(), discardLogger())
	require.NoError(t, err)

	assert.Nil(t, a.rdb)
	assert.Nil(t, a.producer)
	assert.Len(t, a.janitors, 2, "session and notification janitors")

	rec := httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, a.Shutdown())
}

func TestNewApp_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.SessionStore = config.StoreRedis
	cfg.RedisAddr = mr.Addr()

	a, err := NewApp(cfg, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, a.rdb)
	assert.Len(t, a.janitors, 1, "redis expires sessions itself, notifications still need sweeping")

	rec := httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/items/1", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Len(t, mr.Keys(), 1)

	require.NoError(t, a.Shutdown())
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.SessionStore = config.StoreRedis
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := NewApp(cfg, discardLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

func TestNewApp_FailureShutsDownTracer(t *testing.T) {
	var shutdowns int
	orig := initTracer
	initTracer = func(context.Context, tracing.Config) (func(context.Context) error, error) {
		return func(context.Context) error {
			shutdowns++
			return nil
		}, nil
	}
	t.Cleanup(func() { initTracer = orig })

	cfg := testConfig()
	cfg.SessionStore = config.StoreRedis
	cfg.RedisAddr = "127.0.0.1:1"

	a, err := NewApp(cfg, discardLogger())

	require.Error(t, err)
	assert.Nil(t, a)
	assert.Equal(t, 1, shutdowns)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := NewApp(testConfig(), discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, a.Run(ctx))
}
