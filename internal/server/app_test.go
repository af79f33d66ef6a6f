package server

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.SecretKey = "test-secret"
	c.DatabaseDSN = "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1"
	c.HTTPAddr = "127.0.0.1:0"
	c.GRPCAddr = "127.0.0.1:0"
	return c
}

func TestNewApp(t *testing.T) {
	app, err := NewApp(testConfig())
	require.NoError(t, err)
	assert.NotNil(t, app.auth)
	assert.Nil(t, app.redis)
	assert.Equal(t, 10, app.db.Stats().MaxOpenConnections)
	app.close(context.Background())
}

func TestClose_FlushesZapLogger(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	var buf bytes.Buffer
	ws := &zapcore.BufferedWriteSyncer{WS: zapcore.AddSync(&buf)}
	defer ws.Stop()
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), ws, zapcore.InfoLevel)

	app := &App{logger: logging.NewZapLogger(zap.New(core)), db: db}
	app.logger.Info(context.Background(), "shutting down")
	assert.Empty(t, buf.String())

	app.close(context.Background())
	assert.Contains(t, buf.String(), `"msg":"shutting down"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_InvalidSigningAlgorithm(t *testing.T) {
	c := testConfig()
	c.SigningAlgorithm = "RS256"

	_, err := NewApp(c)
	assert.Error(t, err)
}

func TestNewApp_RedisLeaseSweeper(t *testing.T) {
	mr := miniredis.RunT(t)
	c := testConfig()
	c.RedisAddr = mr.Addr()

	app, err := NewApp(c)
	require.NoError(t, err)
	defer app.close(context.Background())
	require.NotNil(t, app.redis)

	ok, err := sessions.NewRedisLocker(app.redis).TryLock(context.Background(), sessions.LeaseKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists(sessions.LeaseKey))
	assert.NotNil(t, app.newSweeper())
}

func TestRun_FailsWhenDatabaseUnreachable(t *testing.T) {
	app, err := NewApp(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = app.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations")
}
