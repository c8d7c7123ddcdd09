package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
log_level: debug
log_file: /tmp/taskdash.log
server:
  address: ":9090"
  db_file: tasks.sqlite
  jwt_secret: s3cret
  token_ttl: 2h
  bcrypt_cost: 10
  auto_confirm: true
client:
  base_url: http://tasks.internal:9090
  timezone: Asia/Tokyo
`

func TestLoadFile(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	assert.Nil(err)
	assert.Equal("debug", cfg.LogLevel)
	assert.Equal("/tmp/taskdash.log", cfg.LogFile)
	assert.Equal(":9090", cfg.Server.Address)
	assert.Equal("tasks.sqlite", cfg.Server.DBFile)
	assert.Equal(2*time.Hour, cfg.Server.TokenTTL)
	assert.Equal(10, cfg.Server.BcryptCost)
	assert.True(cfg.Server.AutoConfirm)
	assert.Equal(10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal("http://tasks.internal:9090", cfg.Client.BaseURL)
	assert.Equal(15*time.Second, cfg.Client.Timeout)
	assert.Nil(cfg.Server.Validate())

	loc, err := cfg.Client.Location()
	assert.Nil(err)
	assert.Equal("Asia/Tokyo", loc.String())
}

func TestLoadMissingFileFallsBackToEnv(t *testing.T) {
	assert := assert.New(t)

	t.Setenv("TASKDASH_JWT_SECRET", "from-env")
	t.Setenv("TASKDASH_ADDRESS", ":7070")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Nil(err)
	assert.Equal("info", cfg.LogLevel)
	assert.Equal(":7070", cfg.Server.Address)
	assert.Equal("from-env", cfg.Server.JWTSecret)
	assert.Equal(24*time.Hour, cfg.Server.TokenTTL)
	assert.Equal("http://localhost:8080", cfg.Client.BaseURL)
}

func TestLoadBadFile(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not, a, map"), 0o600))

	_, err := Load(path)
	assert.NotNil(err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	server := Server{DBFile: "x.sqlite", TokenTTL: time.Hour}
	assert.ErrorIs(server.Validate(), ErrInvalidConfig)

	server.JWTSecret = "secret"
	assert.Nil(server.Validate())

	server.TokenTTL = 0
	assert.ErrorIs(server.Validate(), ErrInvalidConfig)

	_, err := Client{Timezone: "Not/AZone"}.Location()
	assert.ErrorIs(err, ErrInvalidConfig)

	loc, err := Client{}.Location()
	assert.Nil(err)
	assert.Equal(time.Local, loc)
}
