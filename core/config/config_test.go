package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "123:abc", BotName: "@numbot"}}
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, "numbot", cfg.Telegram.BotName)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "db.sqlite", cfg.Storage.Path)
	assert.Equal(t, defaultOpTimeoutMS, cfg.Storage.OpTimeoutMS)
	assert.Equal(t, defaultWorkers, cfg.Dispatch.Workers)
	assert.Equal(t, defaultQueueSize, cfg.Dispatch.QueueSize)
	assert.Equal(t, defaultMessageTimeoutMS, cfg.Dispatch.MessageTimeoutMS)
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	cases := map[string]Config{
		"missing token": {},
		"bad run mode":  {Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}},
		"webhook without url": {
			Telegram: TelegramConfig{Token: "t", RunMode: RunModeWebhook},
		},
		"bad driver": {
			Telegram: TelegramConfig{Token: "t"},
			Storage:  StorageConfig{Driver: "floppy"},
		},
		"redis without url": {
			Telegram: TelegramConfig{Token: "t"},
			Storage:  StorageConfig{Driver: DriverRedis},
		},
		"postgres without host": {
			Telegram: TelegramConfig{Token: "t"},
			Storage:  StorageConfig{Driver: DriverPostgres},
		},
		"negative workers": {
			Telegram: TelegramConfig{Token: "t"},
			Dispatch: DispatchConfig{Workers: -1},
		},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			c := cfg
			assert.Error(t, Normalize(&c))
		})
	}
}

func TestNormalizeRedisPrefix(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{Token: "t", RunMode: "polling"},
		Storage:  StorageConfig{Driver: "REDIS", Redis: RedisConfig{URL: "redis://localhost:6379/0"}},
	}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, defaultRedisKeyPrefix, cfg.Storage.Redis.KeyPrefix)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
telegram:
  token: from-file
storage:
  driver: memory
dispatch:
  workers: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.Dispatch.Workers)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-only")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.Telegram.Token)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
}
