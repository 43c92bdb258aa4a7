package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/log"
)

func newTestLoader(t *testing.T, env map[string]string, opts ...LoaderOption) *Loader {
	t.Helper()
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	base := []LoaderOption{
		WithDir(t.TempDir()),
		WithEnvFile(""),
		WithLookupEnv(lookup),
		WithLogger(log.Discard()),
	}
	return NewLoader(append(base, opts...)...)
}

func writeConfig(t *testing.T, l *Loader, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(l.Dir(), 0700))
	require.NoError(t, os.WriteFile(l.Path(), []byte(content), 0600))
}

func TestLoadBuiltinDefaults(t *testing.T) {
	l := newTestLoader(t, nil)

	p, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, p.Name)
	assert.Equal(t, "http://localhost:5000/api", p.APIURL)
	assert.Equal(t, 30*time.Second, p.Timeout)
	assert.Equal(t, DriverFile, p.Storage.Driver)
	assert.Equal(t, filepath.Join(l.Dir(), "session.json"), p.Storage.Path)
	assert.Equal(t, time.Minute, p.Cache.TTL)
	assert.False(t, p.Storage.Encrypted())
}

func TestLoadUserProfile(t *testing.T) {
	l := newTestLoader(t, nil)
	writeConfig(t, l, `schema: "schoolctl.config/v1"
current_profile: staging
profiles:
  staging:
    api_url: "https://staging.school.test/api"
    timeout: "5s"
    storage:
      driver: "redis"
      redis_url: "redis://localhost:6379/0"
      ttl: "12h"
`)

	p, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "staging", p.Name)
	assert.Equal(t, "https://staging.school.test/api", p.APIURL)
	assert.Equal(t, 5*time.Second, p.Timeout)
	assert.Equal(t, DriverRedis, p.Storage.Driver)
	assert.Equal(t, 12*time.Hour, p.Storage.TTL)
	assert.Equal(t, "warn", p.Log.Level, "unset fields keep built-in values")
	assert.Empty(t, p.Storage.Path)
}

func TestLoadPrecedence(t *testing.T) {
	env := map[string]string{
		EnvAPIURL:            "https://env.school.test/api",
		EnvTimeout:           "10s",
		EnvStorageDriver:     DriverMemory,
		EnvStoragePassphrase: "s3cret",
		EnvLogLevel:          "debug",
	}
	l := newTestLoader(t, env)
	writeConfig(t, l, `profiles:
  default:
    api_url: "https://file.school.test/api"
    timeout: "45s"
    storage:
      driver: "file"
    log:
      format: "json"
`)

	p, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.school.test/api", p.APIURL)
	assert.True(t, p.Storage.Encrypted())
	assert.Equal(t, "json", p.Log.Format)

	v, err := p.Field("timeout")
	require.NoError(t, err)
	assert.Equal(t, "10s", v)
	v, err = p.Field("storage.driver")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, v)
	_, err = p.Field("colour")
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))

	cfg, err := p.LogConfig()
	require.NoError(t, err)
	assert.Equal(t, log.LevelDebug, cfg.Level)
	assert.Equal(t, log.FormatJSON, cfg.Format)
	assert.True(t, cfg.AddSource)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SCHOOLCTL_API_URL=https://dotenv.school.test/api\nOTHER=1\n"), 0600))

	t.Run("dotenv applies", func(t *testing.T) {
		l := newTestLoader(t, nil, WithEnvFile(envFile))
		p, err := l.Load("")
		require.NoError(t, err)
		assert.Equal(t, "https://dotenv.school.test/api", p.APIURL)
	})

	t.Run("process env wins", func(t *testing.T) {
		l := newTestLoader(t, map[string]string{EnvAPIURL: "https://env.school.test/api"}, WithEnvFile(envFile))
		p, err := l.Load("")
		require.NoError(t, err)
		assert.Equal(t, "https://env.school.test/api", p.APIURL)
	})
}

func TestLoadProfileFromEnv(t *testing.T) {
	l := newTestLoader(t, map[string]string{EnvProfile: "ci"})
	writeConfig(t, l, `profiles:
  ci:
    storage:
      driver: "memory"
`)

	p, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "ci", p.Name)
	assert.Equal(t, DriverMemory, p.Storage.Driver)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		env     map[string]string
		profile string
		code    errors.ErrorCode
	}{
		{
			name:    "unknown profile",
			profile: "missing",
			code:    errors.ErrCodeConfigRead,
		},
		{
			name:   "malformed yaml",
			config: "profiles: [",
			code:   errors.ErrCodeFileUnmarshal,
		},
		{
			name:   "unsupported schema",
			config: "schema: other/v1\nprofiles: {}\n",
			code:   errors.ErrCodeFileUnmarshal,
		},
		{
			name:   "redis without url",
			config: "profiles:\n  default:\n    storage:\n      driver: redis\n",
			code:   errors.ErrCodeConfigInvalid,
		},
		{
			name:   "unknown driver",
			config: "profiles:\n  default:\n    storage:\n      driver: sqlite\n",
			code:   errors.ErrCodeConfigInvalid,
		},
		{
			name: "invalid url",
			env:  map[string]string{EnvAPIURL: "not a url"},
			code: errors.ErrCodeConfigInvalid,
		},
		{
			name: "bad timeout",
			env:  map[string]string{EnvTimeout: "soon"},
			code: errors.ErrCodeConfigInvalid,
		},
		{
			name: "bad log level",
			env:  map[string]string{EnvLogLevel: "loud"},
			code: errors.ErrCodeConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLoader(t, tt.env)
			if tt.config != "" {
				writeConfig(t, l, tt.config)
			}
			_, err := l.Load(tt.profile)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestSaveAndUse(t *testing.T) {
	l := newTestLoader(t, nil)

	require.NoError(t, l.Save("staging", func(p *Profile) {
		p.APIURL = "https://staging.school.test/api"
		p.Identifier = "bursar@school.test"
	}))
	require.NoError(t, l.Use("staging"))

	current, err := l.Current()
	require.NoError(t, err)
	assert.Equal(t, "staging", current)

	names, err := l.Profiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "staging"}, names)

	p, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "bursar@school.test", p.Identifier)
	assert.Equal(t, filepath.Join(l.Dir(), "session-staging.json"), p.Storage.Path)

	info, err := os.Stat(l.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	err = l.Use("missing")
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
}

func TestSaveKeepsEnvironmentOut(t *testing.T) {
	l := newTestLoader(t, map[string]string{EnvStoragePassphrase: "s3cret", EnvAPIURL: "https://env.school.test/api"})

	p, err := l.Load("")
	require.NoError(t, err)
	require.NoError(t, l.Save(p.Name, func(stored *Profile) { stored.LastPath = "/dashboard" }))

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret")
	assert.NotContains(t, string(data), "env.school.test")
	assert.Contains(t, string(data), "last_path: /dashboard")
}

func TestSet(t *testing.T) {
	l := newTestLoader(t, nil)

	require.NoError(t, l.Set("default", "timeout", "10s"))
	require.NoError(t, l.Set("default", "storage.driver", "memory"))
	require.NoError(t, l.Set("default", "log.format", "json"))

	p, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, p.Timeout)
	assert.Equal(t, DriverMemory, p.Storage.Driver)
	assert.Equal(t, "json", p.Log.Format)

	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(l.Set("default", "timeout", "later")))
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(l.Set("default", "colour", "blue")))
}

func TestMerge(t *testing.T) {
	base := &Profile{APIURL: "http://a", Timeout: time.Second, Storage: StorageConfig{Driver: DriverFile}}
	merged := base.Merge(&Profile{Timeout: 2 * time.Second, Storage: StorageConfig{RedisURL: "redis://x"}})

	assert.Equal(t, "http://a", merged.APIURL)
	assert.Equal(t, 2*time.Second, merged.Timeout)
	assert.Equal(t, DriverFile, merged.Storage.Driver)
	assert.Equal(t, "redis://x", merged.Storage.RedisURL)
	assert.Equal(t, time.Second, base.Timeout, "base is not modified")
	assert.Equal(t, base, base.Merge(nil))
}
