// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "chromedp", cfg.Browser.Provider)
	assert.Equal(t, "artifacts", cfg.Artifacts.Dir)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pageflow.yaml")

	yamlContent := `
browser:
  provider: static
  navigation_timeout: 10s
  action_timeout: 3s
  max_concurrent_sessions: 2
  static:
    requests_per_second: 2.5
    burst: 3

artifacts:
  dir: /tmp/shots

cache:
  enabled: true
  addr: "redis:6379"
  ttl: 1m

database:
  enabled: true
  driver: mysql
  host: db
  port: 3306

log:
  level: debug
  format: json
  output_paths:
    - stdout
    - /var/log/pageflow.log
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "static", cfg.Browser.Provider)
	assert.Equal(t, 10*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 3*time.Second, cfg.Browser.ActionTimeout)
	assert.Equal(t, 2, cfg.Browser.MaxConcurrentSessions)
	assert.Equal(t, 2.5, cfg.Browser.Static.RequestsPerSecond)
	assert.Equal(t, 3, cfg.Browser.Static.Burst)
	// 未出现在文件中的字段保持默认值
	assert.Equal(t, int64(10<<20), cfg.Browser.Static.MaxBodyBytes)
	assert.Equal(t, 1920, cfg.Browser.ViewportWidth)

	assert.Equal(t, "/tmp/shots", cfg.Artifacts.Dir)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis:6379", cfg.Cache.Addr)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, []string{"stdout", "/var/log/pageflow.log"}, cfg.Log.OutputPaths)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("PAGEFLOW_BROWSER_PROVIDER", "static")
	t.Setenv("PAGEFLOW_BROWSER_NAVIGATION_TIMEOUT", "45s")
	t.Setenv("PAGEFLOW_BROWSER_HEADLESS", "false")
	t.Setenv("PAGEFLOW_BROWSER_STATIC_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("PAGEFLOW_BROWSER_STATIC_MAX_BODY_BYTES", "1024")
	t.Setenv("PAGEFLOW_DATABASE_ENABLED", "true")
	t.Setenv("PAGEFLOW_LOG_OUTPUT_PATHS", "stdout, stderr")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "static", cfg.Browser.Provider)
	assert.Equal(t, 45*time.Second, cfg.Browser.NavigationTimeout)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 0.5, cfg.Browser.Static.RequestsPerSecond)
	assert.Equal(t, int64(1024), cfg.Browser.Static.MaxBodyBytes)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, []string{"stdout", "stderr"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "pageflow.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("browser:\n  provider: static\n  viewport_width: 800\n"), 0644))

	t.Setenv("PAGEFLOW_BROWSER_VIEWPORT_WIDTH", "1280")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "static", cfg.Browser.Provider)
	assert.Equal(t, 1280, cfg.Browser.ViewportWidth)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_ARTIFACTS_DIR", "/srv/shots")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/shots", cfg.Artifacts.Dir)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("PAGEFLOW_BROWSER_NAVIGATION_TIMEOUT", "soon")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGEFLOW_BROWSER_NAVIGATION_TIMEOUT")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("PAGEFLOW_BROWSER_PROVIDER", "firefox")

	_, err := NewLoader().WithValidator(func(c *Config) error { return c.Validate() }).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown browser provider")
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/pageflow.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Browser, cfg.Browser)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("browser: [unclosed"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "static provider", modify: func(c *Config) { c.Browser.Provider = "static" }},
		{name: "unknown provider", modify: func(c *Config) { c.Browser.Provider = "webkit" }, wantErr: "unknown browser provider"},
		{name: "zero navigation timeout", modify: func(c *Config) { c.Browser.NavigationTimeout = 0 }, wantErr: "navigation_timeout"},
		{name: "zero action timeout", modify: func(c *Config) { c.Browser.ActionTimeout = 0 }, wantErr: "action_timeout"},
		{name: "negative sessions", modify: func(c *Config) { c.Browser.MaxConcurrentSessions = -1 }, wantErr: "max_concurrent_sessions"},
		{name: "negative viewport", modify: func(c *Config) { c.Browser.ViewportHeight = -5 }, wantErr: "viewport"},
		{name: "empty artifact dir", modify: func(c *Config) { c.Artifacts.Dir = "" }, wantErr: "artifacts.dir"},
		{name: "bad driver ignored when disabled", modify: func(c *Config) { c.Database.Driver = "oracle" }},
		{name: "bad driver", modify: func(c *Config) {
			c.Database.Enabled = true
			c.Database.Driver = "oracle"
		}, wantErr: "unsupported database driver"},
		{name: "bad log level", modify: func(c *Config) { c.Log.Level = "verbose" }, wantErr: "invalid log level"},
		{name: "bad sample rate", modify: func(c *Config) { c.Telemetry.SampleRate = 1.5 }, wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres",
			config: DatabaseConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "user", Password: "pass", Name: "pageflow", SSLMode: "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=pageflow sslmode=disable",
		},
		{
			name: "mysql",
			config: DatabaseConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "user", Password: "pass", Name: "pageflow",
			},
			expected: "user:pass@tcp(localhost:3306)/pageflow?parseTime=true",
		},
		{
			name:     "sqlite",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/data/pageflow.db"},
			expected: "/data/pageflow.db",
		},
		{
			name:     "unknown",
			config:   DatabaseConfig{Driver: "oracle"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestMustLoad_Success(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "pageflow.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("artifacts:\n  dir: out\n"), 0644))

	cfg := MustLoad(configPath)
	assert.Equal(t, "out", cfg.Artifacts.Dir)
}

func TestMustLoad_InvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: [yaml"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("PAGEFLOW_METRICS_NAMESPACE", "scraper")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "scraper", cfg.Metrics.Namespace)
}
