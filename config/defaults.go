// =============================================================================
// 📦 pageflow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Browser:   DefaultBrowserConfig(),
		Artifacts: DefaultArtifactsConfig(),
		Cache:     DefaultCacheConfig(),
		Database:  DefaultDatabaseConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultBrowserConfig 返回默认浏览器配置
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Provider:              "chromedp",
		NavigationTimeout:     30 * time.Second,
		ActionTimeout:         30 * time.Second,
		MaxConcurrentSessions: 4,
		BatchConcurrency:      4,
		Headless:              true,
		ViewportWidth:         1920,
		ViewportHeight:        1080,
		NoSandbox:             true,
		Static:                DefaultStaticConfig(),
	}
}

// DefaultStaticConfig 返回默认静态 Provider 配置
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
		Burst:             5,
		MaxBodyBytes:      10 << 20,
	}
}

// DefaultArtifactsConfig 返回默认产物配置
func DefaultArtifactsConfig() ArtifactsConfig {
	return ArtifactsConfig{
		Dir: "artifacts",
	}
}

// DefaultCacheConfig 返回默认 Redis 缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		TTL:          5 * time.Minute,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         false,
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "pageflow",
		Password:        "",
		Name:            "pageflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "pageflow",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "pageflow",
	}
}
