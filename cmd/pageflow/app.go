package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/BaSui01/pageflow/browser"
	"github.com/BaSui01/pageflow/config"
	"github.com/BaSui01/pageflow/internal/cache"
	"github.com/BaSui01/pageflow/internal/database"
	"github.com/BaSui01/pageflow/internal/metrics"
	"github.com/BaSui01/pageflow/internal/migration"
	"github.com/BaSui01/pageflow/internal/runstore"
	"github.com/BaSui01/pageflow/internal/telemetry"
	"github.com/BaSui01/pageflow/internal/tlsutil"
)

// =============================================================================
// 🧩 运行时装配
// =============================================================================

// app 持有一次命令执行所需的全部组件
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	auto      *browser.Automation
	registry  *prometheus.Registry
	collector *metrics.Collector
	pool      *database.PoolManager
	store     *runstore.Store
	cache     *cache.Manager
	telemetry *telemetry.Providers
}

// addConfigFlag 注册所有子命令共用的 --config
func addConfigFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "Path to config file")
}

// newFlagSet 创建不退出进程的 FlagSet，错误输出到 stderr
func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// loadConfig 加载并校验配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp 按配置装配引擎。缓存和数据库不可用时只告警，引擎照常工作
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := initLogger(cfg.Log)
	a := &app{cfg: cfg, logger: logger}

	logger.Debug("starting pageflow",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
		zap.String("provider", cfg.Browser.Provider),
	)

	tp, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	a.telemetry = tp

	var opts []browser.Option
	opts = append(opts, browser.WithLogger(logger))

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(collectors.NewGoCollector())
		a.collector = metrics.NewCollector(cfg.Metrics.Namespace, a.registry, logger)
		opts = append(opts, browser.WithObserver(a.collector))
	}

	if cfg.Cache.Enabled {
		cm, err := cache.NewManager(cache.FromAppConfig(cfg.Cache), logger)
		if err != nil {
			logger.Warn("result cache not available", zap.Error(err))
		} else {
			a.cache = cm
			opts = append(opts, browser.WithResultCache(cm))
		}
	}

	if cfg.Database.Enabled {
		if err := a.openStore(ctx); err != nil {
			logger.Warn("run history not available", zap.Error(err))
		} else {
			opts = append(opts, browser.WithRunRecorder(a.store))
		}
	}

	provider, err := newProvider(cfg.Browser, logger)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.auto = browser.NewAutomation(provider, automationConfig(cfg), opts...)
	return a, nil
}

// openStore 打开运行历史库，按需先执行迁移
func (a *app) openStore(ctx context.Context) error {
	if a.cfg.Database.AutoMigrate {
		m, err := migration.NewMigratorFromDatabaseConfig(a.cfg.Database, a.logger)
		if err != nil {
			return fmt.Errorf("migrator: %w", err)
		}
		upErr := m.Up(ctx)
		closeErr := m.Close()
		if err := errors.Join(upErr, closeErr); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	pool, err := database.Open(a.cfg.Database, a.logger)
	if err != nil {
		return err
	}
	a.pool = pool
	a.store = runstore.New(pool, a.logger)
	return nil
}

// Close 导出指标并释放资源
func (a *app) Close(ctx context.Context) error {
	var errs []error

	if a.auto != nil {
		errs = append(errs, a.auto.Close())
	}

	if a.collector != nil {
		if a.pool != nil {
			a.pool.ReportStats(a.collector)
		}
		if path := a.cfg.Metrics.TextfilePath; path != "" {
			if err := a.collector.WriteTextfile(path); err != nil {
				errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
			}
		}
	}

	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	errs = append(errs, a.telemetry.Shutdown(shutdownCtx))

	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// automationConfig 把应用配置映射到引擎配置
func automationConfig(cfg *config.Config) browser.Config {
	bc := browser.DefaultConfig()
	bc.ArtifactDir = cfg.Artifacts.Dir
	bc.NavigationTimeout = cfg.Browser.NavigationTimeout
	bc.ActionTimeout = cfg.Browser.ActionTimeout
	bc.MaxConcurrentSessions = cfg.Browser.MaxConcurrentSessions
	if cfg.Browser.BatchConcurrency > 0 {
		bc.BatchConcurrency = cfg.Browser.BatchConcurrency
	}
	if cfg.Cache.TTL > 0 {
		bc.CacheTTL = cfg.Cache.TTL
	}
	return bc
}

// newProvider 根据配置选择 Provider
func newProvider(cfg config.BrowserConfig, logger *zap.Logger) (browser.Provider, error) {
	switch cfg.Provider {
	case "chromedp":
		cc := browser.DefaultChromeDPConfig()
		cc.RemoteURL = cfg.RemoteURL
		cc.ExecPath = cfg.ExecPath
		cc.Headless = cfg.Headless
		cc.ViewportWidth = cfg.ViewportWidth
		cc.ViewportHeight = cfg.ViewportHeight
		cc.UserAgent = cfg.UserAgent
		cc.ProxyURL = cfg.ProxyURL
		cc.NoSandbox = cfg.NoSandbox
		return browser.NewChromeDPProvider(cc, logger), nil
	case "static":
		sc := browser.DefaultStaticConfig()
		sc.UserAgent = cfg.UserAgent
		if cfg.Static.Timeout > 0 {
			sc.Timeout = cfg.Static.Timeout
		}
		sc.RequestsPerSecond = cfg.Static.RequestsPerSecond
		if cfg.Static.Burst > 0 {
			sc.Burst = cfg.Static.Burst
		}
		if cfg.Static.MaxBodyBytes > 0 {
			sc.MaxBodyBytes = cfg.Static.MaxBodyBytes
		}
		transport, err := tlsutil.SecureTransport(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		return browser.NewStaticProvider(sc, transport, logger), nil
	default:
		return nil, fmt.Errorf("unsupported browser provider: %s", cfg.Provider)
	}
}
