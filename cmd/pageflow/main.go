// =============================================================================
// pageflow 主入口
// =============================================================================
// 一次性命令行工具：打开页面、执行动作脚本、截图与结构化抽取
//
// 使用方法:
//
//	pageflow screenshot --url https://example.com
//	pageflow html --url https://example.com
//	pageflow run --url https://example.com --actions actions.yaml
//	pageflow extract --url https://example.com --locators fields.yaml
//	pageflow history --limit 20
//	pageflow migrate up
//	pageflow cache purge
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/pageflow/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run 执行一条命令并返回进程退出码
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	var err error
	switch args[0] {
	case "screenshot":
		err = runScreenshot(ctx, args[1:], stdout, stderr)
	case "html":
		err = runHTML(ctx, args[1:], stdout, stderr)
	case "run":
		err = runActions(ctx, args[1:], stdout, stderr)
	case "extract":
		err = runExtract(ctx, args[1:], stdout, stderr)
	case "tool":
		err = runTool(ctx, args[1:], stdout, stderr)
	case "history":
		err = runHistory(ctx, args[1:], stdout, stderr)
	case "migrate":
		err = runMigrate(ctx, args[1:], stdout, stderr)
	case "cache":
		err = runCache(ctx, args[1:], stdout, stderr)
	case "version":
		printVersion(stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "pageflow %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `pageflow - page automation and structured extraction

Usage:
  pageflow <command> [options]

Commands:
  screenshot  Capture a PNG of a page
  html        Print the rendered HTML of a page
  run         Execute an action script against a page
  extract     Extract records from one or more pages
  tool        List or invoke the agent tool surface
  history     Show recorded runs (requires database.enabled)
  migrate     Run-history schema migrations
  cache       Result cache maintenance
  version     Show version information
  help        Show this help message

Common options:
  --config <path>   Path to configuration file (YAML)

Examples:
  pageflow screenshot --url https://example.com --full-page
  pageflow run --url https://example.com --actions login.yaml
  pageflow extract --url https://a.example --url https://b.example --locators items.json
  pageflow tool call browser_extract_html --args '{"url":"https://example.com"}'
  pageflow history --operation extract_structured --status error
  pageflow migrate up
  pageflow cache purge`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		// stdout 留给命令结果
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Format == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
