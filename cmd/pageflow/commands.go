package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BaSui01/pageflow/browser"
	"github.com/BaSui01/pageflow/internal/cache"
	"github.com/BaSui01/pageflow/internal/runstore"
)

// stdin 可在测试中替换
var stdin io.Reader = os.Stdin

// urlList 可重复的 --url
type urlList []string

func (u *urlList) String() string     { return strings.Join(*u, ",") }
func (u *urlList) Set(v string) error { *u = append(*u, v); return nil }

// withApp 装配 app，执行 fn，最后统一释放
func withApp(ctx context.Context, configPath string, fn func(*app) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	runErr := fn(a)
	closeErr := a.Close(ctx)
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func requireURL(u string) error {
	if u == "" {
		return errors.New("--url is required")
	}
	return nil
}

// =============================================================================
// 📸 screenshot / html
// =============================================================================

func runScreenshot(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("screenshot", stderr)
	configPath := addConfigFlag(fs)
	url := fs.String("url", "", "Page URL")
	fullPage := fs.Bool("full-page", false, "Capture the full scrollable page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireURL(*url); err != nil {
		return err
	}

	return withApp(ctx, *configPath, func(a *app) error {
		art, err := a.auto.Screenshot(ctx, *url, *fullPage)
		if err != nil {
			return err
		}
		return writeJSON(stdout, art)
	})
}

func runHTML(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("html", stderr)
	configPath := addConfigFlag(fs)
	url := fs.String("url", "", "Page URL")
	raw := fs.Bool("raw", false, "Print the HTML as is instead of a JSON object")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireURL(*url); err != nil {
		return err
	}

	return withApp(ctx, *configPath, func(a *app) error {
		html, err := a.auto.ExtractHTML(ctx, *url)
		if err != nil {
			return err
		}
		if *raw {
			_, err = io.WriteString(stdout, html)
			return err
		}
		return writeJSON(stdout, map[string]string{"url": *url, "html": html})
	})
}

// =============================================================================
// ▶️ run
// =============================================================================

// actionsOutput 动作执行结果；失败时仍输出已完成的日志
type actionsOutput struct {
	URL       string   `json:"url"`
	Log       []string `json:"log"`
	Error     string   `json:"error,omitempty"`
	ErrorCode string   `json:"error_code,omitempty"`
}

func runActions(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("run", stderr)
	configPath := addConfigFlag(fs)
	url := fs.String("url", "", "Starting page URL")
	actionsPath := fs.String("actions", "", "Action script (.yaml, .json or - for stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireURL(*url); err != nil {
		return err
	}
	if *actionsPath == "" {
		return errors.New("--actions is required")
	}

	descriptors, err := loadActions(*actionsPath, stdin)
	if err != nil {
		return err
	}

	return withApp(ctx, *configPath, func(a *app) error {
		log, runErr := a.auto.RunActions(ctx, *url, descriptors)
		out := actionsOutput{URL: *url, Log: log}
		if out.Log == nil {
			out.Log = []string{}
		}
		if runErr != nil {
			te := browser.ToError(runErr)
			out.Error = te.Message
			out.ErrorCode = string(te.Code)
		}
		if err := writeJSON(stdout, out); err != nil {
			return err
		}
		return runErr
	})
}

// =============================================================================
// 🔎 extract
// =============================================================================

func runExtract(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("extract", stderr)
	configPath := addConfigFlag(fs)
	var urls urlList
	fs.Var(&urls, "url", "Page URL (repeatable)")
	locatorsPath := fs.String("locators", "", "Locator file (.yaml, .json or - for stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(urls) == 0 {
		return errors.New("--url is required")
	}
	if *locatorsPath == "" {
		return errors.New("--locators is required")
	}

	locators, err := loadLocators(*locatorsPath, stdin)
	if err != nil {
		return err
	}

	return withApp(ctx, *configPath, func(a *app) error {
		if len(urls) == 1 {
			records, err := a.auto.ExtractStructured(ctx, urls[0], locators)
			if err != nil {
				return err
			}
			return writeJSON(stdout, records)
		}

		pages, err := a.auto.ExtractStructuredMany(ctx, urls, locators)
		if err != nil {
			return err
		}
		if err := writeJSON(stdout, pages); err != nil {
			return err
		}
		failed := 0
		for _, p := range pages {
			if p.Error != nil {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d pages failed", failed, len(pages))
		}
		return nil
	})
}

// =============================================================================
// 🛠️ tool
// =============================================================================

func runTool(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		return errors.New("usage: pageflow tool <list|call> [options]")
	}

	switch args[0] {
	case "list":
		fs := newFlagSet("tool list", stderr)
		configPath := addConfigFlag(fs)
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return withApp(ctx, *configPath, func(a *app) error {
			return writeJSON(stdout, browser.NewTool(a.auto, a.logger).Schemas())
		})

	case "call":
		if len(args) < 2 {
			return errors.New("usage: pageflow tool call <name> --args JSON")
		}
		name := args[1]
		fs := newFlagSet("tool call", stderr)
		configPath := addConfigFlag(fs)
		rawArgs := fs.String("args", "{}", "Tool arguments as JSON, or @file")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}

		payload := []byte(*rawArgs)
		if path, ok := strings.CutPrefix(*rawArgs, "@"); ok {
			f, err := readInput(path, stdin)
			if err != nil {
				return err
			}
			payload = f.data
		}

		return withApp(ctx, *configPath, func(a *app) error {
			res := browser.NewTool(a.auto, a.logger).Invoke(ctx, name, json.RawMessage(payload))
			if err := writeJSON(stdout, res); err != nil {
				return err
			}
			if res.IsError() {
				return fmt.Errorf("%s: %s", res.ErrorCode, res.Error)
			}
			return nil
		})

	default:
		return fmt.Errorf("unknown tool subcommand: %s", args[0])
	}
}

// =============================================================================
// 📜 history
// =============================================================================

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("history", stderr)
	configPath := addConfigFlag(fs)
	limit := fs.Int("limit", runstore.DefaultListLimit, "Maximum number of runs")
	operation := fs.String("operation", "", "Only runs of this operation")
	status := fs.String("status", "", "Only runs with this status (success, error)")
	since := fs.Duration("since", 0, "Only runs started within this duration")
	pruneOlder := fs.Duration("prune-older-than", 0, "Delete runs older than this duration instead of listing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(ctx, *configPath, func(a *app) error {
		if a.store == nil {
			return errors.New("run history is not available (set database.enabled)")
		}

		if *pruneOlder > 0 {
			n, err := a.store.Prune(ctx, time.Now().Add(-*pruneOlder))
			if err != nil {
				return err
			}
			return writeJSON(stdout, map[string]int64{"deleted": n})
		}

		f := runstore.Filter{Operation: *operation, Status: *status, Limit: *limit}
		if *since > 0 {
			f.Since = time.Now().Add(-*since)
		}
		runs, err := a.store.List(ctx, f)
		if err != nil {
			return err
		}
		return writeJSON(stdout, runs)
	})
}

// =============================================================================
// 💾 cache
// =============================================================================

func runCache(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		return errors.New("usage: pageflow cache <purge|stats> [options]")
	}
	if args[0] != "purge" && args[0] != "stats" {
		return fmt.Errorf("unknown cache subcommand: %s", args[0])
	}

	fs := newFlagSet("cache "+args[0], stderr)
	configPath := addConfigFlag(fs)
	prefix := fs.String("prefix", browser.CacheKeyPrefix, "Key prefix to delete")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	cm, err := cache.NewManager(cache.FromAppConfig(cfg.Cache), logger)
	if err != nil {
		return err
	}
	defer cm.Close()

	switch args[0] {
	case "purge":
		n, err := cm.PurgePrefix(ctx, *prefix)
		if err != nil {
			return err
		}
		return writeJSON(stdout, map[string]any{"prefix": *prefix, "deleted": n})
	case "stats":
		stats, err := cm.GetStats(ctx)
		if err != nil {
			return err
		}
		return writeJSON(stdout, stats)
	}
	return nil
}
