package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/pageflow/browser"
	"github.com/BaSui01/pageflow/types"
)

// =============================================================================
// 🧪 测试夹具
// =============================================================================

const catalogPage = `<html><body>
<ul id="items">
  <li class="item"><h3> Alpha </h3><span class="price">$1</span></li>
  <li class="item"><h3> Beta </h3><span class="price">$2</span></li>
  <li class="item"><h3> Gamma </h3></li>
</ul>
<form id="search" action="/search" method="get">
  <input id="q" name="q">
  <button id="go" type="submit">Go</button>
</form>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, catalogPage)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><p id="echo">%s</p></body></html>`, r.URL.Query().Get("q"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	dir        string
	configPath string
	textfile   string
	redis      *miniredis.Miniredis
}

// newEnv 写出使用 static provider、sqlite 运行历史、miniredis 缓存与 textfile 指标的配置
func newEnv(t *testing.T) *testEnv {
	dir := t.TempDir()
	mr := miniredis.RunT(t)
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "pageflow.yaml"),
		textfile:   filepath.Join(dir, "pageflow.prom"),
		redis:      mr,
	}

	cfg := fmt.Sprintf(`
browser:
  provider: static
  navigation_timeout: 5s
  static:
    requests_per_second: 0
artifacts:
  dir: %q
cache:
  enabled: true
  addr: %q
  ttl: 1m
database:
  enabled: true
  driver: sqlite
  name: %q
  auto_migrate: true
log:
  level: error
  format: json
  output_paths: [%q]
metrics:
  enabled: true
  namespace: pageflow
  textfile_path: %q
`, filepath.Join(dir, "artifacts"), mr.Addr(), filepath.Join(dir, "runs.db"), filepath.Join(dir, "pageflow.log"), env.textfile)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o644))
	return env
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	p := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// =============================================================================
// 🧪 命令测试
// =============================================================================

func TestRun_UsageAndVersion(t *testing.T) {
	code, _, stderr := runCmd(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage:")

	code, stdout, _ := runCmd(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "pageflow dev")

	code, stdout, _ = runCmd(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "extract")

	code, _, stderr = runCmd(t, "teleport")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: teleport")
}

func TestRun_MissingFlags(t *testing.T) {
	env := newEnv(t)
	for _, args := range [][]string{
		{"html", "--config", env.configPath},
		{"run", "--config", env.configPath, "--url", "http://x"},
		{"extract", "--config", env.configPath, "--url", "http://x"},
	} {
		code, _, stderr := runCmd(t, args...)
		assert.Equal(t, 1, code, args)
		assert.Contains(t, stderr, "is required", args)
	}
}

func TestRun_HTML(t *testing.T) {
	site := newSite(t)
	env := newEnv(t)

	code, stdout, stderr := runCmd(t, "html", "--config", env.configPath, "--url", site.URL)
	require.Equal(t, 0, code, stderr)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, site.URL, out["url"])
	assert.Contains(t, out["html"], "Gamma")

	code, stdout, _ = runCmd(t, "html", "--config", env.configPath, "--url", site.URL, "--raw")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, `id="items"`)

	// 第二次命中缓存
	assert.NotEmpty(t, env.redis.Keys())
}

func TestRun_Extract(t *testing.T) {
	site := newSite(t)
	env := newEnv(t)
	locators := env.write(t, "fields.yaml", "title: .item h3\nprice: .item .price\n")

	code, stdout, stderr := runCmd(t, "extract", "--config", env.configPath, "--url", site.URL, "--locators", locators)
	require.Equal(t, 0, code, stderr)

	var records []browser.Record
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 3)
	assert.Equal(t, browser.Record{"title": "Alpha", "price": "$1"}, records[0])
	assert.Equal(t, browser.Record{"title": "Gamma", "price": ""}, records[2])
}

func TestRun_ExtractMany(t *testing.T) {
	site := newSite(t)
	env := newEnv(t)
	locators := env.write(t, "fields.json", `{"title": ".item h3"}`)

	code, stdout, _ := runCmd(t, "extract", "--config", env.configPath,
		"--url", site.URL, "--url", site.URL+"/missing", "--locators", locators)
	assert.Equal(t, 1, code)

	var pages []browser.PageRecords
	require.NoError(t, json.Unmarshal([]byte(stdout), &pages))
	require.Len(t, pages, 2)
	assert.Len(t, pages[0].Records, 3)
	require.NotNil(t, pages[1].Error)
	assert.Equal(t, types.ErrorCode("NAVIGATION_FAILED"), pages[1].Error.Code)
}

func TestRun_Actions(t *testing.T) {
	site := newSite(t)
	env := newEnv(t)
	script := env.write(t, "search.yaml", `
actions:
  - kind: fill
    params: {selector: "#q", value: tips}
  - kind: click
    params: {selector: "#go"}
  - kind: bogus
`)

	code, stdout, stderr := runCmd(t, "run", "--config", env.configPath, "--url", site.URL, "--actions", script)
	require.Equal(t, 0, code, stderr)

	var out actionsOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Len(t, out.Log, 2)
	assert.Empty(t, out.Error)
}

func TestRun_ActionsFailureKeepsLog(t *testing.T) {
	site := newSite(t)
	env := newEnv(t)
	script := env.write(t, "broken.json", `[
		{"kind": "fill", "params": {"selector": "#q", "value": "x"}},
		{"kind": "click", "params": {"selector": "#nope"}}
	]`)

	code, stdout, stderr := runCmd(t, "run", "--config", env.configPath, "--url", site.URL, "--actions", script)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")

	var out actionsOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Len(t, out.Log, 1)
	assert.Equal(t, "ACTION_FAILED", out.ErrorCode)
}

func TestRun_ScreenshotUnsupportedOnStatic(t *testing.T) {
	site := newSite(t)
	env := newEnv(t)

	code, _, stderr := runCmd(t, "screenshot", "--config", env.configPath, "--url", site.URL)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
}

func TestRun_Tool(t *testing.T) {
	site := newSite(t)
	env := newEnv(t)

	code, stdout, stderr := runCmd(t, "tool", "list", "--config", env.configPath)
	require.Equal(t, 0, code, stderr)
	var schemas []types.ToolSchema
	require.NoError(t, json.Unmarshal([]byte(stdout), &schemas))
	assert.Len(t, schemas, 4)

	args := fmt.Sprintf(`{"url": %q, "locators": {"title": ".item h3"}}`, site.URL)
	code, stdout, stderr = runCmd(t, "tool", "call", "browser_extract_structured", "--config", env.configPath, "--args", args)
	require.Equal(t, 0, code, stderr)
	var res types.ToolResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.False(t, res.IsError())
	assert.Contains(t, string(res.Result), "Beta")

	code, _, stderr = runCmd(t, "tool", "call", "browser_fly", "--config", env.configPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
}

func TestRun_HistoryAndMetrics(t *testing.T) {
	site := newSite(t)
	env := newEnv(t)

	code, _, stderr := runCmd(t, "html", "--config", env.configPath, "--url", site.URL)
	require.Equal(t, 0, code, stderr)
	code, _, _ = runCmd(t, "html", "--config", env.configPath, "--url", site.URL+"/missing")
	require.Equal(t, 1, code)

	code, stdout, stderr := runCmd(t, "history", "--config", env.configPath)
	require.Equal(t, 0, code, stderr)
	var runs []browser.RunRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 2)

	code, stdout, _ = runCmd(t, "history", "--config", env.configPath, "--status", "error")
	require.Equal(t, 0, code)
	runs = nil
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "NAVIGATION_FAILED", runs[0].ErrorCode)

	prom, err := os.ReadFile(env.textfile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(prom), "pageflow_operations_total"))
}

func TestRun_Migrate(t *testing.T) {
	env := newEnv(t)

	code, stdout, stderr := runCmd(t, "migrate", "--config", env.configPath, "up")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Current version: 2")

	code, stdout, _ = runCmd(t, "migrate", "--config", env.configPath, "status")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "index_runs")

	code, _, stderr = runCmd(t, "migrate", "--config", env.configPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "missing subcommand")
}

func TestRun_CachePurge(t *testing.T) {
	site := newSite(t)
	env := newEnv(t)
	require.NoError(t, env.redis.Set("unrelated", "keep"))

	code, _, stderr := runCmd(t, "html", "--config", env.configPath, "--url", site.URL)
	require.Equal(t, 0, code, stderr)
	require.Len(t, env.redis.Keys(), 2)

	code, stdout, stderr := runCmd(t, "cache", "purge", "--config", env.configPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `"deleted": 1`)
	assert.Equal(t, []string{"unrelated"}, env.redis.Keys())

	code, _, _ = runCmd(t, "cache", "shrink", "--config", env.configPath)
	assert.Equal(t, 1, code)
}

// =============================================================================
// 🧪 文件解析
// =============================================================================

func TestLoadActions(t *testing.T) {
	dir := t.TempDir()
	bare := filepath.Join(dir, "bare.yaml")
	require.NoError(t, os.WriteFile(bare, []byte("- kind: wait\n  params: {timeout: 10}\n"), 0o644))

	ds, err := loadActions(bare, nil)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, browser.Kind("wait"), ds[0].Kind)

	ds, err = loadActions("-", strings.NewReader(`{"actions": [{"kind": "click", "params": {"selector": "a"}}]}`))
	require.NoError(t, err)
	require.Len(t, ds, 1)

	_, err = loadActions(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadLocators(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "l.yaml")
	require.NoError(t, os.WriteFile(p, []byte("zeta: .z\nalpha: .a\n"), 0o644))

	m, err := loadLocators(p, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, m.Fields())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("title: \"\"\n"), 0o644))
	_, err = loadLocators(bad, nil)
	assert.Error(t, err)
}
