package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/pageflow/types"
)

// Agent-facing tool names.
const (
	ToolScreenshot        = "browser_screenshot"
	ToolExtractHTML       = "browser_extract_html"
	ToolRunActions        = "browser_run_actions"
	ToolExtractStructured = "browser_extract_structured"
)

// ToolFunc 执行一次工具调用
type ToolFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

type toolEntry struct {
	schema types.ToolSchema
	fn     ToolFunc
}

// Tool 把 Automation 的四个操作暴露为代理可调用的工具
type Tool struct {
	automation *Automation
	tools      map[string]toolEntry
	logger     *zap.Logger
}

// NewTool 创建工具集
func NewTool(a *Automation, logger *zap.Logger) *Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tool{
		automation: a,
		tools:      make(map[string]toolEntry),
		logger:     logger.With(zap.String("component", "browser_tool")),
	}

	urlProp := types.NewStringSchema().
		WithFormat(types.FormatURI).
		WithDescription("Page to open; the call waits until network activity settles")

	t.register(ToolScreenshot, "Capture a screenshot of a page and store it as an artifact",
		types.NewObjectSchema().
			AddProperty("url", urlProp).
			AddProperty("full_page", types.NewBooleanSchema().
				WithDescription("Capture the full scrollable page").
				WithDefault(true)).
			AddRequired("url"),
		t.screenshot)

	t.register(ToolExtractHTML, "Return the serialized HTML of a page",
		types.NewObjectSchema().
			AddProperty("url", urlProp).
			AddRequired("url"),
		t.extractHTML)

	action := types.NewObjectSchema().
		AddProperty("kind", types.NewEnumSchema(
			string(KindClick), string(KindFill), string(KindNavigate), string(KindWait), string(KindScreenshot))).
		AddProperty("params", types.NewObjectSchema().
			WithDescription("click: selector; fill: selector, value; navigate: url; wait: timeout (ms, default 1000); screenshot: full_page (default true)")).
		AddRequired("kind")
	t.register(ToolRunActions, "Open a page and run an ordered list of actions; returns the execution log",
		types.NewObjectSchema().
			AddProperty("url", urlProp).
			AddProperty("actions", types.NewArraySchema(action)).
			AddRequired("url", "actions"),
		t.runActions)

	t.register(ToolExtractStructured, "Extract records from a page; the first locator decides the record count",
		types.NewObjectSchema().
			AddProperty("url", urlProp).
			AddProperty("locators", types.NewMapSchema(types.NewStringSchema()).
				WithDescription("Ordered mapping of field name to CSS selector")).
			AddRequired("url", "locators"),
		t.extractStructured)

	return t
}

func (t *Tool) register(name, desc string, params *types.JSONSchema, fn ToolFunc) {
	t.tools[name] = toolEntry{
		schema: types.ToolSchema{
			Name:        name,
			Description: desc,
			Parameters:  params.MustJSON(),
			Version:     "1.0",
		},
		fn: fn,
	}
}

// Schemas 返回按名称排序的工具描述
func (t *Tool) Schemas() []types.ToolSchema {
	out := make([]types.ToolSchema, 0, len(t.tools))
	for _, e := range t.tools {
		out = append(out, e.schema)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke 执行工具调用，错误以 ErrorCode 形式写入结果
func (t *Tool) Invoke(ctx context.Context, name string, args json.RawMessage) types.ToolResult {
	start := time.Now()
	res := types.ToolResult{Name: name}

	entry, ok := t.tools[name]
	if !ok {
		res.Error = fmt.Sprintf("unknown tool %q", name)
		res.ErrorCode = types.ErrUnknownTool
		return res
	}

	out, err := entry.fn(ctx, args)
	res.Duration = time.Since(start)
	if err != nil {
		te := ToError(err)
		res.Error = te.Error()
		res.ErrorCode = te.Code
		t.logger.Debug("tool call failed",
			zap.String("tool", name),
			zap.String("code", string(te.Code)),
			zap.Error(err))
		// 动作失败时仍返回已执行的日志
		if out != nil {
			res.Result = out
		}
		return res
	}
	res.Result = out
	return res
}

type screenshotArgs struct {
	URL      string `json:"url"`
	FullPage *bool  `json:"full_page,omitempty"`
}

type urlArgs struct {
	URL string `json:"url"`
}

type runActionsArgs struct {
	URL     string       `json:"url"`
	Actions []Descriptor `json:"actions"`
}

type extractArgs struct {
	URL      string     `json:"url"`
	Locators LocatorMap `json:"locators"`
}

func decodeArgs(raw json.RawMessage, dest any, url func() string) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return types.NewError(types.ErrInvalidRequest, "invalid arguments").WithCause(err)
	}
	if url() == "" {
		return types.NewError(types.ErrInvalidRequest, "url is required")
	}
	return nil
}

func (t *Tool) screenshot(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args screenshotArgs
	if err := decodeArgs(raw, &args, func() string { return args.URL }); err != nil {
		return nil, err
	}
	full := true
	if args.FullPage != nil {
		full = *args.FullPage
	}
	art, err := t.automation.Screenshot(ctx, args.URL, full)
	if err != nil {
		return nil, err
	}
	return json.Marshal(art)
}

func (t *Tool) extractHTML(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args urlArgs
	if err := decodeArgs(raw, &args, func() string { return args.URL }); err != nil {
		return nil, err
	}
	html, err := t.automation.ExtractHTML(ctx, args.URL)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{"html": html})
}

func (t *Tool) runActions(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args runActionsArgs
	if err := decodeArgs(raw, &args, func() string { return args.URL }); err != nil {
		return nil, err
	}
	log, err := t.automation.RunActions(ctx, args.URL, args.Actions)
	out, merr := json.Marshal(map[string][]string{"log": log})
	if merr != nil {
		return nil, merr
	}
	return out, err
}

func (t *Tool) extractStructured(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args extractArgs
	if err := decodeArgs(raw, &args, func() string { return args.URL }); err != nil {
		return nil, err
	}
	records, err := t.automation.ExtractStructured(ctx, args.URL, args.Locators)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"records": records, "count": len(records)})
}
