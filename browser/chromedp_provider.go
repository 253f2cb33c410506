package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromeDPConfig 配置基于 chromedp 的 Provider
type ChromeDPConfig struct {
	// RemoteURL 非空时连接已有的 DevTools 端点（ws://...），否则本地启动 Chrome
	RemoteURL      string `json:"remote_url,omitempty"`
	ExecPath       string `json:"exec_path,omitempty"`
	Headless       bool   `json:"headless"`
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
	UserAgent      string `json:"user_agent,omitempty"`
	ProxyURL       string `json:"proxy_url,omitempty"`
	NoSandbox      bool   `json:"no_sandbox"`
}

// DefaultChromeDPConfig 返回默认配置
func DefaultChromeDPConfig() ChromeDPConfig {
	return ChromeDPConfig{
		Headless:       true,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		NoSandbox:      true,
	}
}

// ChromeDPProvider 基于 chromedp 的 Provider 实现，每次 Launch 启动独立的浏览器
type ChromeDPProvider struct {
	config ChromeDPConfig
	logger *zap.Logger
}

// NewChromeDPProvider 创建 chromedp Provider
func NewChromeDPProvider(config ChromeDPConfig, logger *zap.Logger) *ChromeDPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeDPProvider{
		config: config,
		logger: logger.With(zap.String("component", "chromedp_provider")),
	}
}

// Name implements Provider.
func (p *ChromeDPProvider) Name() string { return "chromedp" }

// Launch implements Provider. 浏览器生命周期独立于 ctx，ctx 只约束启动过程
func (p *ChromeDPProvider) Launch(ctx context.Context) (Instance, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if p.config.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), p.config.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), p.allocatorOptions()...)
	}

	logger := p.logger
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Warn(fmt.Sprintf(format, args...))
		}),
	)

	// 首次 Run 分配浏览器，不能直接带超时运行，否则超时会杀掉整个浏览器
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()
	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		<-started
		return nil, fmt.Errorf("failed to start browser: %w", ctx.Err())
	}

	p.logger.Debug("chromedp browser started",
		zap.Bool("remote", p.config.RemoteURL != ""),
		zap.Bool("headless", p.config.Headless),
		zap.Int("viewport_w", p.config.ViewportWidth),
		zap.Int("viewport_h", p.config.ViewportHeight))

	return &chromeInstance{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        p.logger,
	}, nil
}

func (p *ChromeDPProvider) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if p.config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if p.config.ViewportWidth > 0 && p.config.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(p.config.ViewportWidth, p.config.ViewportHeight))
	}
	if p.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(p.config.ExecPath))
	}
	if p.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.config.UserAgent))
	}
	if p.config.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(p.config.ProxyURL))
	}
	return opts
}

type chromeInstance struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        *zap.Logger

	mu        sync.Mutex
	firstUsed bool
	pages     []context.CancelFunc
}

// NewPage 第一次复用浏览器启动时的初始标签页，之后新建标签页
func (i *chromeInstance) NewPage(ctx context.Context) (Page, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	tabCtx, cancel := i.browserCtx, context.CancelFunc(func() {})
	if i.firstUsed {
		tabCtx, cancel = chromedp.NewContext(i.browserCtx)
	}
	i.firstUsed = true

	p := &chromePage{tabCtx: tabCtx, lc: newLifecycle(), logger: i.logger}
	chromedp.ListenTarget(tabCtx, func(ev any) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok {
			p.lc.record(e)
		}
	})
	if err := p.run(ctx, page.SetLifecycleEventsEnabled(true)); err != nil {
		cancel()
		return nil, fmt.Errorf("enable lifecycle events: %w", err)
	}
	i.pages = append(i.pages, cancel)
	return p, nil
}

func (i *chromeInstance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, cancel := range i.pages {
		cancel()
	}
	i.pages = nil
	// 优雅关闭：本地浏览器会退出，远程连接只关闭自己的标签页
	err := chromedp.Cancel(i.browserCtx)
	i.browserCancel()
	i.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

type chromePage struct {
	tabCtx context.Context
	lc     *lifecycle
	logger *zap.Logger
}

// run 在标签页上执行动作，同时受调用方 ctx 约束
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Goto(ctx context.Context, url string, wait WaitCondition) error {
	event := lifecycleEventName(wait)
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		p.lc.reset()
		_, loaderID, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("navigation failed: %s", errorText)
		}
		// 同文档导航（如 #hash）没有新的 loader，也不会产生生命周期事件
		if loaderID == "" {
			return nil
		}
		return p.lc.wait(ctx, loaderID, event)
	}))
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	return p.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (p *chromePage) WaitFor(ctx context.Context, d time.Duration) error {
	return p.run(ctx, chromedp.Sleep(d))
}

func (p *chromePage) Screenshot(ctx context.Context, path string, fullPage bool) error {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		// quality 100 输出 PNG
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, action); err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return &IOError{Path: path, Err: err}
	}
	return nil
}

func (p *chromePage) nodes(ctx context.Context, selector string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (p *chromePage) QueryAllCount(ctx context.Context, selector string) (int, error) {
	nodes, err := p.nodes(ctx, selector)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (p *chromePage) QueryAllText(ctx context.Context, selector string) ([]string, error) {
	nodes, err := p.nodes(ctx, selector)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(nodes))
	for i, n := range nodes {
		if err := p.run(ctx, chromedp.Text([]cdp.NodeID{n.NodeID}, &texts[i], chromedp.ByNodeID)); err != nil {
			return nil, fmt.Errorf("read text of match %d: %w", i, err)
		}
	}
	return texts, nil
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var content string
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		content, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("get content: %w", err)
	}
	return content, nil
}

func lifecycleEventName(wait WaitCondition) string {
	switch wait {
	case WaitLoad:
		return "load"
	case WaitDOMContentLoaded:
		return "DOMContentLoaded"
	default:
		return "networkIdle"
	}
}

// lifecycle 记录每个 loader 已触发的生命周期事件
type lifecycle struct {
	mu     sync.Mutex
	seen   map[cdp.LoaderID]map[string]struct{}
	notify chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		seen:   make(map[cdp.LoaderID]map[string]struct{}),
		notify: make(chan struct{}),
	}
}

func (l *lifecycle) reset() {
	l.mu.Lock()
	l.seen = make(map[cdp.LoaderID]map[string]struct{})
	l.mu.Unlock()
}

func (l *lifecycle) record(ev *page.EventLifecycleEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	names, ok := l.seen[ev.LoaderID]
	if !ok {
		names = make(map[string]struct{})
		l.seen[ev.LoaderID] = names
	}
	names[ev.Name] = struct{}{}
	close(l.notify)
	l.notify = make(chan struct{})
}

func (l *lifecycle) wait(ctx context.Context, loaderID cdp.LoaderID, name string) error {
	for {
		l.mu.Lock()
		_, ok := l.seen[loaderID][name]
		ch := l.notify
		l.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", name, ctx.Err())
		}
	}
}
