// MockProvider 的浏览器 Provider 测试模拟实现。
//
// 页面由内存中的 URL → HTML 表提供，支持调用计数与错误注入。
package mocks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/BaSui01/pageflow/browser"
)

// ErrUnreachable 是访问未注册 URL 时返回的错误
var ErrUnreachable = errors.New("mock: host unreachable")

// PNGHeader 是模拟截图写入的内容
var PNGHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// --- MockProvider 结构 ---

// PageCall 记录一次页面原语调用
type PageCall struct {
	Op       string
	Selector string
	Value    string
}

// MockProvider 是 browser.Provider 的模拟实现
type MockProvider struct {
	mu sync.RWMutex

	// 页面表
	pages map[string]string

	// 错误注入
	launchErr     error
	gotoErrs      map[string]error
	selectorErrs  map[string]error
	hanging       map[string]bool
	screenshotErr error
	closeErr      error
	gotoDelay     time.Duration

	// 调用统计
	launches atomic.Int64
	closes   atomic.Int64
	live     atomic.Int64
	peak     atomic.Int64
	calls    []PageCall
}

// --- 构造函数和 Builder 方法 ---

// NewMockProvider 创建新的 MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		pages:        make(map[string]string),
		gotoErrs:     make(map[string]error),
		selectorErrs: make(map[string]error),
		hanging:      make(map[string]bool),
	}
}

// WithPage 注册 URL 对应的 HTML
func (m *MockProvider) WithPage(url, html string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[url] = html
	return m
}

// WithLaunchError 设置 Launch 返回的错误
func (m *MockProvider) WithLaunchError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.launchErr = err
	return m
}

// WithGotoError 设置访问指定 URL 时返回的错误
func (m *MockProvider) WithGotoError(url string, err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotoErrs[url] = err
	return m
}

// WithSelectorError 设置对指定选择器的任意操作返回的错误
func (m *MockProvider) WithSelectorError(selector string, err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectorErrs[selector] = err
	return m
}

// WithHangingSelector 让对指定选择器的 Click / Fill 一直阻塞到 ctx 结束，
// 模拟 chromedp 轮询一个永远不出现的元素
func (m *MockProvider) WithHangingSelector(selector string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hanging[selector] = true
	return m
}

// WithScreenshotError 设置截图返回的错误
func (m *MockProvider) WithScreenshotError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screenshotErr = err
	return m
}

// WithCloseError 设置实例关闭时返回的错误
func (m *MockProvider) WithCloseError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeErr = err
	return m
}

// WithGotoDelay 设置每次导航的模拟耗时（受 ctx 约束）
func (m *MockProvider) WithGotoDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotoDelay = d
	return m
}

// --- 统计方法 ---

// Launches 返回 Launch 成功次数
func (m *MockProvider) Launches() int { return int(m.launches.Load()) }

// Closes 返回实例关闭次数
func (m *MockProvider) Closes() int { return int(m.closes.Load()) }

// Live 返回当前存活实例数
func (m *MockProvider) Live() int { return int(m.live.Load()) }

// Peak 返回同时存活实例数的峰值
func (m *MockProvider) Peak() int { return int(m.peak.Load()) }

// Calls 返回页面原语调用记录的副本
func (m *MockProvider) Calls() []PageCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PageCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset 清空调用统计
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.launches.Store(0)
	m.closes.Store(0)
	m.peak.Store(m.live.Load())
}

func (m *MockProvider) record(call PageCall) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

// --- browser.Provider 接口实现 ---

// Name 返回提供者名称
func (m *MockProvider) Name() string { return "mock" }

// Launch 启动模拟实例
func (m *MockProvider) Launch(ctx context.Context) (browser.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	err := m.launchErr
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	m.launches.Add(1)
	live := m.live.Add(1)
	for {
		peak := m.peak.Load()
		if live <= peak || m.peak.CompareAndSwap(peak, live) {
			break
		}
	}
	return &mockInstance{provider: m}, nil
}

type mockInstance struct {
	provider *MockProvider
	once     sync.Once
}

func (i *mockInstance) NewPage(context.Context) (browser.Page, error) {
	return &mockPage{provider: i.provider}, nil
}

func (i *mockInstance) Close() error {
	i.once.Do(func() {
		i.provider.live.Add(-1)
	})
	i.provider.closes.Add(1)
	i.provider.mu.RLock()
	defer i.provider.mu.RUnlock()
	return i.provider.closeErr
}

type mockPage struct {
	provider *MockProvider
	doc      *goquery.Document
	url      string
}

func (p *mockPage) selectorErr(selector string) error {
	p.provider.mu.RLock()
	defer p.provider.mu.RUnlock()
	return p.provider.selectorErrs[selector]
}

func (p *mockPage) Goto(ctx context.Context, url string, _ browser.WaitCondition) error {
	p.provider.record(PageCall{Op: "goto", Value: url})

	p.provider.mu.RLock()
	html, ok := p.provider.pages[url]
	gotoErr := p.provider.gotoErrs[url]
	delay := p.provider.gotoDelay
	p.provider.mu.RUnlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if gotoErr != nil {
		return gotoErr
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnreachable, url)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	p.doc, p.url = doc, url
	return nil
}

// waitHanging 对挂起的选择器阻塞到 ctx 结束
func (p *mockPage) waitHanging(ctx context.Context, selector string) error {
	p.provider.mu.RLock()
	hang := p.provider.hanging[selector]
	p.provider.mu.RUnlock()
	if !hang {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *mockPage) first(selector string) (*goquery.Selection, error) {
	if err := p.selectorErr(selector); err != nil {
		return nil, err
	}
	if p.doc == nil {
		return nil, errors.New("mock: no document")
	}
	sel := p.doc.Find(selector)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("mock: selector %q not found", selector)
	}
	return sel.First(), nil
}

func (p *mockPage) Click(ctx context.Context, selector string) error {
	p.provider.record(PageCall{Op: "click", Selector: selector})
	if err := p.waitHanging(ctx, selector); err != nil {
		return err
	}
	el, err := p.first(selector)
	if err != nil {
		return err
	}
	if href, ok := el.Attr("href"); ok && href != "" {
		return p.Goto(ctx, href, browser.WaitNetworkIdle)
	}
	return nil
}

func (p *mockPage) Fill(ctx context.Context, selector, value string) error {
	p.provider.record(PageCall{Op: "fill", Selector: selector, Value: value})
	if err := p.waitHanging(ctx, selector); err != nil {
		return err
	}
	el, err := p.first(selector)
	if err != nil {
		return err
	}
	el.SetAttr("value", value)
	return nil
}

func (p *mockPage) WaitFor(ctx context.Context, d time.Duration) error {
	p.provider.record(PageCall{Op: "wait", Value: d.String()})
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *mockPage) Screenshot(_ context.Context, path string, fullPage bool) error {
	p.provider.record(PageCall{Op: "screenshot", Value: path, Selector: fmt.Sprint(fullPage)})
	p.provider.mu.RLock()
	err := p.provider.screenshotErr
	p.provider.mu.RUnlock()
	if err != nil {
		return err
	}
	if werr := os.WriteFile(path, PNGHeader, 0o644); werr != nil {
		return &browser.IOError{Path: path, Err: werr}
	}
	return nil
}

func (p *mockPage) QueryAllCount(_ context.Context, selector string) (int, error) {
	p.provider.record(PageCall{Op: "count", Selector: selector})
	if err := p.selectorErr(selector); err != nil {
		return 0, err
	}
	if p.doc == nil {
		return 0, errors.New("mock: no document")
	}
	return p.doc.Find(selector).Length(), nil
}

func (p *mockPage) QueryAllText(_ context.Context, selector string) ([]string, error) {
	p.provider.record(PageCall{Op: "text", Selector: selector})
	if err := p.selectorErr(selector); err != nil {
		return nil, err
	}
	if p.doc == nil {
		return nil, errors.New("mock: no document")
	}
	return p.doc.Find(selector).Map(func(_ int, s *goquery.Selection) string { return s.Text() }), nil
}

func (p *mockPage) Content(context.Context) (string, error) {
	p.provider.record(PageCall{Op: "content"})
	if p.doc == nil {
		return "", errors.New("mock: no document")
	}
	return p.doc.Html()
}
