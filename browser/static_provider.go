package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// StaticConfig 配置无浏览器的静态 Provider
type StaticConfig struct {
	UserAgent string        `json:"user_agent,omitempty"`
	Timeout   time.Duration `json:"timeout"`
	// RequestsPerSecond 限制所有实例的总请求速率，<= 0 表示不限
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	MaxBodyBytes      int64   `json:"max_body_bytes"`
}

// DefaultStaticConfig 返回默认配置
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		UserAgent:         "pageflow/1.0 (+static)",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
		Burst:             5,
		MaxBodyBytes:      10 << 20,
	}
}

// StaticProvider 用 HTTP + goquery 模拟页面，适合服务端渲染页面；不执行脚本，不支持截图
type StaticProvider struct {
	config    StaticConfig
	limiter   *rate.Limiter
	transport http.RoundTripper
	logger    *zap.Logger
}

// NewStaticProvider 创建静态 Provider。transport 为 nil 时使用 http.DefaultTransport
func NewStaticProvider(config StaticConfig, transport http.RoundTripper, logger *zap.Logger) *StaticProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}
	return &StaticProvider{
		config:    config,
		limiter:   rate.NewLimiter(limit, burst),
		transport: transport,
		logger:    logger.With(zap.String("component", "static_provider")),
	}
}

// Name implements Provider.
func (p *StaticProvider) Name() string { return "static" }

// Launch implements Provider. 每个实例拥有独立的 cookie jar
func (p *StaticProvider) Launch(ctx context.Context) (Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &staticInstance{
		provider: p,
		client: &http.Client{
			Transport: p.transport,
			Jar:       jar,
			Timeout:   p.config.Timeout,
		},
	}, nil
}

type staticInstance struct {
	provider *StaticProvider
	client   *http.Client

	mu     sync.Mutex
	closed bool
}

func (i *staticInstance) NewPage(ctx context.Context) (Page, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, errors.New("instance is closed")
	}
	return &staticPage{instance: i}, nil
}

func (i *staticInstance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.closed {
		i.closed = true
		i.client.CloseIdleConnections()
	}
	return nil
}

type staticPage struct {
	instance *staticInstance

	mu   sync.Mutex
	doc  *goquery.Document
	base *url.URL
}

// Goto 忽略 wait：响应体读完即视为稳定
func (p *staticPage) Goto(ctx context.Context, rawURL string, _ WaitCondition) error {
	target, err := p.resolve(rawURL)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return p.load(ctx, req)
}

func (p *staticPage) load(ctx context.Context, req *http.Request) error {
	sp := p.instance.provider
	if err := sp.limiter.Wait(ctx); err != nil {
		return err
	}
	if sp.config.UserAgent != "" {
		req.Header.Set("User-Agent", sp.config.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.instance.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var body io.Reader = resp.Body
	if limit := sp.config.MaxBodyBytes; limit > 0 {
		// 多读一个字节以区分“恰好等于上限”和“被截断”
		data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if int64(len(data)) > limit {
			return fmt.Errorf("%w: %s larger than %d bytes", ErrBodyTooLarge, resp.Request.URL, limit)
		}
		body = bytes.NewReader(data)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	doc.Url = resp.Request.URL

	p.mu.Lock()
	p.doc = doc
	p.base = resp.Request.URL
	p.mu.Unlock()

	sp.logger.Debug("page loaded",
		zap.String("method", req.Method),
		zap.String("url", resp.Request.URL.String()),
		zap.Int("status", resp.StatusCode))
	return nil
}

func (p *staticPage) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", ref, err)
	}
	p.mu.Lock()
	base := p.base
	p.mu.Unlock()
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url %q", u.String())
	}
	return u, nil
}

// find 返回匹配 selector 的全部元素；非法 selector 报错而不是静默返回空
func (p *staticPage) find(selector string) (*goquery.Selection, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	p.mu.Lock()
	doc := p.doc
	p.mu.Unlock()
	if doc == nil {
		return nil, errors.New("no document loaded")
	}
	return doc.FindMatcher(m), nil
}

func (p *staticPage) first(selector string) (*goquery.Selection, error) {
	sel, err := p.find(selector)
	if err != nil {
		return nil, err
	}
	if sel.Length() == 0 {
		return nil, fmt.Errorf("selector %q did not match any element", selector)
	}
	return sel.First(), nil
}

// Click 处理复选框/单选框、链接跳转和表单提交，其余元素点击无效果
func (p *staticPage) Click(ctx context.Context, selector string) error {
	el, err := p.first(selector)
	if err != nil {
		return err
	}
	tag := goquery.NodeName(el)
	inputType := strings.ToLower(el.AttrOr("type", ""))

	if tag == "input" && inputType == "checkbox" {
		if _, checked := el.Attr("checked"); checked {
			el.RemoveAttr("checked")
		} else {
			el.SetAttr("checked", "checked")
		}
		return nil
	}
	if tag == "input" && inputType == "radio" {
		if name := el.AttrOr("name", ""); name != "" {
			el.Closest("form").Find("input[type=radio]").Each(func(_ int, r *goquery.Selection) {
				if r.AttrOr("name", "") == name {
					r.RemoveAttr("checked")
				}
			})
		}
		el.SetAttr("checked", "checked")
		return nil
	}

	if link := el.Closest("a[href]"); link.Length() > 0 {
		return p.Goto(ctx, link.AttrOr("href", ""), WaitLoad)
	}

	isSubmit := (tag == "button" && (inputType == "" || inputType == "submit")) ||
		(tag == "input" && (inputType == "submit" || inputType == "image"))
	if !isSubmit {
		return nil
	}
	form := p.formOf(el)
	if form == nil {
		return nil
	}
	return p.submit(ctx, form, el)
}

func (p *staticPage) formOf(el *goquery.Selection) *goquery.Selection {
	if id := el.AttrOr("form", ""); id != "" {
		if f := el.Parents().Last().Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr("id", "") == id
		}); f.Length() > 0 {
			return f.First()
		}
	}
	if f := el.Closest("form"); f.Length() > 0 {
		return f
	}
	return nil
}

func (p *staticPage) submit(ctx context.Context, form, submitter *goquery.Selection) error {
	values := formValues(form)
	if name := submitter.AttrOr("name", ""); name != "" {
		values.Add(name, submitter.AttrOr("value", ""))
	}

	target, err := p.resolve(form.AttrOr("action", ""))
	if err != nil {
		return err
	}
	method := strings.ToUpper(form.AttrOr("method", http.MethodGet))

	var req *http.Request
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(values.Encode()))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		u := *target
		u.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
	}
	return p.load(ctx, req)
}

// formValues 收集表单中已启用控件的当前值，提交按钮由调用方追加
func formValues(form *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input, textarea, select").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" {
			return
		}
		if _, disabled := s.Attr("disabled"); disabled {
			return
		}
		switch goquery.NodeName(s) {
		case "input":
			switch t := strings.ToLower(s.AttrOr("type", "text")); t {
			case "checkbox", "radio":
				if _, checked := s.Attr("checked"); checked {
					values.Add(name, s.AttrOr("value", "on"))
				}
			case "submit", "reset", "button", "image", "file":
			default:
				values.Add(name, s.AttrOr("value", ""))
			}
		case "textarea":
			values.Add(name, s.Text())
		case "select":
			opts := s.Find("option")
			chosen := opts.FilterFunction(func(_ int, o *goquery.Selection) bool {
				_, ok := o.Attr("selected")
				return ok
			})
			if chosen.Length() == 0 {
				chosen = opts
			}
			if chosen.Length() > 0 {
				o := chosen.First()
				values.Add(name, o.AttrOr("value", strings.TrimSpace(o.Text())))
			}
		}
	})
	return values
}

func (p *staticPage) Fill(_ context.Context, selector, value string) error {
	el, err := p.first(selector)
	if err != nil {
		return err
	}
	switch goquery.NodeName(el) {
	case "input":
		el.SetAttr("value", value)
	case "textarea":
		el.SetText(value)
	case "select":
		opts := el.Find("option")
		match := opts.FilterFunction(func(_ int, o *goquery.Selection) bool {
			return o.AttrOr("value", strings.TrimSpace(o.Text())) == value
		})
		if match.Length() == 0 {
			return fmt.Errorf("select %q has no option %q", selector, value)
		}
		opts.RemoveAttr("selected")
		match.First().SetAttr("selected", "selected")
	default:
		return fmt.Errorf("element %q (%s) is not fillable", selector, goquery.NodeName(el))
	}
	return nil
}

func (p *staticPage) WaitFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *staticPage) Screenshot(context.Context, string, bool) error {
	return fmt.Errorf("static provider screenshot: %w", ErrUnsupported)
}

func (p *staticPage) QueryAllCount(_ context.Context, selector string) (int, error) {
	sel, err := p.find(selector)
	if err != nil {
		return 0, err
	}
	return sel.Length(), nil
}

func (p *staticPage) QueryAllText(_ context.Context, selector string) ([]string, error) {
	sel, err := p.find(selector)
	if err != nil {
		return nil, err
	}
	return sel.Map(func(_ int, s *goquery.Selection) string { return s.Text() }), nil
}

func (p *staticPage) Content(context.Context) (string, error) {
	p.mu.Lock()
	doc := p.doc
	p.mu.Unlock()
	if doc == nil {
		return "", errors.New("no document loaded")
	}
	return doc.Html()
}
