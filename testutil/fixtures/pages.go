// =============================================================================
// 📦 测试数据工厂 - HTML 页面
// =============================================================================
// 提供预定义的 HTML 页面，用于浏览器引擎测试
// =============================================================================
package fixtures

import (
	"fmt"
	"strings"

	"github.com/BaSui01/pageflow/browser"
)

// 常用测试 URL
const (
	SearchURL  = "https://example.test/search"
	ResultsURL = "https://example.test/results"
	ItemsURL   = "https://example.test/items"
	EmptyURL   = "https://example.test/empty"
)

// =============================================================================
// 🎯 页面工厂
// =============================================================================

// SearchPage 返回带搜索框和提交按钮的页面
func SearchPage() string {
	return `<!DOCTYPE html>
<html><head><title>Search</title></head>
<body>
  <form action="/results" method="get">
    <input id="q" name="q" type="text">
    <button id="go" type="submit">Go</button>
  </form>
</body></html>`
}

// ItemsPage 返回含 titles 个标题、prices 个价格的商品列表
func ItemsPage(titles, prices int) string {
	n := titles
	if prices > n {
		n = prices
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Items</title></head><body><ul>")
	for i := 0; i < n; i++ {
		b.WriteString(`<li class="item">`)
		if i < titles {
			fmt.Fprintf(&b, "<h3>  Item %d  </h3>", i+1)
		}
		if i < prices {
			fmt.Fprintf(&b, `<span class="price">$%d.00</span>`, (i+1)*10)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

// EmptyPage 返回没有任何列表项的页面
func EmptyPage() string {
	return `<!DOCTYPE html><html><head><title>Empty</title></head><body><p>nothing here</p></body></html>`
}

// =============================================================================
// 🔧 动作与定位器工厂
// =============================================================================

// SearchScenario 返回 navigate → fill → click → screenshot 四步动作
func SearchScenario(url string) []browser.Descriptor {
	return []browser.Descriptor{
		{Kind: browser.KindNavigate, Params: map[string]any{"url": url}},
		{Kind: browser.KindFill, Params: map[string]any{"selector": "#q", "value": "foo"}},
		{Kind: browser.KindClick, Params: map[string]any{"selector": "#go"}},
		{Kind: browser.KindScreenshot},
	}
}

// ItemLocators 返回 title → ".item h3"、price → ".item .price" 的定位器
func ItemLocators() browser.LocatorMap {
	return browser.Locators("title", ".item h3", "price", ".item .price")
}
