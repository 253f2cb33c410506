package browser

import (
	"context"
	"time"
)

// WaitCondition selects the page-load state Goto blocks on.
type WaitCondition string

const (
	// WaitNetworkIdle waits until outstanding network activity has settled.
	WaitNetworkIdle WaitCondition = "networkidle"
	// WaitLoad waits for the load event.
	WaitLoad WaitCondition = "load"
	// WaitDOMContentLoaded waits for DOMContentLoaded.
	WaitDOMContentLoaded WaitCondition = "domcontentloaded"
)

// Provider launches browser instances. Implementations must be safe for
// concurrent Launch calls; every returned Instance is independent.
type Provider interface {
	// Name identifies the provider in logs, metrics and errors.
	Name() string
	// Launch starts a new browser instance.
	Launch(ctx context.Context) (Instance, error)
}

// Instance is one running browser.
type Instance interface {
	// NewPage opens a page in this instance.
	NewPage(ctx context.Context) (Page, error)
	// Close shuts the instance down, including all of its pages.
	Close() error
}

// Page is the primitive surface the engine drives. Selector-based calls act on
// the first matching element unless noted otherwise.
type Page interface {
	Goto(ctx context.Context, url string, wait WaitCondition) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	WaitFor(ctx context.Context, d time.Duration) error
	// Screenshot writes an image of the page to path.
	Screenshot(ctx context.Context, path string, fullPage bool) error
	// QueryAllCount returns the number of elements matching selector; zero
	// matches is not an error.
	QueryAllCount(ctx context.Context, selector string) (int, error)
	// QueryAllText returns the text of every matching element in DOM order.
	QueryAllText(ctx context.Context, selector string) ([]string, error)
	// Content returns the serialized markup of the current document.
	Content(ctx context.Context) (string, error)
}
