package browser

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind names one of the supported page actions.
type Kind string

const (
	KindClick      Kind = "click"
	KindFill       Kind = "fill"
	KindNavigate   Kind = "navigate"
	KindWait       Kind = "wait"
	KindScreenshot Kind = "screenshot"
)

// DefaultWaitTimeout applies to wait descriptors that omit timeout.
const DefaultWaitTimeout = 1000 * time.Millisecond

// Descriptor is the declarative, untyped form of an action as it arrives from
// a script file or an agent tool call.
type Descriptor struct {
	Kind   Kind           `json:"kind" yaml:"kind"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Action is the decoded form of a Descriptor. The set of implementations is
// closed: ClickAction, FillAction, NavigateAction, WaitAction and
// ScreenshotAction.
type Action interface {
	Kind() Kind
	isAction()
}

// ClickAction clicks the first element matching Selector.
type ClickAction struct {
	Selector string
}

// FillAction sets the value of the first input matching Selector.
type FillAction struct {
	Selector string
	Value    string
}

// NavigateAction loads URL and waits for network idle.
type NavigateAction struct {
	URL string
}

// WaitAction suspends the session for Timeout.
type WaitAction struct {
	Timeout time.Duration
}

// ScreenshotAction captures the page into the artifact directory.
type ScreenshotAction struct {
	FullPage bool
}

func (ClickAction) Kind() Kind      { return KindClick }
func (FillAction) Kind() Kind       { return KindFill }
func (NavigateAction) Kind() Kind   { return KindNavigate }
func (WaitAction) Kind() Kind       { return KindWait }
func (ScreenshotAction) Kind() Kind { return KindScreenshot }

func (ClickAction) isAction()      {}
func (FillAction) isAction()       {}
func (NavigateAction) isAction()   {}
func (WaitAction) isAction()       {}
func (ScreenshotAction) isAction() {}

// Decode validates the descriptor and returns its typed action. Errors wrap
// ErrUnknownKind or ErrMissingParam.
func (d Descriptor) Decode() (Action, error) {
	switch d.Kind {
	case KindClick:
		sel, err := d.requireString("selector")
		if err != nil {
			return nil, err
		}
		return ClickAction{Selector: sel}, nil

	case KindFill:
		sel, err := d.requireString("selector")
		if err != nil {
			return nil, err
		}
		raw, ok := d.Params["value"]
		if !ok || raw == nil {
			return nil, fmt.Errorf("%s: %w: value", d.Kind, ErrMissingParam)
		}
		value, ok := scalarString(raw)
		if !ok {
			return nil, fmt.Errorf("%s: %w: value must be a scalar, got %T", d.Kind, ErrMissingParam, raw)
		}
		return FillAction{Selector: sel, Value: value}, nil

	case KindNavigate:
		u, err := d.requireString("url")
		if err != nil {
			return nil, err
		}
		return NavigateAction{URL: u}, nil

	case KindWait:
		raw, ok := d.Params["timeout"]
		if !ok || raw == nil {
			return WaitAction{Timeout: DefaultWaitTimeout}, nil
		}
		ms, ok := milliseconds(raw)
		if !ok {
			return nil, fmt.Errorf("%s: %w: timeout must be a number of milliseconds in [0, %.0f], got %v", d.Kind, ErrMissingParam, maxWaitMillis, raw)
		}
		return WaitAction{Timeout: time.Duration(ms) * time.Millisecond}, nil

	case KindScreenshot:
		full := true
		if raw, ok := d.Params["full_page"]; ok {
			b, isBool := raw.(bool)
			if !isBool {
				return nil, fmt.Errorf("%s: %w: full_page must be a boolean, got %T", d.Kind, ErrMissingParam, raw)
			}
			full = b
		}
		return ScreenshotAction{FullPage: full}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind)
	}
}

func (d Descriptor) requireString(key string) (string, error) {
	raw, ok := d.Params[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("%s: %w: %s", d.Kind, ErrMissingParam, key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s: %w: %s must be a non-empty string", d.Kind, ErrMissingParam, key)
	}
	return s, nil
}

// scalarString renders strings, numbers and booleans as form values.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	default:
		return "", false
	}
}

// maxWaitMillis is the largest wait that still fits in a time.Duration.
const maxWaitMillis = float64(math.MaxInt64 / int64(time.Millisecond))

// milliseconds accepts JSON numbers (float64), YAML integers and numeric strings.
func milliseconds(v any) (int64, bool) {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) || f > maxWaitMillis {
		return 0, false
	}
	return int64(f), true
}
