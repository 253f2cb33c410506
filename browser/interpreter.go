package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ActionObserver receives one call per dispatched action. The metrics
// collector implements it.
type ActionObserver interface {
	ObserveAction(kind string, status string, d time.Duration)
}

// InterpreterOptions configures an Interpreter.
type InterpreterOptions struct {
	// NavigationTimeout bounds each navigate action. Zero leaves only the
	// run context.
	NavigationTimeout time.Duration
	// ActionTimeout bounds each click, fill and screenshot action. Zero
	// leaves only the run context.
	ActionTimeout time.Duration
	Observer      ActionObserver
}

// Interpreter executes descriptor lists against a session, one action at a
// time in declaration order.
type Interpreter struct {
	namer  *ArtifactNamer
	opts   InterpreterOptions
	logger *zap.Logger
}

// NewInterpreter creates an interpreter that names screenshots with namer.
func NewInterpreter(namer *ArtifactNamer, opts InterpreterOptions, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if namer == nil {
		namer = NewArtifactNamer("")
	}
	return &Interpreter{
		namer:  namer,
		opts:   opts,
		logger: logger.With(zap.String("component", "interpreter")),
	}
}

// Run executes descriptors in order and returns one log entry per dispatched
// action. Descriptors with an unknown kind or missing parameters are skipped
// without a log entry. The first failing primitive stops the run; the log
// accumulated up to that point is returned with an *ActionExecutionError.
func (in *Interpreter) Run(ctx context.Context, s *Session, descriptors []Descriptor) ([]string, error) {
	log := make([]string, 0, len(descriptors))
	for i, d := range descriptors {
		action, err := d.Decode()
		if err != nil {
			in.logger.Debug("skipping action",
				zap.Int("index", i),
				zap.String("kind", string(d.Kind)),
				zap.String("reason", err.Error()),
			)
			continue
		}
		if err := ctx.Err(); err != nil {
			return log, &ActionExecutionError{Index: i, Kind: action.Kind(), Err: err}
		}

		start := time.Now()
		entry, err := in.dispatch(ctx, s, action)
		in.observe(action.Kind(), err, time.Since(start))
		if err != nil {
			in.logger.Warn("action failed",
				zap.Int("index", i),
				zap.String("kind", string(action.Kind())),
				zap.String("session_id", s.ID()),
				zap.Error(err),
			)
			return log, &ActionExecutionError{Index: i, Kind: action.Kind(), Err: err}
		}
		if entry != "" {
			log = append(log, entry)
		}
	}
	return log, nil
}

func (in *Interpreter) dispatch(ctx context.Context, s *Session, action Action) (string, error) {
	page := s.Page()
	switch action.(type) {
	case ClickAction, FillAction, ScreenshotAction:
		if in.opts.ActionTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, in.opts.ActionTimeout)
			defer cancel()
		}
	}

	switch a := action.(type) {
	case ClickAction:
		if err := page.Click(ctx, a.Selector); err != nil {
			return "", err
		}
		return fmt.Sprintf("Clicked element: %s", a.Selector), nil

	case FillAction:
		if err := page.Fill(ctx, a.Selector, a.Value); err != nil {
			return "", err
		}
		return fmt.Sprintf("Filled form: %s = %s", a.Selector, a.Value), nil

	case NavigateAction:
		navCtx := ctx
		if in.opts.NavigationTimeout > 0 {
			var cancel context.CancelFunc
			navCtx, cancel = context.WithTimeout(ctx, in.opts.NavigationTimeout)
			defer cancel()
		}
		if err := page.Goto(navCtx, a.URL, WaitNetworkIdle); err != nil {
			return "", &NavigationError{URL: a.URL, Err: err}
		}
		return fmt.Sprintf("Navigated to: %s", a.URL), nil

	case WaitAction:
		if err := page.WaitFor(ctx, a.Timeout); err != nil {
			return "", err
		}
		return fmt.Sprintf("Waited: %dms", a.Timeout.Milliseconds()), nil

	case ScreenshotAction:
		art, err := s.Screenshot(ctx, in.namer, a.FullPage)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Screenshot: %s", art.Path), nil

	default:
		// Action 是封闭集合；未识别的变体按空操作处理
		return "", nil
	}
}

func (in *Interpreter) observe(kind Kind, err error, d time.Duration) {
	if in.opts.Observer == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	in.opts.Observer.ObserveAction(string(kind), status, d)
}
