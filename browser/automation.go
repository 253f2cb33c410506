package browser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/pageflow/types"
)

const instrumentationName = "github.com/BaSui01/pageflow/browser"

// Operation names used in metrics, spans and run history.
const (
	OpScreenshot        = "screenshot"
	OpExtractHTML       = "extract_html"
	OpRunActions        = "run_actions"
	OpExtractStructured = "extract_structured"
)

// Config configures an Automation.
type Config struct {
	// ArtifactDir receives screenshot files.
	ArtifactDir string `json:"artifact_dir"`
	// NavigationTimeout bounds session acquisition and each navigate action.
	NavigationTimeout time.Duration `json:"navigation_timeout"`
	// ActionTimeout bounds each click, fill and screenshot action.
	ActionTimeout time.Duration `json:"action_timeout"`
	// MaxConcurrentSessions caps live browser instances; 0 means unlimited.
	MaxConcurrentSessions int `json:"max_concurrent_sessions"`
	// BatchConcurrency caps parallel pages in ExtractStructuredMany.
	BatchConcurrency int `json:"batch_concurrency"`
	// CacheTTL applies to cached HTML and structured results.
	CacheTTL time.Duration `json:"cache_ttl"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ArtifactDir:           "artifacts",
		NavigationTimeout:     30 * time.Second,
		ActionTimeout:         30 * time.Second,
		MaxConcurrentSessions: 4,
		BatchConcurrency:      4,
		CacheTTL:              5 * time.Minute,
	}
}

// ResultCache stores read-only results between calls. Any Get error is
// treated as a miss.
type ResultCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// RunRecord summarizes one facade call.
type RunRecord struct {
	ID        string        `json:"id"`
	Operation string        `json:"operation"`
	URL       string        `json:"url"`
	Provider  string        `json:"provider"`
	SessionID string        `json:"session_id,omitempty"`
	Status    string        `json:"status"`
	ErrorCode string        `json:"error_code,omitempty"`
	Error     string        `json:"error,omitempty"`
	Log       []string      `json:"log,omitempty"`
	Records   int           `json:"records"`
	Artifact  string        `json:"artifact,omitempty"`
	Cached    bool          `json:"cached"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// RunRecorder persists run records.
type RunRecorder interface {
	Record(ctx context.Context, rec *RunRecord) error
}

// Observer receives engine measurements.
type Observer interface {
	ActionObserver
	ObserveOperation(op, provider, status string, d time.Duration)
	ObserveSessionOpened(provider string)
	ObserveSessionClosed(provider string, lifetime time.Duration)
	ObserveRecords(n int)
	ObserveCache(op string, hit bool)
}

// PageRecords is one page's outcome in ExtractStructuredMany.
type PageRecords struct {
	URL     string       `json:"url"`
	Records []Record     `json:"records"`
	Error   *types.Error `json:"error,omitempty"`
}

// Option customizes an Automation.
type Option func(*Automation)

// WithResultCache enables read-through caching of HTML and structured results.
func WithResultCache(c ResultCache) Option { return func(a *Automation) { a.cache = c } }

// WithRunRecorder persists a RunRecord for every call.
func WithRunRecorder(r RunRecorder) Option { return func(a *Automation) { a.recorder = r } }

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option { return func(a *Automation) { a.observer = o } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(a *Automation) { a.logger = l } }

// Automation is the public entry surface. Each operation acquires its own
// session, delegates, and releases the session before returning.
type Automation struct {
	provider    Provider
	config      Config
	namer       *ArtifactNamer
	limiter     *Limiter
	interpreter *Interpreter
	extractor   *Extractor
	cache       ResultCache
	recorder    RunRecorder
	observer    Observer
	tracer      trace.Tracer
	calls       metric.Int64Counter
	logger      *zap.Logger
}

// NewAutomation creates the facade over provider.
func NewAutomation(provider Provider, config Config, opts ...Option) *Automation {
	a := &Automation{config: config}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	a.logger = a.logger.With(zap.String("component", "automation"))

	a.namer = NewArtifactNamer(config.ArtifactDir)
	a.limiter = NewLimiter(config.MaxConcurrentSessions, a.logger)
	a.provider = a.limiter.Wrap(provider)

	var obs ActionObserver
	if a.observer != nil {
		obs = a.observer
	}
	a.interpreter = NewInterpreter(a.namer, InterpreterOptions{
		NavigationTimeout: config.NavigationTimeout,
		ActionTimeout:     config.ActionTimeout,
		Observer:          obs,
	}, a.logger)
	a.extractor = NewExtractor(a.logger)

	a.tracer = otel.Tracer(instrumentationName)
	counter, err := otel.Meter(instrumentationName).Int64Counter("pageflow.browser.calls",
		metric.WithDescription("Facade calls by operation and status"))
	if err != nil {
		a.logger.Warn("create otel counter", zap.Error(err))
	}
	a.calls = counter
	return a
}

// Namer returns the artifact namer.
func (a *Automation) Namer() *ArtifactNamer { return a.namer }

// Limiter returns the session limiter.
func (a *Automation) Limiter() *Limiter { return a.limiter }

// Close stops accepting new sessions.
func (a *Automation) Close() error { return a.limiter.Close() }

// Screenshot captures url into a new artifact.
func (a *Automation) Screenshot(ctx context.Context, url string, fullPage bool) (*Artifact, error) {
	var art *Artifact
	err := a.do(ctx, OpScreenshot, url, func(ctx context.Context, s *Session, rec *RunRecord) error {
		var err error
		art, err = s.Screenshot(ctx, a.namer, fullPage)
		if err != nil {
			return err
		}
		rec.Artifact = art.Path
		return nil
	})
	if err != nil {
		return nil, err
	}
	return art, nil
}

// ExtractHTML returns the serialized markup of url after it settles.
func (a *Automation) ExtractHTML(ctx context.Context, url string) (string, error) {
	key := cacheKey(OpExtractHTML, url)
	var html string
	if a.cacheGet(ctx, OpExtractHTML, key, &html) {
		a.recordCached(ctx, OpExtractHTML, url, 0)
		return html, nil
	}

	err := a.do(ctx, OpExtractHTML, url, func(ctx context.Context, s *Session, _ *RunRecord) error {
		var err error
		html, err = s.Page().Content(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	a.cacheSet(ctx, key, html)
	return html, nil
}

// RunActions executes descriptors against url and returns the execution log.
// On failure the partial log is returned with the error.
func (a *Automation) RunActions(ctx context.Context, url string, descriptors []Descriptor) ([]string, error) {
	var log []string
	err := a.do(ctx, OpRunActions, url, func(ctx context.Context, s *Session, rec *RunRecord) error {
		var err error
		log, err = a.interpreter.Run(ctx, s, descriptors)
		rec.Log = log
		return err
	})
	if log == nil {
		log = []string{}
	}
	return log, err
}

// ExtractStructured extracts records from url.
func (a *Automation) ExtractStructured(ctx context.Context, url string, locators LocatorMap) ([]Record, error) {
	if err := locators.Validate(); err != nil {
		return nil, err
	}
	key := cacheKey(OpExtractStructured, url, locatorKey(locators))
	var records []Record
	if a.cacheGet(ctx, OpExtractStructured, key, &records) && records != nil {
		a.recordCached(ctx, OpExtractStructured, url, len(records))
		a.observeRecords(len(records))
		return records, nil
	}

	err := a.do(ctx, OpExtractStructured, url, func(ctx context.Context, s *Session, rec *RunRecord) error {
		var err error
		records, err = a.extractor.Extract(ctx, s, locators)
		rec.Records = len(records)
		return err
	})
	if err != nil {
		return nil, err
	}
	a.observeRecords(len(records))
	a.cacheSet(ctx, key, records)
	return records, nil
}

// ExtractStructuredMany extracts the same locators from several pages in
// parallel, each in its own session. Results keep input order; a page
// failure is reported in its PageRecords and does not stop the others.
func (a *Automation) ExtractStructuredMany(ctx context.Context, urls []string, locators LocatorMap) ([]PageRecords, error) {
	if err := locators.Validate(); err != nil {
		return nil, err
	}
	out := make([]PageRecords, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	if a.config.BatchConcurrency > 0 {
		g.SetLimit(a.config.BatchConcurrency)
	}
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			records, err := a.ExtractStructured(gctx, u, locators)
			out[i] = PageRecords{URL: u, Records: records, Error: ToError(err)}
			if records == nil {
				out[i].Records = []Record{}
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, ctx.Err()
}

// do runs fn inside a scoped session with tracing, metrics and run history.
func (a *Automation) do(ctx context.Context, op, url string, fn func(context.Context, *Session, *RunRecord) error) error {
	rec := &RunRecord{
		ID:        uuid.NewString(),
		Operation: op,
		URL:       url,
		Provider:  a.provider.Name(),
		StartedAt: time.Now(),
	}
	ctx = types.WithRunID(ctx, rec.ID)
	ctx, span := a.tracer.Start(ctx, "browser."+op,
		trace.WithAttributes(
			attribute.String("pageflow.run_id", rec.ID),
			attribute.String("pageflow.provider", rec.Provider),
			attribute.String("url.full", url),
		))
	defer span.End()

	opts := SessionOptions{
		NavigationTimeout: a.config.NavigationTimeout,
		Logger:            a.logger.With(zap.String("run_id", rec.ID)),
		OnClose: func(s *Session, _ error) {
			if a.observer != nil {
				a.observer.ObserveSessionClosed(s.Provider(), time.Since(s.opened))
			}
		},
	}
	err := WithSession(ctx, a.provider, url, opts, func(s *Session) error {
		rec.SessionID = s.ID()
		span.SetAttributes(attribute.String("pageflow.session_id", s.ID()))
		if a.observer != nil {
			a.observer.ObserveSessionOpened(s.Provider())
		}
		return fn(types.WithSessionID(ctx, s.ID()), s, rec)
	})

	rec.Duration = time.Since(rec.StartedAt)
	rec.Status = "success"
	if err != nil {
		rec.Status = "error"
		te := ToError(err)
		rec.ErrorCode = string(te.Code)
		rec.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(te.Code))
		a.logger.Warn("operation failed",
			zap.String("operation", op),
			zap.String("url", url),
			zap.String("run_id", rec.ID),
			zap.String("error_code", rec.ErrorCode),
			zap.Error(err),
		)
	} else {
		span.SetStatus(codes.Ok, "")
		a.logger.Debug("operation complete",
			zap.String("operation", op),
			zap.String("url", url),
			zap.Duration("duration", rec.Duration),
		)
	}

	if a.observer != nil {
		a.observer.ObserveOperation(op, rec.Provider, rec.Status, rec.Duration)
	}
	if a.calls != nil {
		a.calls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("status", rec.Status),
		))
	}
	a.record(ctx, rec)
	return err
}

func (a *Automation) record(ctx context.Context, rec *RunRecord) {
	if a.recorder == nil {
		return
	}
	// 记录失败不影响调用结果；调用方取消后仍需落库
	if err := a.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		a.logger.Warn("record run failed", zap.String("run_id", rec.ID), zap.Error(err))
	}
}

func (a *Automation) recordCached(ctx context.Context, op, url string, records int) {
	a.record(ctx, &RunRecord{
		ID:        uuid.NewString(),
		Operation: op,
		URL:       url,
		Provider:  a.provider.Name(),
		Status:    "success",
		Records:   records,
		Cached:    true,
		StartedAt: time.Now(),
	})
}

func (a *Automation) observeRecords(n int) {
	if a.observer != nil {
		a.observer.ObserveRecords(n)
	}
}

func (a *Automation) cacheGet(ctx context.Context, op, key string, dest any) bool {
	if a.cache == nil {
		return false
	}
	err := a.cache.GetJSON(ctx, key, dest)
	if a.observer != nil {
		a.observer.ObserveCache(op, err == nil)
	}
	if err != nil {
		a.logger.Debug("result cache miss", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (a *Automation) cacheSet(ctx context.Context, key string, value any) {
	if a.cache == nil {
		return
	}
	if err := a.cache.SetJSON(ctx, key, value, a.config.CacheTTL); err != nil {
		a.logger.Warn("result cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// CacheKeyPrefix namespaces every result cache key.
const CacheKeyPrefix = "pageflow:"

func cacheKey(op string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return CacheKeyPrefix + op + ":" + hex.EncodeToString(h.Sum(nil))
}

func locatorKey(m LocatorMap) string {
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

// IsNavigationError reports whether err carries a *NavigationError.
func IsNavigationError(err error) bool {
	var nav *NavigationError
	return errors.As(err, &nav)
}
