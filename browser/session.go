package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionOptions controls how a session is acquired.
type SessionOptions struct {
	// NavigationTimeout bounds launch, page creation and the initial
	// navigation. Zero means only the caller's context applies.
	NavigationTimeout time.Duration
	// WaitCondition defaults to WaitNetworkIdle.
	WaitCondition WaitCondition
	// OnClose runs once after the instance has been closed.
	OnClose func(s *Session, err error)
	Logger  *zap.Logger
}

// Session is one browser instance with one page, owned by a single caller.
type Session struct {
	id       string
	url      string
	provider string
	instance Instance
	page     Page
	opened   time.Time
	onClose  func(*Session, error)
	logger   *zap.Logger

	once     sync.Once
	closeErr error
}

// Acquire launches an instance, opens a page and navigates to url, blocking
// until the page settles. Every failure is returned as *NavigationError and
// any instance already launched is closed first.
func Acquire(ctx context.Context, provider Provider, url string, opts SessionOptions) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	wait := opts.WaitCondition
	if wait == "" {
		wait = WaitNetworkIdle
	}

	if opts.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.NavigationTimeout)
		defer cancel()
	}

	inst, err := provider.Launch(ctx)
	if err != nil {
		return nil, &NavigationError{URL: url, Err: fmt.Errorf("launch %s: %w", provider.Name(), err)}
	}

	fail := func(step string, cause error) (*Session, error) {
		if cerr := inst.Close(); cerr != nil {
			logger.Warn("close instance after failed acquire", zap.String("url", url), zap.Error(cerr))
		}
		return nil, &NavigationError{URL: url, Err: fmt.Errorf("%s: %w", step, cause)}
	}

	page, err := inst.NewPage(ctx)
	if err != nil {
		return fail("new page", err)
	}
	if err := page.Goto(ctx, url, wait); err != nil {
		return fail("goto", err)
	}

	s := &Session{
		id:       uuid.NewString(),
		url:      url,
		provider: provider.Name(),
		instance: inst,
		page:     page,
		opened:   time.Now(),
		onClose:  opts.OnClose,
	}
	s.logger = logger.With(zap.String("session_id", s.id))
	s.logger.Debug("session acquired", zap.String("url", url), zap.String("provider", s.provider))
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// URL returns the URL the session was acquired for.
func (s *Session) URL() string { return s.url }

// Provider returns the name of the provider that launched the instance.
func (s *Session) Provider() string { return s.provider }

// Page returns the session's page.
func (s *Session) Page() Page { return s.page }

// Release closes the instance. Only the first call closes; later calls
// return the same result.
func (s *Session) Release() error {
	s.once.Do(func() {
		s.closeErr = s.instance.Close()
		if s.closeErr != nil {
			s.logger.Warn("session close failed", zap.Error(s.closeErr))
		} else {
			s.logger.Debug("session released", zap.Duration("lifetime", time.Since(s.opened)))
		}
		if s.onClose != nil {
			s.onClose(s, s.closeErr)
		}
	})
	return s.closeErr
}

// Screenshot captures the page into a freshly named artifact.
func (s *Session) Screenshot(ctx context.Context, namer *ArtifactNamer, fullPage bool) (*Artifact, error) {
	if err := namer.EnsureDir(); err != nil {
		return nil, err
	}
	name, path := namer.Next()
	if err := s.page.Screenshot(ctx, path, fullPage); err != nil {
		return nil, err
	}

	art := &Artifact{
		Name:        name,
		Path:        path,
		ContentType: "image/png",
		FullPage:    fullPage,
		CreatedAt:   time.Now(),
	}
	if fi, err := os.Stat(path); err == nil {
		art.Size = fi.Size()
	} else if !errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("stat artifact", zap.String("path", path), zap.Error(err))
	}
	return art, nil
}

// WithSession acquires a session, runs fn and releases the session on every
// exit path, panics included. A release failure is logged and only returned
// when fn itself succeeded.
func WithSession(ctx context.Context, provider Provider, url string, opts SessionOptions, fn func(*Session) error) (err error) {
	s, err := Acquire(ctx, provider, url, opts)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := s.Release(); rerr != nil && err == nil {
			err = fmt.Errorf("release session: %w", rerr)
		}
	}()
	return fn(s)
}
