package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/pageflow/browser"
	"github.com/BaSui01/pageflow/testutil"
	"github.com/BaSui01/pageflow/testutil/fixtures"
	"github.com/BaSui01/pageflow/testutil/mocks"
)

func TestAcquire_Success(t *testing.T) {
	ctx := testutil.TestContext(t)
	p := mocks.NewMockProvider().WithPage(fixtures.SearchURL, fixtures.SearchPage())

	s, err := browser.Acquire(ctx, p, fixtures.SearchURL, browser.SessionOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, fixtures.SearchURL, s.URL())
	assert.Equal(t, "mock", s.Provider())
	assert.Equal(t, 1, p.Live())

	require.NoError(t, s.Release())
	require.NoError(t, s.Release())
	assert.Equal(t, 0, p.Live())
	assert.Equal(t, 1, p.Closes(), "release closes exactly once")
}

func TestAcquire_UnreachableURL(t *testing.T) {
	ctx := testutil.TestContext(t)
	p := mocks.NewMockProvider()

	s, err := browser.Acquire(ctx, p, "https://nowhere.test", browser.SessionOptions{})
	require.Error(t, err)
	assert.Nil(t, s)

	var navErr *browser.NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, "https://nowhere.test", navErr.URL)
	assert.ErrorIs(t, err, mocks.ErrUnreachable)
	assert.Equal(t, p.Launches(), p.Closes())
	assert.Equal(t, 0, p.Live())
}

func TestAcquire_LaunchFailure(t *testing.T) {
	ctx := testutil.TestContext(t)
	p := mocks.NewMockProvider().WithLaunchError(errors.New("no chrome"))

	_, err := browser.Acquire(ctx, p, fixtures.SearchURL, browser.SessionOptions{})
	var navErr *browser.NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, 0, p.Launches())
	assert.Equal(t, 0, p.Closes())
}

func TestAcquire_NavigationTimeout(t *testing.T) {
	ctx := testutil.TestContext(t)
	p := mocks.NewMockProvider().
		WithPage(fixtures.SearchURL, fixtures.SearchPage()).
		WithGotoDelay(time.Second)

	start := time.Now()
	_, err := browser.Acquire(ctx, p, fixtures.SearchURL, browser.SessionOptions{NavigationTimeout: 30 * time.Millisecond})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, browser.IsNavigationError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, p.Launches(), p.Closes())
}

func TestWithSession_ReleasesOnErrorAndPanic(t *testing.T) {
	ctx := testutil.TestContext(t)
	p := mocks.NewMockProvider().WithPage(fixtures.SearchURL, fixtures.SearchPage())

	boom := errors.New("delegate failed")
	err := browser.WithSession(ctx, p, fixtures.SearchURL, browser.SessionOptions{}, func(*browser.Session) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, p.Live())

	assert.Panics(t, func() {
		_ = browser.WithSession(ctx, p, fixtures.SearchURL, browser.SessionOptions{}, func(*browser.Session) error {
			panic("delegate panicked")
		})
	})
	assert.Equal(t, 0, p.Live())
	assert.Equal(t, p.Launches(), p.Closes())
}

func TestWithSession_ReportsCloseFailure(t *testing.T) {
	ctx := testutil.TestContext(t)
	closeErr := errors.New("close failed")
	p := mocks.NewMockProvider().
		WithPage(fixtures.SearchURL, fixtures.SearchPage()).
		WithCloseError(closeErr)

	closed := 0
	opts := browser.SessionOptions{OnClose: func(_ *browser.Session, err error) {
		closed++
		assert.ErrorIs(t, err, closeErr)
	}}
	err := browser.WithSession(ctx, p, fixtures.SearchURL, opts, func(*browser.Session) error { return nil })
	assert.ErrorIs(t, err, closeErr)
	assert.Equal(t, 1, closed)
}
