package browser

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Limiter 限制同时存活的浏览器实例数量
type Limiter struct {
	sem     *semaphore.Weighted
	max     int64
	active  atomic.Int64
	waiting atomic.Int64

	closeCtx  context.Context
	closeFn   context.CancelFunc
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewLimiter 创建限流器，max <= 0 表示不限制
func NewLimiter(max int, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Limiter{
		max:    int64(max),
		logger: logger.With(zap.String("component", "session_limiter")),
	}
	if max > 0 {
		l.sem = semaphore.NewWeighted(int64(max))
	}
	l.closeCtx, l.closeFn = context.WithCancel(context.Background())
	return l
}

// Acquire 获取一个实例槽位，返回的 release 必须且只能调用一次（重复调用无副作用）
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if l.closeCtx.Err() != nil {
		return nil, ErrLimiterClosed
	}

	if l.sem != nil {
		// Close 会唤醒所有等待者
		waitCtx, cancel := context.WithCancel(ctx)
		stop := context.AfterFunc(l.closeCtx, cancel)
		l.waiting.Add(1)
		err = l.sem.Acquire(waitCtx, 1)
		l.waiting.Add(-1)
		stop()
		cancel()
		if err != nil {
			if l.closeCtx.Err() != nil && ctx.Err() == nil {
				return nil, ErrLimiterClosed
			}
			return nil, err
		}
	}

	l.active.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.active.Add(-1)
			if l.sem != nil {
				l.sem.Release(1)
			}
		})
	}, nil
}

// Stats 返回当前占用和等待数量
func (l *Limiter) Stats() (active, waiting int) {
	return int(l.active.Load()), int(l.waiting.Load())
}

// Max 返回上限，0 表示不限制
func (l *Limiter) Max() int {
	if l.max < 0 {
		return 0
	}
	return int(l.max)
}

// Close 关闭限流器，等待中的 Acquire 返回 ErrLimiterClosed；已发放的槽位仍可正常释放
func (l *Limiter) Close() error {
	l.closeOnce.Do(func() {
		l.closeFn()
		active, _ := l.Stats()
		l.logger.Info("session limiter closed", zap.Int("active", active))
	})
	return nil
}

// Wrap 返回一个受限的 Provider：Launch 占用槽位，实例 Close 时归还
func (l *Limiter) Wrap(p Provider) Provider {
	return &limitedProvider{Provider: p, limiter: l}
}

type limitedProvider struct {
	Provider
	limiter *Limiter
}

func (p *limitedProvider) Launch(ctx context.Context) (Instance, error) {
	release, err := p.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	inst, err := p.Provider.Launch(ctx)
	if err != nil {
		release()
		return nil, err
	}
	return &limitedInstance{Instance: inst, release: release}, nil
}

type limitedInstance struct {
	Instance
	release func()
}

func (i *limitedInstance) Close() error {
	defer i.release()
	return i.Instance.Close()
}
