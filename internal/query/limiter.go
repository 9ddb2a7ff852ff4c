package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"telegram-alerts-go/alert"
)

const defaultConcurrency = 64

// limiter bounds the number of fetches running at once. A panicking fetch
// is turned into an error so a shared flight always settles.
type limiter struct {
	tokens chan struct{}
}

func newLimiter(n int) *limiter {
	if n <= 0 {
		zap.S().Warnf("fetch concurrency ≤ 0 set %d", defaultConcurrency)
		n = defaultConcurrency
	}
	return &limiter{tokens: make(chan struct{}, n)}
}

func (l *limiter) run(ctx context.Context, name string, f func(ctx context.Context) (any, error)) (v any, err error) {
	l.tokens <- struct{}{}
	defer func() { <-l.tokens }()

	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorf(alert.Prefix("fetch panic: %s: %v"), name, r)
			v, err = nil, fmt.Errorf("fetch %s panicked: %v", name, r)
		}
	}()

	zap.S().Debugw("fetch started", "key", name)
	v, err = f(ctx)
	zap.S().Debugw("fetch finished", "key", name, "error", err)
	return v, err
}
