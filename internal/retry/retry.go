package retry

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/FranLegon/drive-web/internal/logger"
)

// Policy controls how many attempts are made and how long to wait between them.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Default is used for idempotent Drive reads.
var Default = Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}

// Do retries fn with exponential backoff and jitter while it returns a
// retryable error. It stops early when ctx is done.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !Retryable(err) || attempt == p.MaxAttempts {
			return err
		}

		delay := p.BaseDelay * (1 << (attempt - 1))
		if half := int64(delay / 2); half > 0 {
			delay += time.Duration(rand.Int63n(half))
		}
		logger.WithContext(ctx).Warn("retrying drive call",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// Retryable reports whether err is a transient Drive API failure: rate limiting
// or a server-side error.
func Retryable(err error) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}
	return gErr.Code == http.StatusTooManyRequests || gErr.Code >= http.StatusInternalServerError
}
