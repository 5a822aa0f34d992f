package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how hard a stage tries before surfacing an error.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// SchemaRetries is how many extra generations a schema violation earns.
	SchemaRetries int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		SchemaRetries:   1,
	}
}

// retryable is implemented by backend errors that know whether a repeat can help.
type retryable interface {
	Retryable() bool
}

// withRetry runs op with exponential backoff. Errors that declare themselves
// non-retryable stop the loop early. Anything left is ErrUpstreamUnavailable.
func withRetry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	if p.MaxTries == 0 {
		p.MaxTries = 1
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	res, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err == nil {
			return v, nil
		}
		var r retryable
		if errors.As(err, &r) && !r.Retryable() {
			return v, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.MaxTries))
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return res, nil
}
