package llm

import (
	"context"

	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// RateLimitFallback sends every request to the primary client and retries
// once on the fallback only when the primary refused with a rate limit.
type RateLimitFallback struct {
	primary  Client
	fallback Client
	logger   *logging.Logger
}

// NewRateLimitFallback wraps primary. A nil fallback disables the retry.
func NewRateLimitFallback(primary, fallback Client, logger *logging.Logger) *RateLimitFallback {
	if primary == nil {
		panic("llm: primary client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RateLimitFallback{primary: primary, fallback: fallback, logger: logger}
}

func (c *RateLimitFallback) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if c.fallback == nil || !IsRateLimited(err) {
		return Response{}, err
	}

	c.logger.Warn("primary model rate limited, using fallback model", "error", err.Error())
	resp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback model failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return Response{}, fallbackErr
	}
	return resp, nil
}
