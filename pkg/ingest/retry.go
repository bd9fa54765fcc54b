// Copyright 2026 Lectern Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/lectern-ai/lectern/pkg/config"
)

// jitterFactor randomizes backoff delays to avoid thundering herds.
const jitterFactor = 0.1

// retryablePatterns are error substrings that indicate transient
// failures worth retrying.
var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"rate limit",
	"429",
	"500",
	"502",
	"503",
	"504",
	"temporarily unavailable",
	"too many requests",
}

// RetryError reports an operation that failed after all attempts.
type RetryError struct {
	Operation string
	Attempts  int
	LastError error
}

// Error implements the error interface.
func (e *RetryError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.LastError)
}

// Unwrap returns the underlying error.
func (e *RetryError) Unwrap() error {
	return e.LastError
}

// Retryer retries transient failures with exponential backoff.
type Retryer struct {
	cfg config.RetryConfig
}

// NewRetryer creates a retryer from config.
func NewRetryer(cfg config.RetryConfig) *Retryer {
	cfg.SetDefaults()
	return &Retryer{cfg: cfg}
}

// DoWithResult runs fn until it succeeds, returns a non-retryable
// error, or exhausts the configured attempts.
func DoWithResult[T any](ctx context.Context, r *Retryer, operation string, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		var err error
		result, err = fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return result, err
		}
		if attempt >= r.cfg.MaxAttempts {
			break
		}

		delay := r.calculateDelay(attempt)
		slog.Debug("Retrying operation",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", r.cfg.MaxAttempts,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}

	return result, &RetryError{
		Operation: operation,
		Attempts:  r.cfg.MaxAttempts,
		LastError: lastErr,
	}
}

// Do runs an operation with no return value.
func (r *Retryer) Do(ctx context.Context, operation string, fn func() error) error {
	_, err := DoWithResult(ctx, r, operation, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// isRetryable checks if an error should be retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var retryErr *RetryError
	if errors.As(err, &retryErr) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// calculateDelay computes exponential backoff with jitter, clamped to
// the configured maximum.
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt-1))) * r.cfg.BaseDelay

	jitter := time.Duration(rand.Float64() * float64(delay) * jitterFactor)
	if rand.Float64() < 0.5 {
		delay -= jitter
	} else {
		delay += jitter
	}

	if delay > r.cfg.MaxDelay {
		delay = r.cfg.MaxDelay
	}
	return delay
}
