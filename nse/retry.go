/*
Copyright 2022

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package nse

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy retries an operation with exponential backoff. Only errors
// classified retryable by IsRetryable are retried; any other error returns
// immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the per-request pacing the NSE archives
// tolerate: 4 attempts starting at 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Do runs op, retrying transient failures until MaxAttempts is exhausted.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			log.Warn().
				Int("Attempt", attempt).
				Dur("Delay", delay).
				Str("OriginalError", lastErr.Error()).
				Msg("retrying after transient failure")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			delay *= 2
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		err := op()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", p.MaxAttempts, lastErr)
}
