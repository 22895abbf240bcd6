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
package eod

import (
	"context"
	"fmt"
	"time"

	"github.com/penny-vault/import-nse/nse"
	"github.com/rs/zerolog/log"
)

// actionsWindowDays is how far forward announcements are requested; the
// cache is considered fresh for one day less, so consecutive windows
// overlap by a day.
const (
	actionsWindowDays = 8
	actionsExpiryDays = 7
)

// ActionsCache keeps corporate-action announcements per market segment in
// the cursor document, refreshed on a rolling expiry window.
type ActionsCache struct {
	cursor  *Cursor
	fetcher Fetcher
	retry   nse.RetryPolicy
}

func NewActionsCache(cursor *Cursor, fetcher Fetcher, retry nse.RetryPolicy) *ActionsCache {
	return &ActionsCache{cursor: cursor, fetcher: fetcher, retry: retry}
}

// RefreshIfExpired refetches a segment's announcements when the sync date
// has reached the cached window's expiry. A first-ever fetch requests from
// the sync date forward.
func (a *ActionsCache) RefreshIfExpired(ctx context.Context, segment nse.Segment, date time.Time) error {
	_, expiryStr := a.cursor.ActionsFor(segment)

	if expiryStr != "" {
		expiry, err := time.Parse(DateFormat, expiryStr)
		if err != nil {
			return fmt.Errorf("actions expiry for %s: %w", segment, err)
		}
		if date.Before(expiry) {
			return nil
		}
	}

	var actions []nse.CorporateAction
	err := a.retry.Do(ctx, func() error {
		var err error
		actions, err = a.fetcher.Actions(ctx, segment, date, date.AddDate(0, 0, actionsWindowDays))
		return err
	})
	if err != nil {
		return err
	}

	a.cursor.SetActions(segment, actions, date.AddDate(0, 0, actionsExpiryDays))
	log.Info().
		Str("Segment", string(segment)).
		Int("NumActions", len(actions)).
		Msg("corporate actions updated")

	return a.cursor.Save()
}

// Actions returns the cached announcements for a segment.
func (a *ActionsCache) Actions(segment nse.Segment) []nse.CorporateAction {
	actions, _ := a.cursor.ActionsFor(segment)
	return actions
}
