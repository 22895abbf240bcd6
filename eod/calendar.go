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
	"strings"
	"time"

	"github.com/penny-vault/import-nse/nse"
	"github.com/rs/zerolog/log"
)

// Calendar walks the sync forward one trading day at a time and answers
// whether a date is a market holiday. The holiday table lives in the cursor
// document and is refetched when the calendar year changes or when a date
// hits a table that has not been refreshed by this process (the exchange
// announces holidays late, and withdraws them for special sessions).
type Calendar struct {
	cursor  *Cursor
	fetcher Fetcher
	retry   nse.RetryPolicy

	dt                 time.Time
	now                func() time.Time
	cutoffHour         int
	specialSessionDesc string
	refreshedHolidays  bool
}

// NewCalendar positions the calendar at the cursor's last-synced date.
func NewCalendar(cursor *Cursor, fetcher Fetcher, retry nse.RetryPolicy, cutoffHour int, specialSessionDesc string) *Calendar {
	return &Calendar{
		cursor:             cursor,
		fetcher:            fetcher,
		retry:              retry,
		dt:                 cursor.Date(),
		now:                time.Now,
		cutoffHour:         cutoffHour,
		specialSessionDesc: specialSessionDesc,
	}
}

// Date is the calendar day the current cycle targets.
func (c *Calendar) Date() time.Time {
	return c.dt
}

// IsToday reports whether the working date is the current calendar day.
func (c *Calendar) IsToday() bool {
	return c.dt.Equal(midnight(c.now()))
}

// Advance moves to the next calendar day. It returns false when that day is
// in the future, or is today before the cutoff hour when the exchange has
// not yet published its reports. Either way the caller must stop; there is
// nothing to retry.
func (c *Calendar) Advance() bool {
	now := c.now()
	today := midnight(now)
	next := c.dt.AddDate(0, 0, 1)

	if next.After(today) {
		log.Info().Msg("all up to date")
		return false
	}
	if next.Equal(today) && now.Hour() < c.cutoffHour {
		log.Info().Int("CutoffHour", c.cutoffHour).Msg("today's reports not yet published, check back later")
		return false
	}

	c.dt = next
	return true
}

// isWeekend is the fixed exchange rule: Saturday and Sunday never trade,
// regardless of the holiday table.
func isWeekend(dt time.Time) bool {
	wd := dt.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// isSpecialSession reports an exchange-declared trading window on an
// otherwise-holiday date. The annual post-market session moves every year
// and is only identifiable by its description once the holiday list is
// fetched, so the match is on description, not date.
func (c *Calendar) isSpecialSession(dt time.Time) bool {
	iso := dt.Format(DateFormat)
	for _, s := range c.cursor.SpecialSessions {
		if s == iso {
			return true
		}
	}

	if c.specialSessionDesc == "" {
		return false
	}
	desc, ok := c.cursor.Holidays[dt.Format(ExchangeDateFormat)]
	return ok && strings.Contains(strings.ToLower(desc), strings.ToLower(c.specialSessionDesc))
}

// refreshHolidays refetches the holiday table and persists it to the cursor.
func (c *Calendar) refreshHolidays(ctx context.Context) error {
	var holidays map[string]string
	err := c.retry.Do(ctx, func() error {
		var err error
		holidays, err = c.fetcher.Holidays(ctx)
		return err
	})
	if err != nil {
		return err
	}

	c.cursor.Holidays = holidays
	c.cursor.Year = c.dt.Year()
	c.refreshedHolidays = true
	log.Info().Int("Year", c.cursor.Year).Int("NumHolidays", len(holidays)).Msg("holiday list updated")

	return c.cursor.Save()
}

// IsHoliday reports whether the calendar's working date is a market holiday.
func (c *Calendar) IsHoliday(ctx context.Context) (bool, error) {
	if c.cursor.Year != c.dt.Year() || len(c.cursor.Holidays) == 0 {
		if err := c.refreshHolidays(ctx); err != nil {
			return false, err
		}
	}

	if c.isSpecialSession(c.dt) {
		log.Info().Str("EventDate", c.dt.Format(DateFormat)).Msg("special trading session")
		return false, nil
	}
	if isWeekend(c.dt) {
		return true, nil
	}

	desc, ok := c.cursor.Holidays[c.dt.Format(ExchangeDateFormat)]
	if !ok {
		return false, nil
	}

	// The table hit may be stale: a late-announced special session shows
	// up as a withdrawn or re-described holiday. Refetch once per process
	// before trusting it.
	if !c.refreshedHolidays {
		if err := c.refreshHolidays(ctx); err != nil {
			return false, err
		}
		desc, ok = c.cursor.Holidays[c.dt.Format(ExchangeDateFormat)]
		if !ok {
			return false, nil
		}
		if c.isSpecialSession(c.dt) {
			log.Info().Str("EventDate", c.dt.Format(DateFormat)).Msg("special trading session")
			return false, nil
		}
	}

	log.Info().
		Str("EventDate", c.dt.Format(DateFormat)).
		Str("Description", desc).
		Msg("market holiday")
	return true, nil
}
