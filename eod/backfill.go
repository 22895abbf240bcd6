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
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/penny-vault/import-nse/nse"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// Backfill downloads historical reports for every weekday in [from, to] and
// writes each day under its own directory, dataDir/backfill/<date>. Days are
// independent, so they fan out across workers; the shared rate limiter in
// the fetcher keeps the exchange happy. Backfill never touches the daily
// records, the cursor, or retention.
//
// Holidays are not filtered up front. A holiday's missing report comes back
// as a fetch error and the day is skipped with a warning, the same as any
// report the exchange no longer serves.
func Backfill(ctx context.Context, fetcher Fetcher, retry nse.RetryPolicy, dataDir string, from, to time.Time, workers int) error {
	if workers <= 0 {
		workers = 4
	}
	from = midnight(from)
	to = midnight(to)
	if to.Before(from) {
		return fmt.Errorf("backfill range is reversed: %s to %s",
			from.Format(DateFormat), to.Format(DateFormat))
	}

	var days []time.Time
	for dt := from; !dt.After(to); dt = dt.AddDate(0, 0, 1) {
		if isWeekend(dt) {
			continue
		}
		days = append(days, dt)
	}

	log.Info().
		Str("From", from.Format(DateFormat)).
		Str("To", to.Format(DateFormat)).
		Int("NumDays", len(days)).
		Int("NumWorkers", workers).
		Msg("starting backfill")

	bar := progressbar.Default(int64(len(days)))
	jobs := make(chan time.Time)
	var failed int64
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dt := range jobs {
				if err := backfillDay(ctx, fetcher, retry, dataDir, dt); err != nil {
					log.Warn().
						Str("OriginalError", err.Error()).
						Str("EventDate", dt.Format(DateFormat)).
						Msg("backfill day skipped")
					atomic.AddInt64(&failed, 1)
				}
				bar.Add(1)
			}
		}()
	}

	for _, dt := range days {
		select {
		case jobs <- dt:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	log.Info().
		Int64("NumFailed", atomic.LoadInt64(&failed)).
		Int("NumDays", len(days)).
		Msg("backfill complete")
	return nil
}

// backfillDay fetches one day's reports and writes its rows under a
// directory owned exclusively by this day.
func backfillDay(ctx context.Context, fetcher Fetcher, retry nse.RetryPolicy, dataDir string, dt time.Time) error {
	var prices []nse.PriceRow
	if err := retry.Do(ctx, func() error {
		var err error
		prices, err = fetcher.Price(ctx, dt)
		return err
	}); err != nil {
		return err
	}

	// Historical delivery reports occasionally 404; the day's price data is
	// still worth keeping.
	var deliveries []nse.DeliveryRow
	if err := retry.Do(ctx, func() error {
		var err error
		deliveries, err = fetcher.Delivery(ctx, dt)
		return err
	}); err != nil {
		log.Warn().
			Str("OriginalError", err.Error()).
			Str("EventDate", dt.Format(DateFormat)).
			Msg("no delivery report for backfill day")
		deliveries = nil
	}

	dayDir := filepath.Join(dataDir, "backfill", dt.Format(DateFormat))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return err
	}

	registry, err := LoadRegistry(filepath.Join(dayDir, "isin.csv"), dayDir)
	if err != nil {
		return err
	}

	ingestion := NewIngestion(dayDir, registry, NopHook{}, false)
	_, err = ingestion.Ingest(dt, prices, deliveries)
	return err
}
