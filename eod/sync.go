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
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/penny-vault/import-nse/nse"
	"github.com/rs/zerolog/log"
)

// Config collects everything the sync needs, threaded explicitly instead of
// read from ambient state.
type Config struct {
	DataDir            string
	CutoffHour         int
	RetentionDays      int
	PendingMaxDays     int
	SpecialSessionDesc string
	Indices            []string
	HookName           string
	ParquetFile        string
	DatabaseURL        string
	Progress           bool
}

// Syncer drives the daily cycle: advance the calendar, refresh caches,
// fetch reports, merge rows, apply corporate actions, reconcile pending
// deliveries, prune, commit the cursor. Strictly sequential per trading day;
// a failed cycle rolls back and stops without advancing the cursor.
type Syncer struct {
	cfg      Config
	fetcher  Fetcher
	retry    nse.RetryPolicy
	cursor   *Cursor
	calendar *Calendar
	actions  *ActionsCache
	registry *Registry
	adjuster *Adjuster
	pending  *PendingReconciler
	hook     Hook

	dailyDir string
}

// NewSyncer wires the components against the data directory, creating its
// layout on first run.
func NewSyncer(cfg Config, fetcher Fetcher, retry nse.RetryPolicy) (*Syncer, error) {
	dailyDir := filepath.Join(cfg.DataDir, "daily")
	if err := os.MkdirAll(dailyDir, 0o755); err != nil {
		return nil, err
	}

	cursor, err := LoadCursor(filepath.Join(cfg.DataDir, "cursor.json"))
	if err != nil {
		return nil, err
	}

	registry, err := LoadRegistry(filepath.Join(cfg.DataDir, "isin.csv"), dailyDir)
	if err != nil {
		return nil, err
	}

	hook, err := HookByName(cfg.HookName)
	if err != nil {
		return nil, err
	}

	return &Syncer{
		cfg:      cfg,
		fetcher:  fetcher,
		retry:    retry,
		cursor:   cursor,
		calendar: NewCalendar(cursor, fetcher, retry, cfg.CutoffHour, cfg.SpecialSessionDesc),
		actions:  NewActionsCache(cursor, fetcher, retry),
		registry: registry,
		adjuster: NewAdjuster(dailyDir),
		pending:  NewPendingReconciler(dailyDir, fetcher, retry, cursor, cfg.PendingMaxDays),
		hook:     hook,
		dailyDir: dailyDir,
	}, nil
}

// Run syncs every outstanding trading day up to the calendar stop. On a
// cycle failure the appended rows are rolled back, the cursor stays at its
// pre-cycle value and the error is returned; the next invocation retries
// the same date from scratch.
func (s *Syncer) Run(ctx context.Context) error {
	for s.calendar.Advance() {
		holiday, err := s.calendar.IsHoliday(ctx)
		if err != nil {
			s.hook.OnError(err)
			return err
		}
		if holiday {
			continue
		}

		if err := s.cycle(ctx); err != nil {
			s.hook.OnError(err)
			if _, rbErr := Rollback(s.dailyDir, s.calendar.Date()); rbErr != nil {
				log.Error().Str("OriginalError", rbErr.Error()).Msg("rollback failed")
			}
			return err
		}

		s.cursor.SetDate(s.calendar.Date())
		if err := s.cursor.Save(); err != nil {
			return err
		}

		s.hook.OnCycleComplete(s.calendar.Date())
		log.Info().Str("EventDate", s.cursor.LastUpdate).Msg("cycle done")
	}

	return nil
}

// cycle performs the sync for the calendar's working date.
func (s *Syncer) cycle(ctx context.Context) error {
	date := s.calendar.Date()

	for _, segment := range []nse.Segment{nse.SegmentEquities, nse.SegmentSME} {
		if err := s.actions.RefreshIfExpired(ctx, segment, date); err != nil {
			return err
		}
	}

	var prices []nse.PriceRow
	if err := s.retry.Do(ctx, func() error {
		var err error
		prices, err = s.fetcher.Price(ctx, date)
		return err
	}); err != nil {
		return err
	}

	// The delivery report often lags the price report. An unpublished report
	// queues the date for later reconciliation instead of failing the cycle;
	// any other failure (corrupt report, parse error) stays fatal.
	var deliveries []nse.DeliveryRow
	if err := s.retry.Do(ctx, func() error {
		var err error
		deliveries, err = s.fetcher.Delivery(ctx, date)
		return err
	}); err != nil {
		if !errors.Is(err, nse.ErrReportUnavailable) {
			return err
		}
		log.Warn().
			Str("OriginalError", err.Error()).
			Str("EventDate", date.Format(DateFormat)).
			Msg("delivery report unavailable, queueing for reconciliation")
		deliveries = nil
		s.cursor.AddPending(date)
		if err := s.cursor.Save(); err != nil {
			return err
		}
	}

	var indexRows []nse.IndexRow
	if err := s.retry.Do(ctx, func() error {
		var err error
		indexRows, err = s.fetcher.Index(ctx, date)
		return err
	}); err != nil {
		return err
	}

	ingestion := NewIngestion(s.dailyDir, s.registry, s.hook, s.cfg.Progress)
	records, err := ingestion.Ingest(date, prices, deliveries)
	if err != nil {
		return err
	}

	if err := UpdateIndexRecords(s.dailyDir, date, indexRows, s.cfg.Indices); err != nil {
		return err
	}

	if err := s.adjuster.ApplyActions(date,
		s.actions.Actions(nse.SegmentEquities),
		s.actions.Actions(nse.SegmentSME)); err != nil {
		return err
	}

	if err := s.pending.Reconcile(ctx, date); err != nil {
		return err
	}

	if s.calendar.IsToday() {
		if _, err := PruneStale(s.dailyDir, time.Now(), s.cfg.RetentionDays); err != nil {
			return err
		}
	}

	// Export sinks are best-effort mirrors; the flat files remain the
	// durable store.
	if s.cfg.ParquetFile != "" {
		if err := SaveToParquet(records, s.cfg.ParquetFile); err != nil {
			log.Error().Str("OriginalError", err.Error()).Msg("parquet export failed")
		}
	}
	if s.cfg.DatabaseURL != "" {
		if err := SaveToDatabase(ctx, records, s.cfg.DatabaseURL); err != nil {
			log.Error().Str("OriginalError", err.Error()).Msg("database export failed")
		}
	}

	return nil
}
