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
	"os"
	"strings"
	"time"

	"github.com/penny-vault/import-nse/nse"
	"github.com/rs/zerolog/log"
)

// PendingReconciler retries dates whose delivery report was not yet
// published when the price report was ingested. Successful refetches
// back-fill the delivery-derived columns of the already-appended rows in
// place; the one sanctioned exception to append-only records.
type PendingReconciler struct {
	dailyDir   string
	fetcher    Fetcher
	retry      nse.RetryPolicy
	cursor     *Cursor
	maxAgeDays int
}

func NewPendingReconciler(dailyDir string, fetcher Fetcher, retry nse.RetryPolicy, cursor *Cursor, maxAgeDays int) *PendingReconciler {
	if maxAgeDays <= 0 {
		maxAgeDays = 5
	}
	return &PendingReconciler{
		dailyDir:   dailyDir,
		fetcher:    fetcher,
		retry:      retry,
		cursor:     cursor,
		maxAgeDays: maxAgeDays,
	}
}

// Reconcile processes every queued date. Failures are isolated per date: a
// date that cannot be fetched or back-filled stays queued and the rest
// proceed. Dates that fall too far behind the sync date are dropped, since
// some reports are never published.
func (p *PendingReconciler) Reconcile(ctx context.Context, syncDate time.Time) error {
	queued := make([]string, len(p.cursor.PendingDeliveryDates))
	copy(queued, p.cursor.PendingDeliveryDates)

	for _, iso := range queued {
		dt, err := time.Parse(DateFormat, iso)
		if err != nil {
			log.Warn().Str("PendingDate", iso).Msg("dropping unparseable pending date")
			p.cursor.RemovePending(iso)
			continue
		}

		if syncDate.Sub(dt) > time.Duration(p.maxAgeDays)*24*time.Hour {
			log.Warn().
				Str("PendingDate", iso).
				Int("MaxAgeDays", p.maxAgeDays).
				Msg("delivery report never published, dropping pending date")
			p.cursor.RemovePending(iso)
			continue
		}

		var deliveries []nse.DeliveryRow
		err = p.retry.Do(ctx, func() error {
			var err error
			deliveries, err = p.fetcher.Delivery(ctx, dt)
			return err
		})
		if err != nil {
			log.Warn().
				Str("OriginalError", err.Error()).
				Str("PendingDate", iso).
				Msg("delivery report still unavailable")
			continue
		}

		if err := p.backfill(dt, deliveries); err != nil {
			log.Warn().
				Str("OriginalError", err.Error()).
				Str("PendingDate", iso).
				Msg("delivery back-fill failed, will retry")
			continue
		}

		p.cursor.RemovePending(iso)
		log.Info().Str("PendingDate", iso).Msg("pending delivery reconciled")
	}

	return p.cursor.Save()
}

// backfill writes the delivery-derived columns into the existing rows for
// date. Rows that already carry delivery figures, and symbols with no
// record or no row at the date, are skipped.
func (p *PendingReconciler) backfill(date time.Time, deliveries []nse.DeliveryRow) error {
	for _, d := range deliveries {
		if !tradeableSeries[d.Series] || strings.Contains(d.Symbol, "-RE") {
			continue
		}

		suffix := ""
		if smeSeries[d.Series] {
			suffix = "_sme"
		}
		path := RecordPath(p.dailyDir, d.Symbol+suffix)

		rows, err := LoadRecord(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}

		updated := false
		for i := range rows {
			if !rows[i].Date.Equal(date) || rows[i].TotalTrades != nil {
				continue
			}

			trades := d.Trades
			rows[i].TotalTrades = &trades
			if trades > 0 {
				qty := round2(float64(d.Volume) / float64(trades))
				rows[i].QtyPerTrade = &qty
			}
			dq := d.DeliveryQty
			if allDeliverySeries[d.Series] {
				dq = d.Volume
			}
			rows[i].DeliveryQty = &dq
			updated = true
			break
		}

		if updated {
			if err := WriteRecord(path, rows); err != nil {
				return err
			}
		}
	}

	return nil
}
