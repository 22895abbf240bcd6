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
	"strings"
	"time"

	"github.com/penny-vault/import-nse/nse"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// tradeableSeries are the listing classes tracked as symbol records.
// https://www.nseindia.com/market-data/legend-of-series
var tradeableSeries = map[string]bool{
	"EQ": true, "BE": true, "BZ": true, "SM": true, "ST": true,
}

// smeSeries listings share symbol names with the main board, so their files
// carry a suffix.
var smeSeries = map[string]bool{"SM": true, "ST": true}

// allDeliverySeries are trade-for-trade classes where every traded share is
// delivered; the report leaves their delivery column blank.
var allDeliverySeries = map[string]bool{"BE": true, "BZ": true}

// DayRecord pairs an appended row with its identity, for the export sinks.
type DayRecord struct {
	Symbol string
	ISIN   string
	Row    Row
}

// Ingestion merges one trading day's price and delivery reports into the
// per-symbol records. Appending is its only mutation; a failed append aborts
// the whole call and leaves cleanup to Rollback.
type Ingestion struct {
	dailyDir string
	registry *Registry
	hook     Hook
	progress bool
}

func NewIngestion(dailyDir string, registry *Registry, hook Hook, progress bool) *Ingestion {
	if hook == nil {
		hook = NopHook{}
	}
	return &Ingestion{dailyDir: dailyDir, registry: registry, hook: hook, progress: progress}
}

// deliveryKey joins the two reports. Symbol alone is ambiguous because SME
// listings share names with the main board.
type deliveryKey struct {
	symbol string
	series string
}

// Ingest appends one row per tradeable symbol in the price report, joining
// delivery figures by symbol and series when the delivery report covers it.
func (ing *Ingestion) Ingest(date time.Time, prices []nse.PriceRow, deliveries []nse.DeliveryRow) ([]DayRecord, error) {
	delivered := make(map[deliveryKey]nse.DeliveryRow, len(deliveries))
	for _, d := range deliveries {
		delivered[deliveryKey{symbol: d.Symbol, series: d.Series}] = d
	}

	var bar *progressbar.ProgressBar
	if ing.progress {
		bar = progressbar.Default(int64(len(prices)))
	}

	records := make([]DayRecord, 0, len(prices))
	appended := 0
	for _, p := range prices {
		if bar != nil {
			bar.Add(1)
		}

		if !tradeableSeries[p.Series] {
			continue
		}
		// Rights-issue temporary listings are not tracked as symbols.
		if strings.Contains(p.Symbol, "-RE") {
			continue
		}

		suffix := ""
		if smeSeries[p.Series] {
			suffix = "_sme"
		}

		symbol, err := ing.registry.Resolve(p.ISIN, p.Symbol, suffix)
		if err != nil {
			return records, err
		}

		row := Row{
			Date:   date,
			Open:   p.Open,
			High:   p.High,
			Low:    p.Low,
			Close:  p.Close,
			Volume: p.Volume,
		}
		if d, ok := delivered[deliveryKey{symbol: p.Symbol, series: p.Series}]; ok {
			row.TotalTrades = &d.Trades
			if d.Trades > 0 {
				qty := round2(float64(d.Volume) / float64(d.Trades))
				row.QtyPerTrade = &qty
			}
			dq := d.DeliveryQty
			if allDeliverySeries[p.Series] {
				dq = d.Volume
			}
			row.DeliveryQty = &dq
		}

		path := RecordPath(ing.dailyDir, symbol+suffix)
		if err := AppendRow(path, row); err != nil {
			log.Error().
				Str("OriginalError", err.Error()).
				Str("Symbol", symbol).
				Str("EventDate", date.Format(DateFormat)).
				Msg("append failed")
			return records, err
		}

		ing.hook.OnRecordUpdated(symbol+suffix, row)
		records = append(records, DayRecord{Symbol: symbol + suffix, ISIN: p.ISIN, Row: row})
		appended++
	}

	if err := ing.registry.Save(); err != nil {
		return records, err
	}

	log.Info().
		Int("NumSymbols", appended).
		Str("EventDate", date.Format(DateFormat)).
		Msg("EOD sync complete")
	return records, nil
}
