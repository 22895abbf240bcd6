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
	"time"

	"github.com/penny-vault/import-nse/nse"
	"github.com/rs/zerolog/log"
)

// benchmarkIndex drives the valuation alert.
const benchmarkIndex = "Nifty 50"

// UpdateIndexRecords appends the day's values for the watched indices to
// their records. Index rows never carry trade or delivery figures, so those
// columns stay blank. A watched index missing from the snapshot is skipped
// with a warning; index composition changes over time.
func UpdateIndexRecords(dailyDir string, date time.Time, rows []nse.IndexRow, watch []string) error {
	byName := make(map[string]nse.IndexRow, len(rows))
	for _, r := range rows {
		byName[r.Name] = r
	}

	for _, name := range watch {
		idx, ok := byName[name]
		if !ok {
			log.Warn().Str("Index", name).Msg("index missing from snapshot")
			continue
		}

		row := Row{
			Date:   date,
			Open:   idx.Open,
			High:   idx.High,
			Low:    idx.Low,
			Close:  idx.Close,
			Volume: idx.Volume,
		}
		if err := AppendRow(RecordPath(dailyDir, name), row); err != nil {
			return err
		}
	}

	if bench, ok := byName[benchmarkIndex]; ok && (bench.PE >= 25 || bench.PE <= 20) {
		log.Warn().
			Float64("PE", bench.PE).
			Str("Index", benchmarkIndex).
			Msg("benchmark P/E outside its usual band")
	}

	log.Info().Str("EventDate", date.Format(DateFormat)).Msg("index sync complete")
	return nil
}
