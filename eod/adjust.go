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
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/import-nse/nse"
	"github.com/rs/zerolog/log"
)

// Announcement subjects are free text. A split reads like
// "Face Value Split (Sub-Division) - From Rs 10/- Per Share To Rs 2/- Per
// Share"; a bonus like "Bonus 1:2". Many announcements carry neither.
var (
	splitRegex = regexp.MustCompile(`(\d+\.?\d*)[\/\- a-z\.]+(\d+\.?\d*)`)
	bonusRegex = regexp.MustCompile(`(\d+) ?: ?(\d+)`)
)

// Bounds for the post-adjustment continuity check. A correctly parsed ratio
// leaves the close nearly continuous across the ex-date.
const (
	sanityRatioLow  = 0.67
	sanityRatioHigh = 1.5
)

// ParseSplitFactor extracts old/new face values from a split subject line.
// ok is false when the text carries no parseable ratio; that is routine, not
// an error.
func ParseSplitFactor(subject string) (float64, bool) {
	m := splitRegex.FindStringSubmatch(strings.ToLower(subject))
	if m == nil {
		return 0, false
	}

	oldFace, err1 := strconv.ParseFloat(m[1], 64)
	newFace, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil || newFace == 0 {
		return 0, false
	}

	return oldFace / newFace, true
}

// ParseBonusFactor extracts an N:M bonus ratio, returning 1 + N/M.
func ParseBonusFactor(subject string) (float64, bool) {
	m := bonusRegex.FindStringSubmatch(subject)
	if m == nil {
		return 0, false
	}

	bonus, err1 := strconv.ParseFloat(m[1], 64)
	held, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil || held == 0 {
		return 0, false
	}

	return 1 + bonus/held, true
}

// AdjustRows rescales Open/High/Low/Close of every row before exDate by
// 1/factor with 0.05 tick rounding, leaving volume and trade columns alone.
// When no row sits exactly at exDate the symbol was not trading when the
// action took effect, and the record is returned unchanged.
func AdjustRows(rows []Row, factor float64, exDate time.Time) ([]Row, bool) {
	idx := -1
	for i, r := range rows {
		if r.Date.Equal(exDate) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return rows, false
	}

	for i := 0; i < idx; i++ {
		rows[i].Open = roundTick(rows[i].Open / factor)
		rows[i].High = roundTick(rows[i].High / factor)
		rows[i].Low = roundTick(rows[i].Low / factor)
		rows[i].Close = roundTick(rows[i].Close / factor)
	}

	return rows, true
}

// Adjuster applies split and bonus corporate actions to historical records.
type Adjuster struct {
	dailyDir string
}

func NewAdjuster(dailyDir string) *Adjuster {
	return &Adjuster{dailyDir: dailyDir}
}

// apply folds one action's factor into the batch. Records enter the batch on
// first touch; later actions on the same symbol compose on the in-memory
// rows so sequential tick rounding is preserved.
func (a *Adjuster) apply(batch map[string][]Row, symbol string, factor float64, exDate time.Time) error {
	path := RecordPath(a.dailyDir, symbol)

	rows, ok := batch[path]
	if !ok {
		var err error
		rows, err = LoadRecord(path)
		if os.IsNotExist(err) {
			log.Warn().Str("Symbol", symbol).Msg("no record to adjust")
			return nil
		}
		if err != nil {
			return err
		}
	}

	adjusted, found := AdjustRows(rows, factor, exDate)
	if !found {
		return nil
	}
	batch[path] = adjusted
	return nil
}

// ApplyActions scans announcement sets for splits and bonuses effective on
// date and adjusts the affected records. All adjustments are computed into
// an in-memory batch first and committed together; any computation error
// discards the whole batch so no symbol is half-adjusted.
func (a *Adjuster) ApplyActions(date time.Time, actionSets ...[]nse.CorporateAction) error {
	exDateStr := date.Format(ExchangeDateFormat)
	batch := map[string][]Row{}

	for _, actions := range actionSets {
		for _, act := range actions {
			if !tradeableSeries[act.Series] || act.ExDate != exDateStr {
				continue
			}

			symbol := act.Symbol
			if smeSeries[act.Series] {
				symbol += "_sme"
			}
			purpose := strings.ToLower(act.Subject)

			if strings.Contains(purpose, "split") || strings.Contains(purpose, "splt") {
				if factor, ok := ParseSplitFactor(purpose); ok {
					if err := a.apply(batch, symbol, factor, date); err != nil {
						return err
					}
					log.Info().Str("Symbol", symbol).Str("Subject", act.Subject).Msg("split adjustment")
				} else {
					log.Warn().Str("Symbol", symbol).Str("Subject", act.Subject).Msg("split subject not matched")
				}
			}

			if strings.Contains(purpose, "bonus") {
				if factor, ok := ParseBonusFactor(purpose); ok {
					if err := a.apply(batch, symbol, factor, date); err != nil {
						return err
					}
					log.Info().Str("Symbol", symbol).Str("Subject", act.Subject).Msg("bonus adjustment")
				} else {
					log.Warn().Str("Symbol", symbol).Str("Subject", act.Subject).Msg("bonus subject not matched")
				}
			}
		}
	}

	// Commit. Everything computed cleanly, so persist the batch as a unit.
	for path, rows := range batch {
		a.sanityCheck(path, rows, date)
		if err := WriteRecord(path, rows); err != nil {
			return err
		}
	}

	if len(batch) > 0 {
		log.Info().Int("NumRecords", len(batch)).Msg("adjustments committed")
	}
	return nil
}

// sanityCheck compares the close just after the ex-date against the close
// just before. A ratio far from 1 usually means a mis-parsed ratio; the sync
// continues, but the record needs manual review.
func (a *Adjuster) sanityCheck(path string, rows []Row, exDate time.Time) {
	for i, r := range rows {
		if !r.Date.Equal(exDate) {
			continue
		}
		if i == 0 || rows[i-1].Close == 0 {
			return
		}

		ratio := r.Close / rows[i-1].Close
		if ratio < sanityRatioLow || ratio > sanityRatioHigh {
			log.Warn().
				Str("Record", path).
				Float64("Ratio", ratio).
				Str("EventDate", exDate.Format(DateFormat)).
				Msg("post-adjustment close jump outside expected bounds, review manually")
		}
		return
	}
}
