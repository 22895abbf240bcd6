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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/import-nse/nse"
)

// DateFormat is the on-disk row date format.
const DateFormat = "2006-01-02"

// ExchangeDateFormat is how the exchange formats dates in holiday lists and
// corporate-action ex-dates ("03-Jan-2024").
const ExchangeDateFormat = "02-Jan-2006"

// recordHeader is the first line of every per-symbol file. Trade and
// delivery columns stay blank for index symbols and for days whose delivery
// report has not been published yet.
const recordHeader = "Date,Open,High,Low,Close,Volume,TotalTrades,QtyPerTrade,DeliveryQty"

// ErrDataIntegrity marks corruption that must stop the sync immediately: a
// report row without a stable identifier, or a duplicate date in a record.
var ErrDataIntegrity = errors.New("data integrity violation")

// Row is one trading day in a symbol's record. TotalTrades, QtyPerTrade and
// DeliveryQty are nil when the delivery report did not cover the symbol.
type Row struct {
	Date        time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      int64
	TotalTrades *int64
	QtyPerTrade *float64
	DeliveryQty *int64
}

// Fetcher is the report-retrieval collaborator. The nse.Client satisfies it;
// tests substitute fakes.
type Fetcher interface {
	Price(ctx context.Context, date time.Time) ([]nse.PriceRow, error)
	Delivery(ctx context.Context, date time.Time) ([]nse.DeliveryRow, error)
	Index(ctx context.Context, date time.Time) ([]nse.IndexRow, error)
	Holidays(ctx context.Context) (map[string]string, error)
	Actions(ctx context.Context, segment nse.Segment, from, to time.Time) ([]nse.CorporateAction, error)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// marshal renders the row as a CSV line without trailing newline.
func (r Row) marshal() string {
	var b strings.Builder

	b.WriteString(r.Date.Format(DateFormat))
	b.WriteByte(',')
	b.WriteString(formatPrice(r.Open))
	b.WriteByte(',')
	b.WriteString(formatPrice(r.High))
	b.WriteByte(',')
	b.WriteString(formatPrice(r.Low))
	b.WriteByte(',')
	b.WriteString(formatPrice(r.Close))
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(r.Volume, 10))
	b.WriteByte(',')
	if r.TotalTrades != nil {
		b.WriteString(strconv.FormatInt(*r.TotalTrades, 10))
	}
	b.WriteByte(',')
	if r.QtyPerTrade != nil {
		b.WriteString(strconv.FormatFloat(*r.QtyPerTrade, 'f', 2, 64))
	}
	b.WriteByte(',')
	if r.DeliveryQty != nil {
		b.WriteString(strconv.FormatInt(*r.DeliveryQty, 10))
	}

	return b.String()
}

// unmarshalRow parses a CSV line previously produced by marshal.
func unmarshalRow(line string) (Row, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 9 {
		return Row{}, fmt.Errorf("%w: malformed row %q", ErrDataIntegrity, line)
	}

	var (
		row Row
		err error
	)
	if row.Date, err = time.Parse(DateFormat, parts[0]); err != nil {
		return Row{}, fmt.Errorf("row date %q: %w", parts[0], err)
	}
	if row.Open, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return Row{}, fmt.Errorf("row open %q: %w", parts[1], err)
	}
	if row.High, err = strconv.ParseFloat(parts[2], 64); err != nil {
		return Row{}, fmt.Errorf("row high %q: %w", parts[2], err)
	}
	if row.Low, err = strconv.ParseFloat(parts[3], 64); err != nil {
		return Row{}, fmt.Errorf("row low %q: %w", parts[3], err)
	}
	if row.Close, err = strconv.ParseFloat(parts[4], 64); err != nil {
		return Row{}, fmt.Errorf("row close %q: %w", parts[4], err)
	}
	if row.Volume, err = strconv.ParseInt(parts[5], 10, 64); err != nil {
		return Row{}, fmt.Errorf("row volume %q: %w", parts[5], err)
	}

	if parts[6] != "" {
		v, err := strconv.ParseInt(parts[6], 10, 64)
		if err != nil {
			return Row{}, fmt.Errorf("row trades %q: %w", parts[6], err)
		}
		row.TotalTrades = &v
	}
	if parts[7] != "" {
		v, err := strconv.ParseFloat(parts[7], 64)
		if err != nil {
			return Row{}, fmt.Errorf("row qty/trade %q: %w", parts[7], err)
		}
		row.QtyPerTrade = &v
	}
	if parts[8] != "" {
		v, err := strconv.ParseInt(parts[8], 10, 64)
		if err != nil {
			return Row{}, fmt.Errorf("row delivery %q: %w", parts[8], err)
		}
		row.DeliveryQty = &v
	}

	return row, nil
}

// roundTick rounds a price to the nearest 0.05 tick, then to 2 decimals.
func roundTick(v float64) float64 {
	return math.Round(math.Round(v/0.05)*0.05*100) / 100
}

// round2 rounds to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
