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
	"testing"
	"time"

	"github.com/penny-vault/import-nse/nse"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, iso string) time.Time {
	t.Helper()
	dt, err := time.Parse(DateFormat, iso)
	require.NoError(t, err)
	return dt
}

func priceRow(t *testing.T, iso string, close float64) Row {
	t.Helper()
	return Row{
		Date:   day(t, iso),
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 1000,
	}
}

// fakeFetcher serves canned reports keyed by ISO date. A date with no entry
// reports as unpublished, like the exchange before a report lands.
type fakeFetcher struct {
	prices     map[string][]nse.PriceRow
	deliveries map[string][]nse.DeliveryRow
	indices    map[string][]nse.IndexRow
	holidays   map[string]string
	actions    map[nse.Segment][]nse.CorporateAction

	deliveryErr map[string]error

	priceCalls    int
	deliveryCalls int
	holidayCalls  int
	actionsCalls  int
}

func (f *fakeFetcher) Price(_ context.Context, date time.Time) ([]nse.PriceRow, error) {
	f.priceCalls++
	rows, ok := f.prices[date.Format(DateFormat)]
	if !ok {
		return nil, fmt.Errorf("%w: status 403", nse.ErrReportUnavailable)
	}
	return rows, nil
}

func (f *fakeFetcher) Delivery(_ context.Context, date time.Time) ([]nse.DeliveryRow, error) {
	f.deliveryCalls++
	iso := date.Format(DateFormat)
	if err, ok := f.deliveryErr[iso]; ok {
		return nil, err
	}
	rows, ok := f.deliveries[iso]
	if !ok {
		return nil, fmt.Errorf("%w: status 403", nse.ErrReportUnavailable)
	}
	return rows, nil
}

func (f *fakeFetcher) Index(_ context.Context, date time.Time) ([]nse.IndexRow, error) {
	rows, ok := f.indices[date.Format(DateFormat)]
	if !ok {
		return nil, fmt.Errorf("%w: status 403", nse.ErrReportUnavailable)
	}
	return rows, nil
}

func (f *fakeFetcher) Holidays(context.Context) (map[string]string, error) {
	f.holidayCalls++
	if f.holidays == nil {
		return map[string]string{}, nil
	}
	return f.holidays, nil
}

func (f *fakeFetcher) Actions(_ context.Context, segment nse.Segment, _, _ time.Time) ([]nse.CorporateAction, error) {
	f.actionsCalls++
	return f.actions[segment], nil
}

// captureHook records callbacks for assertion.
type captureHook struct {
	updated   []string
	completed []time.Time
	errs      []error
}

func (h *captureHook) OnRecordUpdated(symbol string, _ Row) {
	h.updated = append(h.updated, symbol)
}

func (h *captureHook) OnCycleComplete(date time.Time) {
	h.completed = append(h.completed, date)
}

func (h *captureHook) OnError(err error) {
	h.errs = append(h.errs, err)
}

// fastRetry keeps test failures from sleeping.
func fastRetry() nse.RetryPolicy {
	return nse.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}
