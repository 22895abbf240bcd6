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
	"path/filepath"
	"testing"

	"github.com/penny-vault/import-nse/nse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIngestion(t *testing.T) (*Ingestion, string) {
	t.Helper()
	dir := t.TempDir()
	reg, err := LoadRegistry(filepath.Join(dir, "isin.csv"), dir)
	require.NoError(t, err)
	return NewIngestion(dir, reg, nil, false), dir
}

func TestIngestJoinsDeliveryBySymbol(t *testing.T) {
	ing, dir := newTestIngestion(t)

	prices := []nse.PriceRow{
		{ISIN: "INE000A01001", Symbol: "ACME", Series: "EQ", Open: 99, High: 105, Low: 98, Close: 100, Volume: 1000},
	}
	deliveries := []nse.DeliveryRow{
		{Symbol: "ACME", Series: "EQ", Volume: 1000, Trades: 40, DeliveryQty: 600},
	}

	records, err := ing.Ingest(day(t, "2024-01-02"), prices, deliveries)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rows, err := LoadRecord(RecordPath(dir, "acme"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NotNil(t, rows[0].TotalTrades)
	assert.Equal(t, int64(40), *rows[0].TotalTrades)
	require.NotNil(t, rows[0].QtyPerTrade)
	assert.Equal(t, 25.0, *rows[0].QtyPerTrade)
	require.NotNil(t, rows[0].DeliveryQty)
	assert.Equal(t, int64(600), *rows[0].DeliveryQty)
}

func TestIngestKeepsBoardsWithSharedSymbolApart(t *testing.T) {
	ing, dir := newTestIngestion(t)

	// the same ticker listed on the main board and the SME board
	prices := []nse.PriceRow{
		{ISIN: "INE000A01001", Symbol: "ACME", Series: "EQ", Close: 100, Volume: 1000},
		{ISIN: "INE000B01002", Symbol: "ACME", Series: "SM", Close: 40, Volume: 50},
	}
	deliveries := []nse.DeliveryRow{
		{Symbol: "ACME", Series: "EQ", Volume: 1000, Trades: 40, DeliveryQty: 600},
		{Symbol: "ACME", Series: "SM", Volume: 50, Trades: 5, DeliveryQty: 20},
	}

	records, err := ing.Ingest(day(t, "2024-01-02"), prices, deliveries)
	require.NoError(t, err)
	require.Len(t, records, 2)

	rows, err := LoadRecord(RecordPath(dir, "acme"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].DeliveryQty)
	assert.Equal(t, int64(600), *rows[0].DeliveryQty)
	require.NotNil(t, rows[0].TotalTrades)
	assert.Equal(t, int64(40), *rows[0].TotalTrades)

	rows, err = LoadRecord(RecordPath(dir, "acme_sme"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].DeliveryQty)
	assert.Equal(t, int64(20), *rows[0].DeliveryQty)
	require.NotNil(t, rows[0].TotalTrades)
	assert.Equal(t, int64(5), *rows[0].TotalTrades)
}

func TestIngestWithoutDeliveryLeavesColumnsBlank(t *testing.T) {
	ing, dir := newTestIngestion(t)

	prices := []nse.PriceRow{
		{ISIN: "INE000A01001", Symbol: "ACME", Series: "EQ", Open: 99, High: 105, Low: 98, Close: 100, Volume: 1000},
	}

	_, err := ing.Ingest(day(t, "2024-01-02"), prices, nil)
	require.NoError(t, err)

	rows, err := LoadRecord(RecordPath(dir, "acme"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].TotalTrades)
	assert.Nil(t, rows[0].QtyPerTrade)
	assert.Nil(t, rows[0].DeliveryQty)
}

func TestIngestFiltersSeriesAndRightsEntitlements(t *testing.T) {
	ing, dir := newTestIngestion(t)

	prices := []nse.PriceRow{
		{ISIN: "INE000A01001", Symbol: "ACME", Series: "EQ", Close: 100, Volume: 10},
		{ISIN: "INE000B01002", Symbol: "GOVTBOND", Series: "GB", Close: 100, Volume: 10},
		{ISIN: "INE000C01003", Symbol: "ACME-RE", Series: "EQ", Close: 5, Volume: 10},
	}

	records, err := ing.Ingest(day(t, "2024-01-02"), prices, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = os.Stat(RecordPath(dir, "govtbond"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(RecordPath(dir, "acme-re"))
	assert.True(t, os.IsNotExist(err))
}

func TestIngestSMESeriesGetsFileSuffix(t *testing.T) {
	ing, dir := newTestIngestion(t)

	prices := []nse.PriceRow{
		{ISIN: "INE000A01001", Symbol: "TINYCO", Series: "SM", Close: 40, Volume: 10},
	}

	records, err := ing.Ingest(day(t, "2024-01-02"), prices, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "TINYCO_sme", records[0].Symbol)

	_, err = os.Stat(RecordPath(dir, "tinyco_sme"))
	assert.NoError(t, err)
}

func TestIngestTradeForTradeDeliveryEqualsVolume(t *testing.T) {
	ing, dir := newTestIngestion(t)

	prices := []nse.PriceRow{
		{ISIN: "INE000A01001", Symbol: "WATCHED", Series: "BE", Close: 100, Volume: 500},
	}
	// the exchange leaves DELIV_QTY blank for trade-for-trade series
	deliveries := []nse.DeliveryRow{
		{Symbol: "WATCHED", Series: "BE", Volume: 500, Trades: 20, DeliveryQty: 0},
	}

	_, err := ing.Ingest(day(t, "2024-01-02"), prices, deliveries)
	require.NoError(t, err)

	rows, err := LoadRecord(RecordPath(dir, "watched"))
	require.NoError(t, err)
	require.NotNil(t, rows[0].DeliveryQty)
	assert.Equal(t, int64(500), *rows[0].DeliveryQty)
}

func TestIngestMissingISINFailsFast(t *testing.T) {
	ing, _ := newTestIngestion(t)

	prices := []nse.PriceRow{
		{ISIN: "", Symbol: "BROKEN", Series: "EQ", Close: 100, Volume: 10},
	}

	_, err := ing.Ingest(day(t, "2024-01-02"), prices, nil)
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestIngestNotifiesHook(t *testing.T) {
	dir := t.TempDir()
	reg, err := LoadRegistry(filepath.Join(dir, "isin.csv"), dir)
	require.NoError(t, err)

	hook := &captureHook{}
	ing := NewIngestion(dir, reg, hook, false)

	prices := []nse.PriceRow{
		{ISIN: "INE000A01001", Symbol: "ACME", Series: "EQ", Close: 100, Volume: 10},
	}
	_, err = ing.Ingest(day(t, "2024-01-02"), prices, nil)
	require.NoError(t, err)

	require.Len(t, hook.updated, 1)
	assert.Equal(t, "ACME", hook.updated[0])
}
