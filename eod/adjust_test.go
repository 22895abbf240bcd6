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
	"testing"

	"github.com/penny-vault/import-nse/nse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSplitFactor(t *testing.T) {
	tests := []struct {
		subject string
		factor  float64
		ok      bool
	}{
		{"Face Value Split (Sub-Division) - From Rs 10/- Per Share To Rs 2/- Per Share", 5, true},
		{"Face Value Split (Sub-Division) - From Re 1/- Per Share To Re 0.5 Per Share", 2, true},
		{"Fv Splt Rs.10 To Rs.5", 2, true},
		{"Annual General Meeting", 0, false},
	}

	for _, tc := range tests {
		factor, ok := ParseSplitFactor(tc.subject)
		assert.Equal(t, tc.ok, ok, tc.subject)
		if tc.ok {
			assert.InDelta(t, tc.factor, factor, 1e-9, tc.subject)
		}
	}
}

func TestParseBonusFactor(t *testing.T) {
	tests := []struct {
		subject string
		factor  float64
		ok      bool
	}{
		{"Bonus 1:2", 1.5, true},
		{"Bonus 1 : 1", 2, true},
		{"Bonus 3:2", 2.5, true},
		{"Dividend - Rs 5 Per Share", 0, false},
	}

	for _, tc := range tests {
		factor, ok := ParseBonusFactor(tc.subject)
		assert.Equal(t, tc.ok, ok, tc.subject)
		if tc.ok {
			assert.InDelta(t, tc.factor, factor, 1e-9, tc.subject)
		}
	}
}

func TestAdjustRowsRescalesHistoryBeforeExDate(t *testing.T) {
	rows := []Row{
		priceRow(t, "2024-01-01", 100),
		priceRow(t, "2024-01-02", 100),
		priceRow(t, "2024-01-03", 50),
		priceRow(t, "2024-01-04", 50),
		priceRow(t, "2024-01-05", 50),
	}

	adjusted, found := AdjustRows(rows, 2, day(t, "2024-01-03"))
	require.True(t, found)

	assert.Equal(t, 50.0, adjusted[0].Close)
	assert.Equal(t, 50.0, adjusted[1].Close)
	assert.Equal(t, 50.0, adjusted[2].Close)
	assert.Equal(t, 50.0, adjusted[4].Close)

	// volume is never rescaled
	for _, r := range adjusted {
		assert.Equal(t, int64(1000), r.Volume)
	}
}

func TestAdjustRowsNoOpWhenExDateAbsent(t *testing.T) {
	rows := []Row{
		priceRow(t, "2024-01-01", 100),
		priceRow(t, "2024-01-02", 100),
	}

	adjusted, found := AdjustRows(rows, 2, day(t, "2024-01-09"))
	assert.False(t, found)
	assert.Equal(t, 100.0, adjusted[0].Close)
	assert.Equal(t, 100.0, adjusted[1].Close)
}

func TestAdjustRowsTickRounding(t *testing.T) {
	rows := []Row{
		priceRow(t, "2024-01-01", 33.33),
		priceRow(t, "2024-01-02", 16.65),
	}

	adjusted, found := AdjustRows(rows, 2, day(t, "2024-01-02"))
	require.True(t, found)
	// 33.33/2 = 16.665, rounded to the nearest 0.05 tick
	assert.Equal(t, 16.65, adjusted[0].Close)
}

func TestSequentialAdjustmentsComposeWithTickRounding(t *testing.T) {
	rows := []Row{priceRow(t, "2024-01-01", 333.35)}
	rows = append(rows, priceRow(t, "2024-01-02", 100))

	// two actions on the same ex-date apply one after the other, each with
	// its own tick rounding, not as a single combined factor
	step1, found := AdjustRows(rows, 2, day(t, "2024-01-02"))
	require.True(t, found)
	step2, found := AdjustRows(step1, 1.5, day(t, "2024-01-02"))
	require.True(t, found)

	expected := roundTick(roundTick(333.35/2) / 1.5)
	assert.Equal(t, expected, step2[0].Close)
}

func TestApplyActionsCommitsSplit(t *testing.T) {
	dir := t.TempDir()
	path := RecordPath(dir, "acme")
	require.NoError(t, AppendRow(path, priceRow(t, "2024-01-01", 100)))
	require.NoError(t, AppendRow(path, priceRow(t, "2024-01-02", 100)))
	require.NoError(t, AppendRow(path, priceRow(t, "2024-01-03", 50)))

	actions := []nse.CorporateAction{{
		Symbol:  "ACME",
		Series:  "EQ",
		Subject: "Face Value Split (Sub-Division) - From Rs 10/- Per Share To Rs 5/- Per Share",
		ExDate:  "03-Jan-2024",
	}}

	adjuster := NewAdjuster(dir)
	require.NoError(t, adjuster.ApplyActions(day(t, "2024-01-03"), actions))

	rows, err := LoadRecord(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 50.0, rows[0].Close)
	assert.Equal(t, 50.0, rows[1].Close)
	assert.Equal(t, 50.0, rows[2].Close)
}

func TestApplyActionsIgnoresOtherDatesAndSeries(t *testing.T) {
	dir := t.TempDir()
	path := RecordPath(dir, "acme")
	require.NoError(t, AppendRow(path, priceRow(t, "2024-01-01", 100)))
	require.NoError(t, AppendRow(path, priceRow(t, "2024-01-03", 100)))

	actions := []nse.CorporateAction{
		{Symbol: "ACME", Series: "EQ", Subject: "Bonus 1:1", ExDate: "05-Jan-2024"},
		{Symbol: "ACME", Series: "GB", Subject: "Bonus 1:1", ExDate: "03-Jan-2024"},
	}

	adjuster := NewAdjuster(dir)
	require.NoError(t, adjuster.ApplyActions(day(t, "2024-01-03"), actions))

	rows, err := LoadRecord(path)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rows[0].Close)
}

func TestApplyActionsSkipsMissingRecord(t *testing.T) {
	dir := t.TempDir()

	actions := []nse.CorporateAction{{
		Symbol: "GHOST", Series: "EQ", Subject: "Bonus 1:1", ExDate: "03-Jan-2024",
	}}

	adjuster := NewAdjuster(dir)
	assert.NoError(t, adjuster.ApplyActions(day(t, "2024-01-03"), actions))
}
