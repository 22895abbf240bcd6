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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollbackRemovesOnlyFailedCycleRows(t *testing.T) {
	dir := t.TempDir()
	failDate := day(t, "2024-01-03")

	// touched during the failed cycle
	abc := RecordPath(dir, "abc")
	require.NoError(t, AppendRow(abc, priceRow(t, "2024-01-02", 100)))
	require.NoError(t, AppendRow(abc, priceRow(t, "2024-01-03", 101)))

	// not reached before the failure
	xyz := RecordPath(dir, "xyz")
	require.NoError(t, AppendRow(xyz, priceRow(t, "2024-01-02", 50)))

	reverted, err := Rollback(dir, failDate)
	require.NoError(t, err)
	assert.Equal(t, 1, reverted)

	last, err := LastRowDate(abc)
	require.NoError(t, err)
	assert.Equal(t, day(t, "2024-01-02"), last)

	last, err = LastRowDate(xyz)
	require.NoError(t, err)
	assert.Equal(t, day(t, "2024-01-02"), last)
}

func TestRollbackIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	abc := RecordPath(dir, "abc")
	require.NoError(t, AppendRow(abc, priceRow(t, "2024-01-02", 100)))
	require.NoError(t, AppendRow(abc, priceRow(t, "2024-01-03", 101)))

	reverted, err := Rollback(dir, day(t, "2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, 1, reverted)

	reverted, err = Rollback(dir, day(t, "2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, 0, reverted)

	rows, err := LoadRecord(abc)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, day(t, "2024-01-02"), rows[0].Date)
}

func TestRollbackOfFirstSightingAllowsRetry(t *testing.T) {
	dir := t.TempDir()
	failDate := day(t, "2024-01-03")

	// the symbol first appeared during the failed cycle, so rollback
	// leaves its file header-only
	path := RecordPath(dir, "newco")
	require.NoError(t, AppendRow(path, priceRow(t, "2024-01-03", 100)))

	reverted, err := Rollback(dir, failDate)
	require.NoError(t, err)
	assert.Equal(t, 1, reverted)

	last, err := LastRowDate(path)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	// the next run retries the same date from scratch
	require.NoError(t, AppendRow(path, priceRow(t, "2024-01-03", 100)))

	rows, err := LoadRecord(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, failDate, rows[0].Date)
}
