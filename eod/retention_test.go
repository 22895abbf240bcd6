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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPruneStaleDeletesOldRecords(t *testing.T) {
	dir := t.TempDir()
	now := day(t, "2025-06-01")

	stale := RecordPath(dir, "gone")
	require.NoError(t, AppendRow(stale, priceRow(t, "2024-01-15", 100)))

	fresh := RecordPath(dir, "kept")
	require.NoError(t, AppendRow(fresh, priceRow(t, "2025-05-30", 200)))

	deleted, err := PruneStale(dir, now, 365)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestPruneStaleKeepsRecordExactlyAtHorizon(t *testing.T) {
	dir := t.TempDir()
	now := day(t, "2025-06-01")

	edge := RecordPath(dir, "edge")
	require.NoError(t, AppendRow(edge, priceRow(t, "2024-06-01", 100)))

	deleted, err := PruneStale(dir, now, 365)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	_, err = os.Stat(edge)
	assert.NoError(t, err)
}
