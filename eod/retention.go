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
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// PruneStale deletes records whose most recent row is older than the
// retention horizon. Only each file's last line is read. Intended for
// "today" cycles; historical backfill must not prune.
func PruneStale(dir string, now time.Time, horizonDays int) (int, error) {
	deadline := midnight(now).AddDate(0, 0, -horizonDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		last, err := LastRowDate(path)
		if err != nil {
			log.Warn().Str("OriginalError", err.Error()).Str("File", path).Msg("cannot read last row date")
			continue
		}

		if last.Before(deadline) {
			if err := os.Remove(path); err != nil {
				return deleted, err
			}
			deleted++
		}
	}

	if deleted > 0 {
		log.Info().Int("NumRecords", deleted).Msg("stale records deleted")
	}
	return deleted, nil
}
