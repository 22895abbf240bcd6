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

// Rollback undoes a partially completed sync: every record in dir whose
// last row carries the failed cycle's date loses just that row, by
// truncating at the previous line boundary. Only the most recent append can
// be affected, so no file is rewritten. Files whose last row is for another
// date are untouched, which makes a second invocation a no-op.
//
// A file that cannot be read or truncated is logged and skipped; the cycle
// is aborting either way and the remaining records still need cleanup.
func Rollback(dir string, date time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	log.Info().
		Str("Dir", dir).
		Str("EventDate", date.Format(DateFormat)).
		Msg("rolling back appended rows")

	reverted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		ok, err := TruncateLastRow(path, date)
		if err != nil {
			log.Warn().Str("OriginalError", err.Error()).Str("File", path).Msg("rollback skipped file")
			continue
		}
		if ok {
			reverted++
		}
	}

	log.Info().Int("NumRecords", reverted).Msg("rollback complete")
	return reverted, nil
}
