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
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Registry maps the stable security identifier (ISIN) to its current
// display symbol. Exchanges rename ticker symbols while the underlying
// security keeps its ISIN; history must follow the ISIN, so a mismatch
// relocates the on-disk record before any row is appended.
type Registry struct {
	path     string
	dailyDir string
	symbols  map[string]string
	dirty    bool
}

// LoadRegistry reads the identity map (CSV: ISIN,SYMBOL). A missing file
// starts an empty registry.
func LoadRegistry(path, dailyDir string) (*Registry, error) {
	r := &Registry{
		path:     path,
		dailyDir: dailyDir,
		symbols:  map[string]string{},
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("identity map %s: %w", path, err)
	}

	for i, rec := range records {
		if i == 0 || len(rec) < 2 {
			continue
		}
		r.symbols[rec[0]] = rec[1]
	}

	return r, nil
}

// Resolve returns the display symbol to record rows under for this ISIN.
// fileSuffix distinguishes board variants of the filename (e.g. "_sme").
// A previously seen ISIN reporting a different symbol is a rename: the
// record file moves to the new name and the map is updated.
func (r *Registry) Resolve(isin, symbol, fileSuffix string) (string, error) {
	if isin == "" {
		return "", fmt.Errorf("%w: symbol %s reported without an ISIN", ErrDataIntegrity, symbol)
	}

	current, seen := r.symbols[isin]
	if !seen {
		r.symbols[isin] = symbol
		r.dirty = true
		return symbol, nil
	}
	if current == symbol {
		return symbol, nil
	}

	oldPath := RecordPath(r.dailyDir, current+fileSuffix)
	newPath := RecordPath(r.dailyDir, symbol+fileSuffix)

	if err := os.Rename(oldPath, newPath); err != nil {
		if os.IsNotExist(err) {
			// A delisted symbol's file may already be gone.
			log.Warn().
				Str("Old", oldPath).
				Str("New", newPath).
				Msg("rename source missing, registering new symbol anyway")
		} else {
			return "", err
		}
	} else {
		log.Info().Str("Old", current).Str("New", symbol).Str("ISIN", isin).Msg("symbol renamed")
	}

	r.symbols[isin] = symbol
	r.dirty = true
	return symbol, nil
}

// Symbol returns the display symbol currently registered for an ISIN.
func (r *Registry) Symbol(isin string) (string, bool) {
	sym, ok := r.symbols[isin]
	return sym, ok
}

// Save rewrites the identity map, but only when it changed this run.
func (r *Registry) Save() error {
	if !r.dirty {
		return nil
	}

	isins := make([]string, 0, len(r.symbols))
	for isin := range r.symbols {
		isins = append(isins, isin)
	}
	sort.Strings(isins)

	var b strings.Builder
	b.WriteString("ISIN,SYMBOL\n")
	for _, isin := range isins {
		b.WriteString(isin)
		b.WriteByte(',')
		b.WriteString(r.symbols[isin])
		b.WriteByte('\n')
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return err
	}

	r.dirty = false
	return nil
}
