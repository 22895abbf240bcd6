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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RecordPath maps a display symbol to its file in dir.
func RecordPath(dir, symbol string) string {
	return filepath.Join(dir, strings.ToLower(symbol)+".csv")
}

// AppendRow appends one day's row to a symbol record, creating the file with
// its header on first sighting. Dates must be strictly increasing; a
// duplicate or out-of-order date is a data-integrity failure.
func AppendRow(path string, row Row) error {
	if _, err := os.Stat(path); err == nil {
		last, err := LastRowDate(path)
		if err != nil {
			return err
		}
		if !last.Before(row.Date) {
			return fmt.Errorf("%w: %s already has a row at or after %s",
				ErrDataIntegrity, path, row.Date.Format(DateFormat))
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	text := ""
	if info.Size() == 0 {
		text = recordHeader + "\n"
	}
	text += row.marshal() + "\n"

	_, err = f.WriteString(text)
	return err
}

// LoadRecord reads a symbol's full record in date order.
func LoadRecord(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []Row
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			continue
		}
		if line == "" {
			continue
		}

		row, err := unmarshalRow(line)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return rows, nil
}

// WriteRecord rewrites a symbol's record wholesale via a temp file rename.
// Used only by the adjustment engine and delivery back-fill; the daily sync
// path appends.
func WriteRecord(path string, rows []Row) error {
	var b strings.Builder
	b.WriteString(recordHeader)
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(row.marshal())
		b.WriteByte('\n')
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// lastLine seeks backward from EOF to the final newline-terminated line and
// returns it along with the byte offset where it starts.
func lastLine(f *os.File) (string, int64, error) {
	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}
	size := info.Size()
	if size == 0 {
		return "", 0, nil
	}

	// Walk back from the byte before the trailing newline until the
	// previous newline is found.
	pos := size - 2
	buf := make([]byte, 1)
	for pos > 0 {
		if _, err := f.ReadAt(buf, pos); err != nil {
			return "", 0, err
		}
		if buf[0] == '\n' {
			pos++
			break
		}
		pos--
	}
	if pos < 0 {
		pos = 0
	}

	line := make([]byte, size-pos)
	if _, err := f.ReadAt(line, pos); err != nil && err != io.EOF {
		return "", 0, err
	}

	return strings.TrimRight(string(line), "\n"), pos, nil
}

// LastRowDate tail-reads the most recent row's date without parsing the
// whole file. A record holding no rows (empty, or header-only after a
// rollback removed its one row) reports the zero time.
func LastRowDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	line, _, err := lastLine(f)
	if err != nil {
		return time.Time{}, err
	}
	if line == "" || line == recordHeader {
		return time.Time{}, nil
	}

	dateStr := line
	if i := strings.IndexByte(line, ','); i >= 0 {
		dateStr = line[:i]
	}

	dt, err := time.Parse(DateFormat, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: last row date %q: %w", path, dateStr, err)
	}
	return dt, nil
}

// TruncateLastRow removes the final row when it matches date, truncating the
// file at the previous line boundary. Returns false when the last row is for
// a different date, which makes double invocation safe.
func TruncateLastRow(path string, date time.Time) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	line, offset, err := lastLine(f)
	if err != nil {
		return false, err
	}
	if line == "" || !strings.HasPrefix(line, date.Format(DateFormat)+",") {
		return false, nil
	}

	if err := f.Truncate(offset); err != nil {
		return false, err
	}
	return true, nil
}
