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
package nse

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// columnIndex maps trimmed header names to their positions. NSE reports are
// inconsistent about column order and padding between years, so every field
// is located by name.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	return idx
}

func field(record []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parseFloat treats the NSE placeholder values "-" and "" as zero.
func parseFloat(s string) (float64, error) {
	if s == "" || s == "-" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int64, error) {
	if s == "" || s == "-" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// ParsePriceReport reads the equity bhavcopy CSV into price rows.
func ParsePriceReport(r io.Reader) ([]PriceRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("bhavcopy header: %w", err)
	}
	idx := columnIndex(header)

	var rows []PriceRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bhavcopy row: %w", err)
		}

		row := PriceRow{
			ISIN:   field(rec, idx, "ISIN"),
			Symbol: field(rec, idx, "SYMBOL"),
			Series: field(rec, idx, "SERIES"),
		}
		if row.Open, err = parseFloat(field(rec, idx, "OPEN")); err != nil {
			return nil, fmt.Errorf("bhavcopy %s OPEN: %w", row.Symbol, err)
		}
		if row.High, err = parseFloat(field(rec, idx, "HIGH")); err != nil {
			return nil, fmt.Errorf("bhavcopy %s HIGH: %w", row.Symbol, err)
		}
		if row.Low, err = parseFloat(field(rec, idx, "LOW")); err != nil {
			return nil, fmt.Errorf("bhavcopy %s LOW: %w", row.Symbol, err)
		}
		if row.Close, err = parseFloat(field(rec, idx, "CLOSE")); err != nil {
			return nil, fmt.Errorf("bhavcopy %s CLOSE: %w", row.Symbol, err)
		}
		if row.Volume, err = parseInt(field(rec, idx, "TOTTRDQTY")); err != nil {
			return nil, fmt.Errorf("bhavcopy %s TOTTRDQTY: %w", row.Symbol, err)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// ParseDeliveryReport reads the security-wise delivery CSV into delivery rows.
func ParseDeliveryReport(r io.Reader) ([]DeliveryRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("delivery header: %w", err)
	}
	idx := columnIndex(header)

	var rows []DeliveryRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("delivery row: %w", err)
		}

		row := DeliveryRow{
			Symbol: field(rec, idx, "SYMBOL"),
			Series: field(rec, idx, "SERIES"),
		}
		if row.Volume, err = parseInt(field(rec, idx, "TTL_TRD_QNTY")); err != nil {
			return nil, fmt.Errorf("delivery %s TTL_TRD_QNTY: %w", row.Symbol, err)
		}
		if row.Trades, err = parseInt(field(rec, idx, "NO_OF_TRADES")); err != nil {
			return nil, fmt.Errorf("delivery %s NO_OF_TRADES: %w", row.Symbol, err)
		}
		if row.DeliveryQty, err = parseInt(field(rec, idx, "DELIV_QTY")); err != nil {
			return nil, fmt.Errorf("delivery %s DELIV_QTY: %w", row.Symbol, err)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// ParseIndexReport reads the all-indices close snapshot into index rows.
func ParseIndexReport(r io.Reader) ([]IndexRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("index header: %w", err)
	}
	idx := columnIndex(header)

	var rows []IndexRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("index row: %w", err)
		}

		row := IndexRow{Name: field(rec, idx, "Index Name")}
		if row.Open, err = parseFloat(field(rec, idx, "Open Index Value")); err != nil {
			return nil, fmt.Errorf("index %s open: %w", row.Name, err)
		}
		if row.High, err = parseFloat(field(rec, idx, "High Index Value")); err != nil {
			return nil, fmt.Errorf("index %s high: %w", row.Name, err)
		}
		if row.Low, err = parseFloat(field(rec, idx, "Low Index Value")); err != nil {
			return nil, fmt.Errorf("index %s low: %w", row.Name, err)
		}
		if row.Close, err = parseFloat(field(rec, idx, "Closing Index Value")); err != nil {
			return nil, fmt.Errorf("index %s close: %w", row.Name, err)
		}
		if row.Volume, err = parseInt(field(rec, idx, "Volume")); err != nil {
			return nil, fmt.Errorf("index %s volume: %w", row.Name, err)
		}
		if row.PE, err = parseFloat(field(rec, idx, "P/E")); err != nil {
			return nil, fmt.Errorf("index %s P/E: %w", row.Name, err)
		}

		rows = append(rows, row)
	}

	return rows, nil
}
