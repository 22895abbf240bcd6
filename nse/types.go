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
	"errors"
	"fmt"
)

// PriceRow is one security's entry in the daily equity bhavcopy.
type PriceRow struct {
	ISIN   string  `json:"isin"`
	Symbol string  `json:"symbol"`
	Series string  `json:"series"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// DeliveryRow is one security's entry in the daily delivery report.
type DeliveryRow struct {
	Symbol      string `json:"symbol"`
	Series      string `json:"series"`
	Volume      int64  `json:"volume"`
	Trades      int64  `json:"trades"`
	DeliveryQty int64  `json:"deliveryQty"`
}

// IndexRow is one index's entry in the daily index snapshot.
type IndexRow struct {
	Name   string  `json:"name"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
	PE     float64 `json:"pe"`
}

// CorporateAction is a single exchange announcement. Subject is free text;
// only split and bonus announcements carry a parseable ratio.
type CorporateAction struct {
	Symbol  string `json:"symbol"`
	Series  string `json:"series"`
	Subject string `json:"subject"`
	ExDate  string `json:"exDate"`
}

// Segment identifies a market board with its own corporate-action feed.
type Segment string

const (
	SegmentEquities Segment = "equities"
	SegmentSME      Segment = "sme"
)

// ErrReportUnavailable marks a report the exchange has not published for the
// requested date. The archives answer 403/404 for missing files, and an error
// page in place of data shows up as a truncated body. Distinct from a corrupt
// or unparseable report, which stays fatal.
var ErrReportUnavailable = errors.New("nse: report unavailable")

// RetryableError marks a transient network failure (timeout, connection
// refused, 5xx, 429). Anything else is immediately fatal to the caller.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("nse: %s: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err should trigger another attempt.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
