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
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"
)

const (
	archivesURL = "https://archives.nseindia.com"
	apiURL      = "https://www.nseindia.com/api"

	// The exchange rejects requests without browser-like headers.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; rv:91.0) Gecko/20100101 Firefox/91.0"
)

// Reports smaller than these sizes are truncated error pages, not data.
const (
	minPriceReportSize    = 5000
	minDeliveryReportSize = 50000
	minIndexReportSize    = 5000
)

// Client retrieves the daily NSE reports. All methods surface transient
// network failures as *RetryableError so callers can wrap them in a
// RetryPolicy.
type Client struct {
	http      *resty.Client
	limit     ratelimit.Limiter
	reportDir string
}

// NewClient builds a rate-limited client. Raw reports are archived under
// reportDir/<year>/ before parsing; pass "" to skip archival.
func NewClient(reportDir string, ratePerSec int) *Client {
	if ratePerSec <= 0 {
		ratePerSec = 2
	}

	client := resty.New().
		SetTimeout(15 * time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "*/*").
		SetHeader("Accept-Language", "en-US,en;q=0.5").
		SetHeader("Referer", "https://www1.nseindia.com")

	return &Client{
		http:      client,
		limit:     ratelimit.New(ratePerSec),
		reportDir: reportDir,
	}
}

// get fetches url and classifies failures: timeouts, connection errors, 429
// and 5xx are retryable; every other non-2xx status is fatal.
func (c *Client) get(ctx context.Context, url string, params map[string]string) ([]byte, error) {
	c.limit.Take()

	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParams(params)
	}

	log.Debug().Str("Url", url).Msg("requesting NSE report")
	resp, err := req.Get(url)
	if err != nil {
		return nil, &RetryableError{Op: url, Err: err}
	}

	code := resp.StatusCode()
	if code >= 500 || code == 429 {
		return nil, &RetryableError{Op: url, Err: fmt.Errorf("status %d", code)}
	}
	// The archives answer 403 (not 404) for dates with no published report.
	if code == 403 || code == 404 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrReportUnavailable, url, code)
	}
	if code >= 400 {
		return nil, fmt.Errorf("nse: %s: status %d", url, code)
	}

	return resp.Body(), nil
}

// archive saves a raw report under reportDir/<year>/ for later reference.
func (c *Client) archive(date time.Time, name string, body []byte) {
	if c.reportDir == "" {
		return
	}

	dir := filepath.Join(c.reportDir, strconv.Itoa(date.Year()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Str("OriginalError", err.Error()).Str("Dir", dir).Msg("cannot create report archive dir")
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
		log.Warn().Str("OriginalError", err.Error()).Str("File", name).Msg("cannot archive report")
	}
}

// Price downloads and parses the equity bhavcopy for the given date.
func (c *Client) Price(ctx context.Context, date time.Time) ([]PriceRow, error) {
	dtStr := strings.ToUpper(date.Format("02Jan2006"))
	month := dtStr[2:5]
	url := fmt.Sprintf("%s/content/historical/EQUITIES/%d/%s/cm%sbhav.csv.zip",
		archivesURL, date.Year(), month, dtStr)

	body, err := c.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if len(body) < minPriceReportSize {
		return nil, fmt.Errorf("%w: bhavcopy for %s is truncated (%d bytes)",
			ErrReportUnavailable, date.Format("2006-01-02"), len(body))
	}
	c.archive(date, fmt.Sprintf("cm%sbhav.csv.zip", dtStr), body)

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("nse: bhavcopy zip: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("nse: bhavcopy zip is empty")
	}

	f, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("nse: bhavcopy zip entry: %w", err)
	}
	defer f.Close()

	return ParsePriceReport(f)
}

// Delivery downloads and parses the security-wise delivery report.
func (c *Client) Delivery(ctx context.Context, date time.Time) ([]DeliveryRow, error) {
	name := fmt.Sprintf("sec_bhavdata_full_%s.csv", date.Format("02012006"))
	url := fmt.Sprintf("%s/products/content/%s", archivesURL, name)

	body, err := c.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if len(body) < minDeliveryReportSize {
		return nil, fmt.Errorf("%w: delivery report for %s is truncated (%d bytes)",
			ErrReportUnavailable, date.Format("2006-01-02"), len(body))
	}
	c.archive(date, name, body)

	return ParseDeliveryReport(bytes.NewReader(body))
}

// Index downloads and parses the all-indices close snapshot.
func (c *Client) Index(ctx context.Context, date time.Time) ([]IndexRow, error) {
	name := fmt.Sprintf("ind_close_all_%s.csv", date.Format("02012006"))
	url := fmt.Sprintf("%s/content/indices/%s", archivesURL, name)

	body, err := c.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if len(body) < minIndexReportSize {
		return nil, fmt.Errorf("%w: index report for %s is truncated (%d bytes)",
			ErrReportUnavailable, date.Format("2006-01-02"), len(body))
	}
	c.archive(date, name, body)

	return ParseIndexReport(bytes.NewReader(body))
}

// Holidays fetches the trading holiday list for the current year, keyed by
// formatted date ("02-Jan-2006") with the exchange's description as value.
// CM is the capital-market segment of the holiday master.
func (c *Client) Holidays(ctx context.Context) (map[string]string, error) {
	body, err := c.get(ctx, apiURL+"/holiday-master", map[string]string{"type": "trading"})
	if err != nil {
		return nil, err
	}

	var payload struct {
		CM []struct {
			TradingDate string `json:"tradingDate"`
			Description string `json:"description"`
		} `json:"CM"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("nse: holiday master: %w", err)
	}

	holidays := make(map[string]string, len(payload.CM))
	for _, h := range payload.CM {
		holidays[h.TradingDate] = h.Description
	}

	return holidays, nil
}

// Actions fetches corporate-action announcements for a segment in the given
// date range.
func (c *Client) Actions(ctx context.Context, segment Segment, from, to time.Time) ([]CorporateAction, error) {
	const fmtDate = "02-01-2006"

	body, err := c.get(ctx, apiURL+"/corporates-corporateActions", map[string]string{
		"index":     string(segment),
		"from_date": from.Format(fmtDate),
		"to_date":   to.Format(fmtDate),
	})
	if err != nil {
		return nil, err
	}

	var actions []CorporateAction
	if err := json.Unmarshal(body, &actions); err != nil {
		return nil, fmt.Errorf("nse: corporate actions: %w", err)
	}

	return actions, nil
}
