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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/penny-vault/import-nse/nse"
	"github.com/rs/zerolog/log"
)

// Cursor is the single durable sync-state document. It is rewritten
// wholesale after every mutation that must survive a crash: holiday refresh,
// action-cache refresh, pending-date changes and the end-of-cycle advance.
type Cursor struct {
	path string

	LastUpdate           string                `json:"lastUpdate"`
	Year                 int                   `json:"year"`
	Holidays             map[string]string     `json:"holidays"`
	SpecialSessions      []string              `json:"specialSessions,omitempty"`
	EquityActions        []nse.CorporateAction `json:"equityActions"`
	EquityActionsExpiry  string                `json:"equityActionsExpiry"`
	SMEActions           []nse.CorporateAction `json:"smeActions"`
	SMEActionsExpiry     string                `json:"smeActionsExpiry"`
	PendingDeliveryDates []string              `json:"pendingDeliveryDates"`
}

// LoadCursor reads the cursor document, or initializes one whose last-synced
// date is yesterday so the first cycle targets today.
func LoadCursor(path string) (*Cursor, error) {
	c := &Cursor{
		path:     path,
		Holidays: map[string]string{},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		yesterday := midnight(time.Now()).AddDate(0, 0, -1)
		c.LastUpdate = yesterday.Format(DateFormat)
		log.Info().Str("LastUpdate", c.LastUpdate).Msg("no cursor found, starting fresh")
		return c, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("cursor %s: %w", path, err)
	}
	if c.Holidays == nil {
		c.Holidays = map[string]string{}
	}
	return c, nil
}

// Save rewrites the document atomically.
func (c *Cursor) Save() error {
	data, err := json.MarshalIndent(c, "", "   ")
	if err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Date returns the last-synced date at midnight.
func (c *Cursor) Date() time.Time {
	dt, err := time.Parse(DateFormat, c.LastUpdate)
	if err != nil {
		// A corrupt cursor date is unrecoverable by code.
		log.Fatal().Str("LastUpdate", c.LastUpdate).Msg("cursor has an unparseable lastUpdate date")
	}
	return dt
}

// SetDate records a newly synced date.
func (c *Cursor) SetDate(dt time.Time) {
	c.LastUpdate = dt.Format(DateFormat)
}

// ActionsFor returns the cached announcements and expiry for a segment.
func (c *Cursor) ActionsFor(segment nse.Segment) ([]nse.CorporateAction, string) {
	if segment == nse.SegmentSME {
		return c.SMEActions, c.SMEActionsExpiry
	}
	return c.EquityActions, c.EquityActionsExpiry
}

// SetActions replaces a segment's cached announcements.
func (c *Cursor) SetActions(segment nse.Segment, actions []nse.CorporateAction, expiry time.Time) {
	if segment == nse.SegmentSME {
		c.SMEActions = actions
		c.SMEActionsExpiry = expiry.Format(DateFormat)
		return
	}
	c.EquityActions = actions
	c.EquityActionsExpiry = expiry.Format(DateFormat)
}

// AddPending queues a date whose delivery report was unavailable.
func (c *Cursor) AddPending(dt time.Time) {
	iso := dt.Format(DateFormat)
	for _, d := range c.PendingDeliveryDates {
		if d == iso {
			return
		}
	}
	c.PendingDeliveryDates = append(c.PendingDeliveryDates, iso)
}

// RemovePending drops a date from the pending-delivery queue.
func (c *Cursor) RemovePending(iso string) {
	kept := c.PendingDeliveryDates[:0]
	for _, d := range c.PendingDeliveryDates {
		if d != iso {
			kept = append(kept, d)
		}
	}
	c.PendingDeliveryDates = kept
}

// midnight truncates a timestamp to its calendar day.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
