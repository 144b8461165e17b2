package tracker

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/stream"
	"github.com/rotblauer/catmotion/types/sample"
)

// HistoryEntry is a processed sample as kept in the location history.
type HistoryEntry struct {
	Sample   sample.LocationSample `json:"sample"`
	State    movement.State        `json:"state"`
	SpeedKmh float64               `json:"speedKmh"`
	// Place is set when the sample triggered a refined lookup.
	Place string `json:"place,omitempty"`
	// Estimate is the smoothed position and speed, if the filter had one.
	Estimate *Estimate `json:"estimate,omitempty"`
}

// readHistory loads the persisted history into a ring of the configured size.
// A corrupt tail is dropped.
func (c *Controller) readHistory(ctx context.Context) *stream.Ring[HistoryEntry] {
	ring := stream.NewRing[HistoryEntry](c.config.HistorySize)
	b := c.get(params.LocationKeyHistory)
	if len(b) == 0 {
		return ring
	}
	onErr := func(err error) {
		c.logger.Warn("Dropping corrupt location history tail", "error", err)
	}
	for e := range stream.NDJSON[HistoryEntry](ctx, bytes.NewReader(b), onErr) {
		ring.Add(e)
	}
	return ring
}

func (c *Controller) appendHistory(ctx context.Context, e HistoryEntry) error {
	if c.config.HistorySize <= 0 {
		return nil
	}
	ring := c.readHistory(ctx)
	ring.Add(e)

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	var err error
	ring.Each(func(e HistoryEntry) bool {
		err = enc.Encode(e)
		return err == nil
	})
	if err != nil {
		return err
	}
	return c.store.Set(params.LocationKeyHistory, buf.Bytes())
}

// History returns up to limit of the most recent processed samples, oldest first.
// A limit <= 0 returns all of them.
func (c *Controller) History(ctx context.Context, limit int) []HistoryEntry {
	if c.config.HistorySize <= 0 {
		return []HistoryEntry{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readHistory(ctx).Tail(limit)
}
