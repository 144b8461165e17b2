package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotblauer/catmotion/params"
)

// PendingRequest is a failed push awaiting retry.
type PendingRequest struct {
	ID         string          `json:"id"`
	Kind       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"`
	RetryCount int             `json:"retryCount"`
}

func (h *HTTP) readPending() ([]PendingRequest, error) {
	b, err := h.store.Get(h.key())
	if err != nil {
		return nil, err
	}
	out := []PendingRequest{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		h.logger.Warn("Discarding malformed pending queue", "error", err)
		return []PendingRequest{}, nil
	}
	return out, nil
}

func (h *HTTP) writePending(reqs []PendingRequest) error {
	if len(reqs) == 0 {
		return h.store.Remove(h.key())
	}
	b, err := json.Marshal(reqs)
	if err != nil {
		return err
	}
	return h.store.Set(h.key(), b)
}

func (h *HTTP) key() string {
	return params.SinkKeyPending
}

// Pending returns the queued requests, oldest first.
func (h *HTTP) Pending() ([]PendingRequest, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readPending()
}

// enqueue appends a request, keeping only the newest MaxPending.
func (h *HTTP) enqueue(kind string, body []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	reqs, err := h.readPending()
	if err != nil {
		return err
	}
	reqs = append(reqs, PendingRequest{
		ID:        fmt.Sprintf("%s_%s", kind, uuid.New().String()),
		Kind:      kind,
		Data:      json.RawMessage(body),
		Timestamp: time.Now().UnixMilli(),
	})
	if n := h.config.MaxPending; n > 0 && len(reqs) > n {
		reqs = reqs[len(reqs)-n:]
	}
	h.logger.Info("Stored pending request for retry", "kind", kind, "pending", len(reqs))
	return h.writePending(reqs)
}

// RetryPending retries every queued request once.
// Requests that have already failed MaxRetries times are dropped.
func (h *HTTP) RetryPending(ctx context.Context) (sent, dropped int, err error) {
	reqs, err := h.Pending()
	if err != nil || len(reqs) == 0 {
		return 0, 0, err
	}
	h.logger.Info("Retrying pending requests", "count", len(reqs))

	done := map[string]bool{}
	failed := map[string]bool{}
	for _, r := range reqs {
		if err := ctx.Err(); err != nil {
			break
		}
		if r.RetryCount >= h.config.MaxRetries {
			h.logger.Warn("Dropping request, max retries reached", "id", r.ID)
			done[r.ID] = true
			dropped++
			continue
		}
		if perr := h.post(ctx, r.Kind, r.Data); perr != nil {
			h.logger.Warn("Retry failed", "id", r.ID, "attempt", r.RetryCount+1, "error", perr)
			failed[r.ID] = true
			continue
		}
		done[r.ID] = true
		sent++
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// Requests may have been queued while retrying.
	current, err := h.readPending()
	if err != nil {
		return sent, dropped, err
	}
	remaining := make([]PendingRequest, 0, len(current))
	for _, r := range current {
		if done[r.ID] {
			continue
		}
		if failed[r.ID] {
			r.RetryCount++
		}
		remaining = append(remaining, r)
	}
	return sent, dropped, h.writePending(remaining)
}

// Run retries pending requests every RetryInterval until ctx is done.
func (h *HTTP) Run(ctx context.Context) {
	if h.config.RetryInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.config.RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sent, dropped, err := h.RetryPending(ctx)
			if err != nil {
				h.logger.Error("Retry pending requests", "error", err)
			} else if sent+dropped > 0 {
				h.logger.Info("Retried pending requests", "sent", sent, "dropped", dropped)
			}
		}
	}
}
