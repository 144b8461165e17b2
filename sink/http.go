// Package sink pushes location updates and visits to external backends.
// Pushes are fire-and-forget for the caller; failed HTTP pushes are kept
// in a persisted queue and retried.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/visit"
)

var ErrStatus = errors.New("unexpected response status")

// KV is the durable store holding the pending request queue.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

const (
	KindLocation = "location"
	KindVisit    = "visit"
)

var endpoints = map[string]string{
	KindLocation: "/api/locations",
	KindVisit:    "/api/visits",
}

// HTTP pushes to the journaling backend's REST API.
type HTTP struct {
	config *params.SinkConfig
	client *http.Client
	store  KV

	// mu guards the pending queue.
	mu sync.Mutex

	// sent remembers recently delivered visit IDs.
	sent *lru.Cache[string, struct{}]

	logger *slog.Logger
}

func NewHTTP(config *params.SinkConfig, store KV) *HTTP {
	if config == nil {
		config = params.DefaultSinkConfig()
	}
	sent, _ := lru.New[string, struct{}](256)
	return &HTTP{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
		store:  store,
		sent:   sent,
		logger: slog.With("d", "sink", "backend", config.BackendURL),
	}
}

func (h *HTTP) metadata() Metadata {
	return Metadata{Source: h.config.Source, Version: h.config.Version}
}

func (h *HTTP) PushLocationUpdate(ctx context.Context, u LocationUpdate) error {
	u.Metadata = h.metadata()
	return h.push(ctx, KindLocation, u)
}

// PushVisit pushes a completed visit. A visit already delivered is not pushed again.
func (h *HTTP) PushVisit(ctx context.Context, v *visit.Visit) error {
	if h.sent.Contains(v.ID) {
		return nil
	}
	if err := h.push(ctx, KindVisit, newVisitPayload(v, h.metadata())); err != nil {
		return err
	}
	h.sent.Add(v.ID, struct{}{})
	return nil
}

func (h *HTTP) push(ctx context.Context, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := h.post(ctx, kind, body); err != nil {
		if qerr := h.enqueue(kind, body); qerr != nil {
			h.logger.Error("Failed to queue pending request", "kind", kind, "error", qerr)
		}
		return fmt.Errorf("push %s (queued for retry): %w", kind, err)
	}
	return nil
}

func (h *HTTP) post(ctx context.Context, kind string, body []byte) error {
	endpoint, ok := endpoints[kind]
	if !ok {
		return fmt.Errorf("unknown request kind %q", kind)
	}
	url := strings.TrimSuffix(h.config.BackendURL, "/") + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	token, err := h.bearer()
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s", ErrStatus, endpoint, res.Status)
	}
	h.logger.Debug("Pushed", "kind", kind, "status", res.StatusCode)
	return nil
}

// Claims are the claims of a signed backend token.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// bearer returns the configured token, or signs one if a secret is configured.
func (h *HTTP) bearer() (string, error) {
	if h.config.Token != "" || h.config.JWTSecret == "" {
		return h.config.Token, nil
	}
	now := time.Now()
	claims := Claims{
		UserID: h.config.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(h.config.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign backend token: %w", err)
	}
	return signed, nil
}
