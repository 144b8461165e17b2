package webd

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotblauer/catmotion/delivery"
	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/tracker"
	"github.com/rotblauer/catmotion/types/sample"
)

// maxSamplesBody bounds a posted sample batch.
const maxSamplesBody = 10 << 20

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time               `json:"started_at"`
	Uptime    string                  `json:"uptime"`
	Config    *params.WebDaemonConfig `json:"config"`
	WSOpen    bool                    `json:"ws_open"`
	WSConns   int                     `json:"ws_conns"`
	Tracking  bool                    `json:"tracking"`
	Delivery  delivery.Status         `json:"delivery"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Config:    s.Config,
		Tracking:  s.tracker.Tracking(r.Context()),
		Delivery:  s.delivery.Status(),
	}
	if s.melodyInstance != nil {
		st.WSOpen = !s.melodyInstance.IsClosed()
		st.WSConns = s.melodyInstance.Len()
	}
	j, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal status", "error", err)
		http.Error(w, "Failed to marshal status", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(j); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func setContentTypeJSONStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/x-ndjson")
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

type trackingResponse struct {
	Tracking bool            `json:"tracking"`
	Delivery delivery.Status `json:"delivery"`
	Movement movement.Info   `json:"movement"`
}

func (s *WebDaemon) trackingResponse(r *http.Request) trackingResponse {
	return trackingResponse{
		Tracking: s.tracker.Tracking(r.Context()),
		Delivery: s.delivery.Status(),
		Movement: s.tracker.CurrentMovementInfo(r.Context()),
	}
}

// handleStart starts tracking. The device reports its permission grants in the body,
// eg. {"foreground":true,"background":true}. An empty body reuses the last report.
func (s *WebDaemon) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		grants := delivery.Grants{}
		err := json.NewDecoder(r.Body).Decode(&grants)
		switch {
		case err == nil:
			s.grants.Set(grants)
		case errors.Is(err, io.EOF):
		default:
			s.logger.Warn("Failed to decode grants", "error", err)
			http.Error(w, "Failed to decode grants", http.StatusBadRequest)
			return
		}
	}

	err := s.tracker.Start(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, tracker.ErrPermissionDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	case errors.Is(err, tracker.ErrDeliveryUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		s.logger.Error("Failed to start tracking", "error", err)
		http.Error(w, "Failed to start tracking", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, s.trackingResponse(r))
}

func (s *WebDaemon) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Stop(r.Context()); err != nil {
		s.logger.Error("Failed to stop tracking", "error", err)
		http.Error(w, "Failed to stop tracking", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, s.trackingResponse(r))
}

// handleSamples is where devices post their samples.
// It takes a single sample, an array, NDJSON, Expo location objects or GeoJSON features,
// and responds with the movement info after the last of them.
// A batch is a backlog queued on the device: all but its last sample are
// evaluated at their own time rather than at arrival.
func (s *WebDaemon) handleSamples(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		http.Error(w, "Please send a request body", http.StatusBadRequest)
		return
	}
	samples, err := sample.Decode(http.MaxBytesReader(w, r.Body, maxSamplesBody))
	if err != nil || len(samples) == 0 {
		s.logger.Warn("Failed to decode samples", "error", err)
		http.Error(w, "Failed to decode samples", http.StatusUnprocessableEntity)
		return
	}

	info, err := s.tracker.OnSamples(r.Context(), samples)
	if errors.Is(err, tracker.ErrNotTracking) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		// Processed samples whose persistence failed are retried by the next one.
		s.logger.Error("Failed to handle samples", "count", len(samples), "error", err)
	}
	s.logger.Debug("Handled samples", "count", len(samples), "state", info.State)
	s.writeJSON(w, info)
}

func (s *WebDaemon) handleMovement(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.tracker.CurrentMovementInfo(r.Context()))
}

// handleDelivery tells the device the cadence it should deliver samples at.
func (s *WebDaemon) handleDelivery(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.delivery.Status())
}

func (s *WebDaemon) handleCurrentVisit(w http.ResponseWriter, r *http.Request) {
	v := s.tracker.CurrentVisit(r.Context())
	if v == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, v)
}

// handleRecentLocations writes the last n (?limit=, default 100) processed samples.
// If ?stream=true the response is NDJSON, else a JSON array.
func (s *WebDaemon) handleRecentLocations(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries := s.tracker.History(r.Context(), limit)

	if r.URL.Query().Get("stream") == "true" {
		setContentTypeJSONStream(w)
		enc := json.NewEncoder(w)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				s.logger.Warn("Failed to write response", "error", err)
				return
			}
		}
		return
	}
	s.writeJSON(w, entries)
}
