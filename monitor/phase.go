// Package monitor implements the per-state monitoring logic that decides,
// for each incoming sample, whether to keep waiting, open a speed monitoring
// window, or change movement state.
package monitor

import (
	"fmt"
	"time"
)

type Phase string

const (
	// PhaseWaiting skips evaluation until the state's wait interval has passed.
	PhaseWaiting Phase = "waiting"
	// PhaseMonitoring collects speeds for a short window.
	PhaseMonitoring Phase = "monitoring"
	// PhaseFinalizing is never written. Persisted phase data carrying it
	// still decodes, and its window is evaluated on the next sample as if elapsed.
	PhaseFinalizing Phase = "finalizing"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseWaiting, PhaseMonitoring, PhaseFinalizing:
		return true
	}
	return false
}

func (p *Phase) UnmarshalText(text []byte) error {
	v := Phase(text)
	if !v.Valid() {
		return fmt.Errorf("unknown monitor phase %q", text)
	}
	*p = v
	return nil
}

// LocationPoint is a sample recorded during a monitoring window.
type LocationPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
	Speed     float64 `json:"speed"`
}

// PhaseData is the monitoring data scoped to the active movement state.
// Times are unix milliseconds.
type PhaseData struct {
	LastCheckAt         int64           `json:"lastCheckAt"`
	SpeedSamples        []float64       `json:"speedSamples"`
	LocationSamples     []LocationPoint `json:"locationSamples"`
	MonitoringStartedAt *int64          `json:"monitoringStartedAt,omitempty"`
	Phase               Phase           `json:"phase"`
}

// NewPhaseData returns empty, waiting data checked at now.
func NewPhaseData(now time.Time) PhaseData {
	return PhaseData{
		LastCheckAt:     now.UnixMilli(),
		SpeedSamples:    []float64{},
		LocationSamples: []LocationPoint{},
		Phase:           PhaseWaiting,
	}
}

// Clone returns a deep copy.
func (d PhaseData) Clone() PhaseData {
	out := d
	out.SpeedSamples = append([]float64{}, d.SpeedSamples...)
	out.LocationSamples = append([]LocationPoint{}, d.LocationSamples...)
	if d.MonitoringStartedAt != nil {
		v := *d.MonitoringStartedAt
		out.MonitoringStartedAt = &v
	}
	return out
}

// Validate reports whether the data is internally consistent.
// Malformed persisted data is replaced with defaults by the caller.
func (d PhaseData) Validate() error {
	if !d.Phase.Valid() {
		return fmt.Errorf("invalid phase %q", d.Phase)
	}
	if d.Phase != PhaseWaiting && d.MonitoringStartedAt == nil {
		return fmt.Errorf("phase %q without monitoring start", d.Phase)
	}
	if d.LastCheckAt < 0 {
		return fmt.Errorf("negative last check %d", d.LastCheckAt)
	}
	return nil
}
