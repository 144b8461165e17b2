// Package visit derives visits, stays at a place, from the motion trace.
package visit

import (
	"time"

	"github.com/rotblauer/catmotion/movement"
)

const (
	TypeQuickStop    = "quick_stop"
	TypeVisit        = "visit"
	TypeExtendedStay = "extended_stay"
)

// Observation is one sample as seen by the detector.
type Observation struct {
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	SpeedKmh  float64        `json:"speedKmh"`
	State     movement.State `json:"state"`
	// Timestamp is unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

type Metadata struct {
	MaxSpeed     float64 `json:"maxSpeed"`
	MinSpeed     float64 `json:"minSpeed"`
	AverageSpeed float64 `json:"averageSpeed"`
	// StationaryDuration (ms) is the part of the stay spent in the stationary state.
	StationaryDuration int64 `json:"stationaryDuration"`
	Samples            int   `json:"samples"`
}

// Visit is a stay at a place. Times and durations are unix milliseconds.
// DepartureTime and Duration are nil while the stay is still open.
type Visit struct {
	ID            string   `json:"id"`
	Place         string   `json:"place"`
	Address       string   `json:"address"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	ArrivalTime   int64    `json:"arrivalTime"`
	DepartureTime *int64   `json:"departureTime,omitempty"`
	Duration      *int64   `json:"duration,omitempty"`
	Confidence    string   `json:"confidence"`
	Source        string   `json:"source"`
	VisitType     string   `json:"visitType"`
	Metadata      Metadata `json:"metadata"`
}

func (v *Visit) Complete() bool {
	return v.DepartureTime != nil
}

func (v *Visit) Arrival() time.Time {
	return time.UnixMilli(v.ArrivalTime)
}

// TypeFor classifies a stay by its duration.
func TypeFor(d, quickStopMax, visitMax time.Duration) string {
	switch {
	case d < quickStopMax:
		return TypeQuickStop
	case d < visitMax:
		return TypeVisit
	}
	return TypeExtendedStay
}
