package movement

import (
	"time"
)

// Info is the movement snapshot exposed for display.
type Info struct {
	State State `json:"state"`
	// SpeedKmh is the speed of the latest sample.
	SpeedKmh float64 `json:"speedKmh"`
	// AverageSpeedKmh is the mean of the session speed buffer.
	AverageSpeedKmh      float64       `json:"averageSpeedKmh"`
	TimeSinceStateChange time.Duration `json:"timeSinceStateChange"`
	// Timestamp (unix ms) of the latest sample, 0 if none.
	Timestamp int64 `json:"timestamp"`
}

// StateChange is an accepted transition between states.
type StateChange struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	At        time.Time `json:"at"`
	SpeedKmh  float64   `json:"speedKmh"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}
