// Package sample defines the location sample delivered by a device's location provider.
package sample

import (
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

var ErrInvalidSample = errors.New("invalid location sample")

// LocationSample is one reported device position.
// Timestamp is in unix milliseconds. Accuracy (meters) and Speed (m/s)
// are optional and nil when the provider did not report them.
type LocationSample struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Timestamp int64    `json:"timestamp"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
}

func (s LocationSample) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Point returns the sample as an orb.Point, which is [lon, lat].
func (s LocationSample) Point() orb.Point {
	return orb.Point{s.Longitude, s.Latitude}
}

// ReportedSpeed returns the provider-reported speed in m/s, if any.
// Negative speeds mean "unknown" on most platforms and are not reported.
func (s LocationSample) ReportedSpeed() (float64, bool) {
	if s.Speed == nil || *s.Speed < 0 {
		return 0, false
	}
	return *s.Speed, true
}

// Validate returns ErrInvalidSample (wrapped) if the coordinates or timestamp are unusable.
func (s LocationSample) Validate() error {
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f", ErrInvalidSample, s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f", ErrInvalidSample, s.Longitude)
	}
	if s.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp %d", ErrInvalidSample, s.Timestamp)
	}
	return nil
}

func (s LocationSample) String() string {
	return fmt.Sprintf("%.6f,%.6f@%s", s.Latitude, s.Longitude, s.Time().UTC().Format(time.RFC3339))
}

func Float64(v float64) *float64 {
	return &v
}
