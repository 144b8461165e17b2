package tracker

import (
	"time"

	rkalman "github.com/regnull/kalman"
	"github.com/rotblauer/catmotion/common"
	"github.com/rotblauer/catmotion/types/sample"
)

// Estimate is the Kalman-smoothed position and speed after a sample.
type Estimate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SpeedKmh  float64 `json:"speedKmh"`
}

const (
	// estimatorMaxGap resets the filter; it is not useful across long silences.
	estimatorMaxGap = 10 * time.Minute

	estimatorDefaultAccuracy = 10.0 // meters
	estimatorAcceleration    = 0.1  // m/s^2
)

// estimator smooths the sample trace for display.
// It lives in memory only and starts over after a restart.
type estimator struct {
	filter *rkalman.GeoFilter
	last   time.Time
}

func (e *estimator) reset() {
	e.filter = nil
	e.last = time.Time{}
}

// observe feeds s to the filter and returns the new estimate, or nil if the filter failed.
func (e *estimator) observe(s sample.LocationSample, speedKmh float64) *Estimate {
	t := s.Time()
	if e.filter == nil || t.Sub(e.last) > estimatorMaxGap || t.Before(e.last) {
		f, err := rkalman.NewGeoFilter(&rkalman.GeoProcessNoise{
			BaseLat:           s.Latitude,
			DistancePerSecond: common.KmhToMps(speedKmh),
			SpeedPerSecond:    estimatorAcceleration,
		})
		if err != nil {
			e.reset()
			return nil
		}
		e.filter = f
		e.last = t
	}

	accuracy := estimatorDefaultAccuracy
	if s.Accuracy != nil && *s.Accuracy > 0 {
		accuracy = *s.Accuracy
	}
	err := e.filter.Observe(t.Sub(e.last).Seconds(), &rkalman.GeoObserved{
		Lat:                s.Latitude,
		Lng:                s.Longitude,
		Speed:              common.KmhToMps(speedKmh),
		SpeedAccuracy:      0.2,
		HorizontalAccuracy: accuracy,
		VerticalAccuracy:   2.0,
	})
	e.last = t
	if err != nil {
		e.reset()
		return nil
	}
	est := e.filter.Estimate()
	if est == nil {
		return nil
	}
	return &Estimate{
		Latitude:  est.Lat,
		Longitude: est.Lng,
		SpeedKmh:  common.MpsToKmh(est.Speed),
	}
}
