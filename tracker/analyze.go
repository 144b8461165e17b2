package tracker

import (
	"math"

	"github.com/rotblauer/catmotion/common"
	"github.com/rotblauer/catmotion/types/sample"
)

// Analysis is the motion between the previous sample and the current one.
type Analysis struct {
	SpeedKmh       float64
	DistanceMeters float64
	TimeDeltaS     float64
}

// Analyze computes the current speed as the larger of the speed implied by
// the haversine distance from prev and the GPS-reported speed.
// GPS speed wins at short time deltas; computed speed covers an underreporting sensor.
func Analyze(cur sample.LocationSample, prev *sample.LocationSample) Analysis {
	a := Analysis{}
	if prev != nil {
		a.DistanceMeters = common.DistanceMeters(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
		a.TimeDeltaS = float64(cur.Timestamp-prev.Timestamp) / 1000
		a.SpeedKmh = common.SpeedKmh(a.DistanceMeters, a.TimeDeltaS)
	}
	if gps, ok := cur.ReportedSpeed(); ok {
		a.SpeedKmh = math.Max(a.SpeedKmh, common.MpsToKmh(gps))
	}
	if a.SpeedKmh < 0 || math.IsNaN(a.SpeedKmh) || math.IsInf(a.SpeedKmh, 0) {
		a.SpeedKmh = 0
	}
	return a
}
