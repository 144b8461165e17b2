package tracker

import (
	"time"

	"github.com/rotblauer/catmotion/types/sample"
)

// Clock tells the controller what time it is while handling s.
// s is nil outside of sample handling.
type Clock func(s *sample.LocationSample) time.Time

// WallClock is the default. Wait and monitoring windows run on real time.
func WallClock(*sample.LocationSample) time.Time {
	return time.Now()
}

// SampleClock takes the time from the sample being handled.
// It is used to replay recorded samples faster than real time.
func SampleClock(s *sample.LocationSample) time.Time {
	if s == nil {
		return time.Now()
	}
	return s.Time()
}
