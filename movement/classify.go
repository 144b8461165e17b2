package movement

import (
	"github.com/montanaflynn/stats"
)

// DetermineState returns the candidate state for an average speed.
// It does not by itself cause a transition; see ValidateChange.
func DetermineState(avgSpeedKmh float64) State {
	switch {
	case avgSpeedKmh >= FastMoving.Profile().ThresholdKmh:
		return FastMoving
	case avgSpeedKmh >= SlowMoving.Profile().ThresholdKmh:
		return SlowMoving
	}
	return Stationary
}

// MinSpeedSamples is the least number of buffered speeds needed to change state.
const MinSpeedSamples = 3

// ValidateChange reports whether a change from current to candidate is accepted,
// given the buffered speeds (km/h) and their average.
//
// Downgrades need both a low average and a low peak.
// Upgrades need the lowest buffered speed to already be elevated.
func ValidateChange(current, candidate State, buffer []float64, avgSpeedKmh float64) bool {
	if len(buffer) < MinSpeedSamples {
		return false
	}
	data := stats.Float64Data(buffer)
	maxSpeed, _ := data.Max()
	minSpeed, _ := data.Min()

	switch {
	case current == FastMoving && candidate == Stationary:
		return avgSpeedKmh < 0.5 && maxSpeed < 2
	case current == FastMoving && candidate == SlowMoving:
		return avgSpeedKmh < 3 && maxSpeed < 5
	case current == SlowMoving && candidate == Stationary:
		return avgSpeedKmh < 0.5 && maxSpeed < 1
	case current == Stationary && candidate == SlowMoving:
		return avgSpeedKmh > 1 && minSpeed > 0.5
	case candidate == FastMoving && (current == Stationary || current == SlowMoving):
		return avgSpeedKmh > 5 && minSpeed > 3
	}
	return true
}

// Average returns the mean of the speeds, or 0 for none.
func Average(speeds []float64) float64 {
	if len(speeds) == 0 {
		return 0
	}
	avg, _ := stats.Float64Data(speeds).Mean()
	return avg
}
