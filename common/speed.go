package common

// Movement states are classified in km/h, while GPS receivers report m/s.

// MpsToKmh converts meters per second to kilometers per hour.
func MpsToKmh(mps float64) float64 {
	return mps * 3.6
}

// KmhToMps converts kilometers per hour to meters per second.
func KmhToMps(kmh float64) float64 {
	return kmh / 3.6
}

// SpeedKmh returns the speed in km/h of covering meters in seconds.
// Non-positive durations yield 0.
func SpeedKmh(meters, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return MpsToKmh(meters / seconds)
}
