package params

import "time"

type VisitConfig struct {
	// StaySpeedKmh is the speed under which a sample may begin (and average) a stay.
	StaySpeedKmh float64
	// PeakSpeedKmh is the speed at or above which a stay is broken; a stay's peak must stay under it.
	PeakSpeedKmh float64
	// Radius (meters) around the stay centroid a sample must fall within to continue the stay.
	Radius float64
	// MinDwell is the minimum stay duration for a visit.
	MinDwell time.Duration
	// MaxGap between consecutive samples; longer gaps break the stay.
	MaxGap time.Duration

	// QuickStopMax and VisitMax classify visit types by duration.
	QuickStopMax time.Duration
	VisitMax     time.Duration
}

func DefaultVisitConfig() *VisitConfig {
	return &VisitConfig{
		StaySpeedKmh: 2,
		PeakSpeedKmh: 8,
		Radius:       150,
		MinDwell:     5 * time.Minute,
		MaxGap:       3 * time.Hour,
		QuickStopMax: 15 * time.Minute,
		VisitMax:     3 * time.Hour,
	}
}
