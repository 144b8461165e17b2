package params

import "time"

// MonitorConfig holds the wait windows and distances of the per-state monitoring engine.
type MonitorConfig struct {
	// SlowMovingInterval is how long a slow-moving tracker waits before checking displacement.
	SlowMovingInterval time.Duration
	// StationaryInterval is how long a stationary tracker waits before checking displacement.
	StationaryInterval time.Duration
	// MonitoringDuration is the length of the burst speed-monitoring window.
	MonitoringDuration time.Duration

	// FarDistance (meters) is a displacement that skips monitoring and jumps straight to fast moving.
	FarDistance float64
	// NearDistance (meters) is the stationary displacement that warrants a monitoring window.
	NearDistance float64

	// FastBufferSize bounds the fast-moving speed buffer.
	FastBufferSize int
	// MaxWindowSamples bounds the location samples kept during a monitoring window.
	MaxWindowSamples int
}

func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		SlowMovingInterval: 30 * time.Minute,
		StationaryInterval: 60 * time.Minute,
		MonitoringDuration: 1 * time.Minute,
		FarDistance:        4000,
		NearDistance:       1000,
		FastBufferSize:     10,
		MaxWindowSamples:   120,
	}
}

type TrackerConfig struct {
	Monitor *MonitorConfig
	Visit   *VisitConfig

	// SpeedBufferSize bounds the session speed buffer.
	SpeedBufferSize int

	// ReconfigureSettle is the pause between stopping and restarting delivery,
	// letting the platform release the previous session.
	ReconfigureSettle time.Duration

	// GeocodeTimeout bounds refined place lookups.
	GeocodeTimeout time.Duration

	// PushTimeout bounds each fire-and-forget sink push.
	PushTimeout time.Duration

	// DedupeCacheSize is the number of recent sample hashes remembered.
	DedupeCacheSize int

	// HistorySize bounds the persisted history of processed samples. It survives Stop.
	HistorySize int
}

func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		Monitor:           DefaultMonitorConfig(),
		Visit:             DefaultVisitConfig(),
		SpeedBufferSize:   10,
		ReconfigureSettle: 2 * time.Second,
		GeocodeTimeout:    5 * time.Second,
		PushTimeout:       15 * time.Second,
		DedupeCacheSize:   1_000,
		HistorySize:       200,
	}
}
