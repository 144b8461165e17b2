package monitor

import (
	"log/slog"
	"time"

	"github.com/rotblauer/catmotion/common"
	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/types/sample"
)

// Input is everything the engine needs to evaluate one sample.
type Input struct {
	Sample sample.LocationSample
	// SpeedKmh is the sample's resolved speed.
	SpeedKmh float64
	// Previous is the last stored sample, nil if none.
	Previous *sample.LocationSample
	Now      time.Time
	Data     PhaseData
}

// Result is the engine's decision for one sample.
type Result struct {
	Next    movement.State
	Changed bool
	Data    PhaseData
	// Refine asks the caller for a refined place lookup of the sample's location.
	Refine bool
}

// Engine dispatches samples to the active state's monitoring logic.
// It holds no state of its own; everything lives in PhaseData.
type Engine struct {
	config *params.MonitorConfig
	logger *slog.Logger
}

func NewEngine(config *params.MonitorConfig) *Engine {
	if config == nil {
		config = params.DefaultMonitorConfig()
	}
	return &Engine{
		config: config,
		logger: slog.With("d", "monitor"),
	}
}

func (e *Engine) Config() *params.MonitorConfig {
	return e.config
}

// Step evaluates one sample in the current state.
func (e *Engine) Step(current movement.State, in Input) Result {
	in.Data = in.Data.Clone()
	if in.Data.LastCheckAt == 0 {
		in.Data.LastCheckAt = in.Now.UnixMilli()
	}
	switch current {
	case movement.FastMoving:
		return e.fastMoving(in)
	case movement.SlowMoving:
		return e.slowMoving(in)
	case movement.Stationary:
		return e.stationary(in)
	}
	e.logger.Warn("Unknown movement state, treating as fast moving", "state", current)
	return e.fastMoving(in)
}

// transition resets phase data for the accepted next state.
func (e *Engine) transition(from, to movement.State, now time.Time, refine bool) Result {
	e.logger.Info("Movement state change", "from", from, "to", to)
	return Result{
		Next:    to,
		Changed: true,
		Data:    NewPhaseData(now),
		Refine:  refine,
	}
}

// remain resets phase data to waiting in the current state.
func (e *Engine) remain(state movement.State, now time.Time, refine bool) Result {
	return Result{
		Next:   state,
		Data:   NewPhaseData(now),
		Refine: refine,
	}
}

func unchanged(state movement.State, data PhaseData) Result {
	return Result{Next: state, Data: data}
}

func (e *Engine) displacement(in Input) (float64, bool) {
	if in.Previous == nil {
		return 0, false
	}
	return common.DistanceMeters(
		in.Sample.Latitude, in.Sample.Longitude,
		in.Previous.Latitude, in.Previous.Longitude,
	), true
}

func (e *Engine) waited(in Input, interval time.Duration) bool {
	return in.Now.UnixMilli()-in.Data.LastCheckAt >= interval.Milliseconds()
}

// openWindow starts a monitoring window seeded with the current sample.
func (e *Engine) openWindow(in Input) PhaseData {
	started := in.Now.UnixMilli()
	return PhaseData{
		LastCheckAt:         in.Data.LastCheckAt,
		SpeedSamples:        []float64{in.SpeedKmh},
		LocationSamples:     []LocationPoint{point(in)},
		MonitoringStartedAt: &started,
		Phase:               PhaseMonitoring,
	}
}

// record appends the sample to an open window.
// It reports the window's average speed and whether the window has elapsed.
func (e *Engine) record(in Input) (data PhaseData, avg float64, done bool) {
	data = in.Data
	if data.Phase == PhaseMonitoring {
		data.SpeedSamples = append(data.SpeedSamples, in.SpeedKmh)
		data.LocationSamples = append(data.LocationSamples, point(in))
		if n := e.config.MaxWindowSamples; n > 0 && len(data.SpeedSamples) > n {
			data.SpeedSamples = data.SpeedSamples[len(data.SpeedSamples)-n:]
		}
		if n := e.config.MaxWindowSamples; n > 0 && len(data.LocationSamples) > n {
			data.LocationSamples = data.LocationSamples[len(data.LocationSamples)-n:]
		}
	}
	started := in.Now.UnixMilli()
	if data.MonitoringStartedAt != nil {
		started = *data.MonitoringStartedAt
	}
	elapsed := in.Now.UnixMilli() - started
	done = data.Phase == PhaseFinalizing || elapsed >= e.config.MonitoringDuration.Milliseconds()
	return data, movement.Average(data.SpeedSamples), done
}

func point(in Input) LocationPoint {
	return LocationPoint{
		Lat:       in.Sample.Latitude,
		Lng:       in.Sample.Longitude,
		Timestamp: in.Now.UnixMilli(),
		Speed:     in.SpeedKmh,
	}
}
