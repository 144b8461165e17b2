package monitor

import (
	"github.com/rotblauer/catmotion/movement"
)

// slowMoving waits SlowMovingInterval between checks. A check either jumps
// to fast moving on a far displacement, or opens a monitoring window whose
// average speed decides between stationary and slow moving.
func (e *Engine) slowMoving(in Input) Result {
	const self = movement.SlowMoving

	if in.Data.Phase == PhaseWaiting {
		if !e.waited(in, e.config.SlowMovingInterval) {
			return unchanged(self, in.Data)
		}
		if d, ok := e.displacement(in); ok {
			e.logger.Debug("Slow moving displacement check", "meters", int(d))
			if d >= e.config.FarDistance {
				return e.transition(self, movement.FastMoving, in.Now, false)
			}
		}
		e.logger.Debug("Slow moving monitoring window opened")
		return unchanged(self, e.openWindow(in))
	}

	data, avg, done := e.record(in)
	if !done {
		return unchanged(self, data)
	}
	e.logger.Debug("Slow moving monitoring window complete", "avg.kmh", avg, "samples", len(data.SpeedSamples))
	if avg < movement.SlowMoving.Profile().ThresholdKmh {
		return e.transition(self, movement.Stationary, in.Now, true)
	}
	return e.remain(self, in.Now, true)
}
