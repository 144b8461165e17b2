package monitor

import (
	"github.com/rotblauer/catmotion/movement"
)

// stationary waits StationaryInterval between checks. A far displacement
// jumps to fast moving, a near one opens a monitoring window, and anything
// less keeps the state with a refined place lookup.
// Without a previous location the check is repeated on the next sample.
func (e *Engine) stationary(in Input) Result {
	const self = movement.Stationary

	if in.Data.Phase == PhaseWaiting {
		if !e.waited(in, e.config.StationaryInterval) {
			return unchanged(self, in.Data)
		}
		d, ok := e.displacement(in)
		if !ok {
			return unchanged(self, in.Data)
		}
		e.logger.Debug("Stationary displacement check", "meters", int(d))
		switch {
		case d >= e.config.FarDistance:
			return e.transition(self, movement.FastMoving, in.Now, false)
		case d >= e.config.NearDistance:
			e.logger.Debug("Stationary monitoring window opened")
			return unchanged(self, e.openWindow(in))
		default:
			return e.remain(self, in.Now, true)
		}
	}

	data, avg, done := e.record(in)
	if !done {
		return unchanged(self, data)
	}
	e.logger.Debug("Stationary monitoring window complete", "avg.kmh", avg, "samples", len(data.SpeedSamples))
	switch movement.DetermineState(avg) {
	case movement.FastMoving:
		return e.transition(self, movement.FastMoving, in.Now, false)
	case movement.SlowMoving:
		return e.transition(self, movement.SlowMoving, in.Now, false)
	}
	return e.remain(self, in.Now, true)
}
