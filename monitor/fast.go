package monitor

import (
	"github.com/rotblauer/catmotion/movement"
)

// fastMoving keeps a rolling speed buffer and transitions as soon as
// the validator accepts a slower candidate. There is no monitoring window.
func (e *Engine) fastMoving(in Input) Result {
	buf := append(in.Data.SpeedSamples, in.SpeedKmh)
	if n := e.config.FastBufferSize; n > 0 && len(buf) > n {
		buf = buf[len(buf)-n:]
	}
	avg := movement.Average(buf)
	candidate := movement.DetermineState(avg)

	if candidate != movement.FastMoving &&
		movement.ValidateChange(movement.FastMoving, candidate, buf, avg) {
		return e.transition(movement.FastMoving, candidate, in.Now, false)
	}

	data := in.Data
	data.SpeedSamples = buf
	return unchanged(movement.FastMoving, data)
}
