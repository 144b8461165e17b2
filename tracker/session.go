package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rotblauer/catmotion/monitor"
	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/types/sample"
)

// Session is the persisted tracking state.
// It is loaded before, and saved after, every sample.
type Session struct {
	State movement.State
	// StateEnteredAt is unix milliseconds.
	StateEnteredAt int64
	// SpeedBuffer holds the most recent sample speeds, oldest first.
	SpeedBuffer []float64
	// LastSpeed is the buffer's average when last saved.
	LastSpeed    float64
	LastLocation *sample.LocationSample
	PhaseData    monitor.PhaseData
}

// NewSession assumes movement until proven otherwise.
func NewSession(now time.Time) *Session {
	return &Session{
		State:          movement.FastMoving,
		StateEnteredAt: now.UnixMilli(),
		SpeedBuffer:    []float64{},
		PhaseData:      monitor.NewPhaseData(now),
	}
}

// loadSession reads each session key, falling back to defaults
// for any key that is missing or malformed.
func (c *Controller) loadSession(now time.Time) *Session {
	s := NewSession(now)

	if b := c.get(params.SessionKeyMovementState); b != nil {
		if err := s.State.UnmarshalText(b); err != nil {
			c.logger.Warn("Malformed movement state, using default", "error", err)
			s.State = movement.FastMoving
		}
	}
	if b := c.get(params.SessionKeyStateEnteredAt); b != nil {
		v, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil || v < 0 {
			c.logger.Warn("Malformed state entered at, using default", "value", string(b))
		} else {
			s.StateEnteredAt = v
		}
	}
	if b := c.get(params.SessionKeySpeedBuffer); b != nil {
		buf := []float64{}
		if err := json.Unmarshal(b, &buf); err != nil {
			c.logger.Warn("Malformed speed buffer, using default", "error", err)
		} else {
			s.SpeedBuffer = trimBuffer(buf, c.config.SpeedBufferSize)
		}
	}
	if b := c.get(params.SessionKeyLastSpeed); b != nil {
		if v, err := strconv.ParseFloat(string(b), 64); err == nil {
			s.LastSpeed = v
		}
	}
	if b := c.get(params.SessionKeyPhaseData); b != nil {
		pd := monitor.PhaseData{}
		err := json.Unmarshal(b, &pd)
		if err == nil {
			err = pd.Validate()
		}
		if err != nil {
			c.logger.Warn("Malformed phase data, using default", "error", err)
		} else {
			s.PhaseData = pd
		}
	}
	if b := c.get(params.SessionKeyLastLocation); b != nil {
		loc := &sample.LocationSample{}
		err := json.Unmarshal(b, loc)
		if err == nil {
			err = loc.Validate()
		}
		if err != nil {
			c.logger.Warn("Malformed last location, treating as absent", "error", err)
		} else {
			s.LastLocation = loc
		}
	}
	return s
}

// saveSession writes every session key.
// The last location is written last; its presence marks a complete session.
func (c *Controller) saveSession(s *Session) error {
	state, err := s.State.MarshalText()
	if err != nil {
		return err
	}
	buf, err := json.Marshal(s.SpeedBuffer)
	if err != nil {
		return err
	}
	pd, err := json.Marshal(s.PhaseData)
	if err != nil {
		return err
	}

	writes := []struct {
		key   string
		value []byte
	}{
		{params.SessionKeyMovementState, state},
		{params.SessionKeyStateEnteredAt, []byte(strconv.FormatInt(s.StateEnteredAt, 10))},
		{params.SessionKeySpeedBuffer, buf},
		{params.SessionKeyPhaseData, pd},
		{params.SessionKeyLastSpeed, []byte(strconv.FormatFloat(s.LastSpeed, 'f', -1, 64))},
	}
	for _, w := range writes {
		if err := c.store.Set(w.key, w.value); err != nil {
			return fmt.Errorf("save %s: %w", w.key, err)
		}
	}

	if s.LastLocation == nil {
		return c.store.Remove(params.SessionKeyLastLocation)
	}
	loc, err := json.Marshal(s.LastLocation)
	if err != nil {
		return err
	}
	if err := c.store.Set(params.SessionKeyLastLocation, loc); err != nil {
		return fmt.Errorf("save %s: %w", params.SessionKeyLastLocation, err)
	}
	return nil
}

// clearSession removes every session key.
func (c *Controller) clearSession() error {
	var errs []error
	for _, k := range params.SessionKeys {
		if err := c.store.Remove(k); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) sessionExists() bool {
	return c.get(params.SessionKeyMovementState) != nil
}

// get treats read failures as missing keys.
func (c *Controller) get(key string) []byte {
	b, err := c.store.Get(key)
	if err != nil {
		c.logger.Warn("Failed to read key", "key", key, "error", err)
		return nil
	}
	return b
}

func trimBuffer(buf []float64, size int) []float64 {
	if size > 0 && len(buf) > size {
		return buf[len(buf)-size:]
	}
	return buf
}
