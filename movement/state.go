// Package movement classifies device movement into discrete states
// and decides whether a proposed change of state is warranted.
package movement

import (
	"fmt"
	"time"
)

// State is one of the closed set of movement states.
type State int

const (
	Stationary State = iota
	SlowMoving
	FastMoving
)

// States lists every state, slowest first.
var States = []State{Stationary, SlowMoving, FastMoving}

var stateNames = map[State]string{
	Stationary: "STATIONARY",
	SlowMoving: "SLOW_MOVING",
	FastMoving: "FAST_MOVING",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid movement state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	p, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = p
	return nil
}

func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown movement state %q", name)
}

// Accuracy is the desired location accuracy hint passed to the delivery capability.
type Accuracy string

const (
	AccuracyLow      Accuracy = "low"
	AccuracyBalanced Accuracy = "balanced"
	AccuracyHigh     Accuracy = "high"
)

// ActivityType is the activity hint passed to the delivery capability.
type ActivityType string

const (
	ActivityOther                ActivityType = "other"
	ActivityFitness              ActivityType = "fitness"
	ActivityAutomotiveNavigation ActivityType = "automotive_navigation"
)

// Profile is the fixed configuration carried by a movement state.
type Profile struct {
	// ThresholdKmh is the average speed at or above which the state is a candidate.
	ThresholdKmh float64
	// UpdateInterval is the requested time between samples.
	UpdateInterval time.Duration
	// DistanceInterval (meters) is the requested minimum displacement between samples.
	DistanceInterval float64
	Accuracy         Accuracy
	ActivityType     ActivityType
}

var profiles = map[State]Profile{
	Stationary: {
		ThresholdKmh:     0,
		UpdateInterval:   5 * time.Minute,
		DistanceInterval: 0,
		Accuracy:         AccuracyLow,
		ActivityType:     ActivityOther,
	},
	SlowMoving: {
		ThresholdKmh:     1,
		UpdateInterval:   1 * time.Minute,
		DistanceInterval: 10,
		Accuracy:         AccuracyBalanced,
		ActivityType:     ActivityFitness,
	},
	FastMoving: {
		ThresholdKmh:     5,
		UpdateInterval:   10 * time.Second,
		DistanceInterval: 25,
		Accuracy:         AccuracyHigh,
		ActivityType:     ActivityAutomotiveNavigation,
	},
}

// Profile returns the state's configuration.
// Invalid states get the FastMoving profile.
func (s State) Profile() Profile {
	if p, ok := profiles[s]; ok {
		return p
	}
	return profiles[FastMoving]
}
