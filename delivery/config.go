// Package delivery describes the sample-delivery cadence requested from a
// location provider, and provides in-process delivery and permission capabilities.
package delivery

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/catmotion/movement"
)

// Config is the cadence a location provider is asked to deliver samples at.
type Config struct {
	State                  movement.State        `json:"state"`
	Accuracy               movement.Accuracy     `json:"accuracy"`
	TimeIntervalMs         int64                 `json:"timeIntervalMs"`
	DistanceIntervalMeters float64               `json:"distanceIntervalMeters"`
	ActivityType           movement.ActivityType `json:"activityType"`
}

// ConfigFor returns the delivery cadence of a movement state.
func ConfigFor(s movement.State) Config {
	p := s.Profile()
	return Config{
		State:                  s,
		Accuracy:               p.Accuracy,
		TimeIntervalMs:         p.UpdateInterval.Milliseconds(),
		DistanceIntervalMeters: p.DistanceInterval,
		ActivityType:           p.ActivityType,
	}
}

// Fingerprint identifies the configuration.
// Equal configurations have equal fingerprints.
func (c Config) Fingerprint() (string, error) {
	hash, err := hashstructure.Hash(c, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("fingerprint delivery config: %w", err)
	}
	return strconv.FormatUint(hash, 10), nil
}

func (c Config) String() string {
	return fmt.Sprintf("%s every %dms/%.0fm accuracy=%s activity=%s",
		c.State, c.TimeIntervalMs, c.DistanceIntervalMeters, c.Accuracy, c.ActivityType)
}
