package params

import (
	"os"
	"path/filepath"
)

var DatadirRoot = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".catmotion")
	}
	return filepath.Join(home, ".catmotion")
}()

var StateDBName = "state.db"
var StateBucket = []byte("state")

// Keys of the persisted tracking session and its collaborators.
// All values are JSON (or plain decimal) strings.
//
// SessionKeyLastLocation MUST be written last: its presence is what tells
// the next invocation that a previous sample exists.
var (
	SessionKeyMovementState  = "session/movement_state"
	SessionKeyStateEnteredAt = "session/state_entered_at"
	SessionKeySpeedBuffer    = "session/speed_buffer"
	SessionKeyPhaseData      = "session/phase_data"
	SessionKeyLastSpeed      = "session/last_speed"
	SessionKeyLastLocation   = "session/last_location"

	DeliveryKeyFingerprint = "delivery/fingerprint"
	VisitKeyDetector       = "visit/detector"
	LocationKeyEnhanced    = "location/last_enhanced"
	LocationKeyHistory     = "location/history"
	SinkKeyPending         = "sink/pending"
)

// SessionKeys are removed when tracking stops.
var SessionKeys = []string{
	SessionKeyMovementState,
	SessionKeyStateEnteredAt,
	SessionKeySpeedBuffer,
	SessionKeyPhaseData,
	SessionKeyLastSpeed,
	SessionKeyLastLocation,
	DeliveryKeyFingerprint,
	VisitKeyDetector,
	LocationKeyEnhanced,
}
