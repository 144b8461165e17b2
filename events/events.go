package events

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/types/sample"
	"github.com/rotblauer/catmotion/visit"
)

// StateChangedFeed is emitted for every accepted movement state transition.
var StateChangedFeed = event.FeedOf[movement.StateChange]{}

// VisitFeed is emitted for every completed visit.
var VisitFeed = event.FeedOf[*visit.Visit]{}

// SampleFeed is emitted for every sample the tracker processes,
// with the movement info resolved for it.
// Duplicate and out-of-order samples are not emitted.
var SampleFeed = event.FeedOf[ProcessedSample]{}

type ProcessedSample struct {
	Sample sample.LocationSample `json:"sample"`
	Info   movement.Info         `json:"info"`
}
