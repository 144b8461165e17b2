package sink

import (
	"time"

	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/visit"
)

type Metadata struct {
	Source  string `json:"source"`
	Version string `json:"version"`
}

// LocationUpdate is a sample pushed to the backend, enriched with the
// resolved movement state and, when known, the last refined place.
type LocationUpdate struct {
	Latitude            float64        `json:"latitude"`
	Longitude           float64        `json:"longitude"`
	Timestamp           time.Time      `json:"timestamp"`
	Accuracy            *float64       `json:"accuracy"`
	Speed               *float64       `json:"speed"`
	MovementState       movement.State `json:"movementState"`
	EnhancedPlace       string         `json:"enhancedPlace,omitempty"`
	EnhancedAddress     string         `json:"enhancedAddress,omitempty"`
	GeocodingSource     string         `json:"geocodingSource,omitempty"`
	GeocodingConfidence string         `json:"geocodingConfidence,omitempty"`
	Metadata            Metadata       `json:"metadata"`
}

type visitMetadata struct {
	MaxSpeed           float64 `json:"maxSpeed"`
	MinSpeed           float64 `json:"minSpeed"`
	AverageSpeed       float64 `json:"averageSpeed"`
	StationaryDuration int64   `json:"stationaryDuration"`
	Source             string  `json:"source"`
	Version            string  `json:"version"`
}

type visitPayload struct {
	ExternalID      string        `json:"externalId"`
	PlaceName       string        `json:"placeName"`
	Address         string        `json:"address"`
	Latitude        float64       `json:"latitude"`
	Longitude       float64       `json:"longitude"`
	ArrivalTime     time.Time     `json:"arrivalTime"`
	DepartureTime   *time.Time    `json:"departureTime"`
	Duration        *int64        `json:"duration"`
	VisitType       string        `json:"visitType"`
	Confidence      string        `json:"confidence"`
	GeocodingSource string        `json:"geocodingSource"`
	Metadata        visitMetadata `json:"metadata"`
}

func newVisitPayload(v *visit.Visit, md Metadata) visitPayload {
	p := visitPayload{
		ExternalID:      v.ID,
		PlaceName:       v.Place,
		Address:         v.Address,
		Latitude:        v.Latitude,
		Longitude:       v.Longitude,
		ArrivalTime:     time.UnixMilli(v.ArrivalTime).UTC(),
		Duration:        v.Duration,
		VisitType:       v.VisitType,
		Confidence:      v.Confidence,
		GeocodingSource: v.Source,
		Metadata: visitMetadata{
			MaxSpeed:           v.Metadata.MaxSpeed,
			MinSpeed:           v.Metadata.MinSpeed,
			AverageSpeed:       v.Metadata.AverageSpeed,
			StationaryDuration: v.Metadata.StationaryDuration,
			Source:             md.Source,
			Version:            md.Version,
		},
	}
	if v.DepartureTime != nil {
		d := time.UnixMilli(*v.DepartureTime).UTC()
		p.DepartureTime = &d
	}
	return p
}
