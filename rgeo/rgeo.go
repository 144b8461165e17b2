// Package rgeo reverse geocodes coordinates to a place name and address
// using offline rgeo datasets.
package rgeo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/rotblauer/catmotion/common"
	srgeo "github.com/sams96/rgeo"
)

var ErrNoPlace = errors.New("no place found")

// Place is a reverse geocoding result.
type Place struct {
	Place   string `json:"place"`
	Address string `json:"address"`
	// Confidence is "high", "medium" or "low".
	Confidence string `json:"confidence"`
	Source     string `json:"source"`
}

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"

	SourceRgeo        = "rgeo"
	SourceCoordinates = "coordinates"
)

// CoordinatesPlace is the fallback used when no geocoder answers.
func CoordinatesPlace(lat, lon float64) *Place {
	coords := fmt.Sprintf("%.5f, %.5f", lat, lon)
	return &Place{
		Place:      coords,
		Address:    coords,
		Confidence: ConfidenceLow,
		Source:     SourceCoordinates,
	}
}

// LocationGetter is a source of rgeo locations.
// *srgeo.Rgeo satisfies it through Loaded.
type LocationGetter interface {
	GetLocation(pt orb.Point) (srgeo.Location, error)
}

// rR is our wrapped rgeo.Rgeo instance, which implements LocationGetter.
type rR srgeo.Rgeo

func (rr *rR) GetLocation(pt orb.Point) (srgeo.Location, error) {
	return (*srgeo.Rgeo)(rr).ReverseGeocode(pt)
}

var (
	Cities10      = srgeo.Cities10
	Countries10   = srgeo.Countries10
	Provinces10   = srgeo.Provinces10
	US_Counties10 = srgeo.US_Counties10
)

// datasets are the datasets that the reverse geocoder will use.
var datasets = []func() []byte{
	Cities10,
	Countries10,
	Provinces10,
	US_Counties10,
}

var DatasetNamesStable = []string{}

func init() {
	for _, d := range datasets {
		DatasetNamesStable = append(DatasetNamesStable, common.FuncName(d))
	}
	sort.Strings(DatasetNamesStable)
}

var (
	loadOnce sync.Once
	loaded   *rR
	loadErr  error
)

// Loaded returns the process-wide rgeo instance, loading the datasets on first use.
// Loading takes a while and a good deal of memory.
func Loaded() (LocationGetter, error) {
	loadOnce.Do(func() {
		slog.Info("Initializing rgeo", "datasets", len(datasets), "names", DatasetNamesStable)
		r, err := srgeo.New(datasets...)
		if err != nil {
			loadErr = err
			return
		}
		loaded = (*rR)(r)
		slog.Info("Initialized rgeo", "datasets", len(datasets))
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return loaded, nil
}

// Geocoder turns rgeo locations into places.
type Geocoder struct {
	backend LocationGetter
}

func NewGeocoder(backend LocationGetter) *Geocoder {
	return &Geocoder{backend: backend}
}

func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (*Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc, err := g.backend.GetLocation(orb.Point{lon, lat})
	if err != nil {
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}
	p := PlaceFromLocation(loc)
	if p == nil {
		return nil, ErrNoPlace
	}
	return p, nil
}

// PlaceFromLocation names the most specific feature of loc.
// It returns nil if loc is empty.
func PlaceFromLocation(loc srgeo.Location) *Place {
	country := loc.Country
	if country == "" {
		country = loc.CountryCode3
	}
	var name, confidence string
	switch {
	case loc.City != "":
		name, confidence = loc.City, ConfidenceHigh
	case loc.County != "":
		name, confidence = loc.County, ConfidenceMedium
	case loc.Province != "":
		name, confidence = loc.Province, ConfidenceMedium
	case country != "":
		name, confidence = country, ConfidenceLow
	default:
		return nil
	}
	parts := []string{}
	for _, p := range []string{loc.City, loc.County, loc.Province, country} {
		if p != "" && (len(parts) == 0 || parts[len(parts)-1] != p) {
			parts = append(parts, p)
		}
	}
	return &Place{
		Place:      name,
		Address:    strings.Join(parts, ", "),
		Confidence: confidence,
		Source:     SourceRgeo,
	}
}
