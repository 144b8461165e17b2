package visit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/rgeo"
)

// KV is the durable store the detector keeps its open stay in.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// maxStayPoints bounds the persisted stay; older points are dropped
// but still count toward the stay's speed profile.
const maxStayPoints = 500

// stay is a candidate visit: an arrival seen, no departure yet.
type stay struct {
	Points   []Observation `json:"points"`
	Arrival  int64         `json:"arrival"`
	Last     int64         `json:"last"`
	Speeds   []float64     `json:"speeds"`
	StillFor int64         `json:"stillFor"`
}

func newStay(obs Observation) *stay {
	return &stay{
		Points:  []Observation{obs},
		Arrival: obs.Timestamp,
		Last:    obs.Timestamp,
		Speeds:  []float64{obs.SpeedKmh},
	}
}

func (s *stay) latest() Observation {
	return s.Points[len(s.Points)-1]
}

func (s *stay) add(obs Observation) {
	prev := s.latest()
	if prev.State == movement.Stationary {
		s.StillFor += obs.Timestamp - prev.Timestamp
	}
	s.Points = append(s.Points, obs)
	if len(s.Points) > maxStayPoints {
		s.Points = s.Points[len(s.Points)-maxStayPoints:]
	}
	s.Speeds = append(s.Speeds, obs.SpeedKmh)
	if len(s.Speeds) > maxStayPoints {
		// Keep the extremes so the speed profile survives trimming.
		data := stats.Float64Data(s.Speeds)
		lo, _ := data.Min()
		hi, _ := data.Max()
		s.Speeds = append([]float64{lo, hi}, s.Speeds[len(s.Speeds)-maxStayPoints+2:]...)
	}
	s.Last = obs.Timestamp
}

func (s *stay) centroid() orb.Point {
	mp := make(orb.MultiPoint, 0, len(s.Points))
	for _, p := range s.Points {
		mp = append(mp, orb.Point{p.Longitude, p.Latitude})
	}
	c, _ := planar.CentroidArea(mp)
	return c
}

func (s *stay) duration() time.Duration {
	return time.Duration(s.Last-s.Arrival) * time.Millisecond
}

func (s *stay) metadata() Metadata {
	data := stats.Float64Data(s.Speeds)
	hi, _ := data.Max()
	lo, _ := data.Min()
	avg, _ := data.Mean()
	return Metadata{
		MaxSpeed:           hi,
		MinSpeed:           lo,
		AverageSpeed:       avg,
		StationaryDuration: s.StillFor,
		Samples:            len(s.Speeds),
	}
}

// Detector turns observations into visits. Its open stay is persisted
// after every observation, so detection survives process restarts.
type Detector struct {
	config   *params.VisitConfig
	store    KV
	key      string
	geocoder rgeo.ReverseGeocoder
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDetector bounds each place lookup by geocodeTimeout, or the tracker default if it is not positive.
func NewDetector(config *params.VisitConfig, store KV, geocoder rgeo.ReverseGeocoder, geocodeTimeout time.Duration) *Detector {
	if config == nil {
		config = params.DefaultVisitConfig()
	}
	if geocodeTimeout <= 0 {
		geocodeTimeout = params.DefaultTrackerConfig().GeocodeTimeout
	}
	return &Detector{
		config:   config,
		store:    store,
		key:      params.VisitKeyDetector,
		geocoder: geocoder,
		timeout:  geocodeTimeout,
		logger:   slog.With("d", "visit"),
	}
}

func (d *Detector) load() *stay {
	b, err := d.store.Get(d.key)
	if err != nil {
		d.logger.Warn("Failed to read stay", "error", err)
		return nil
	}
	if len(b) == 0 {
		return nil
	}
	s := &stay{}
	if err := json.Unmarshal(b, s); err != nil || len(s.Points) == 0 {
		d.logger.Warn("Discarding malformed stay", "error", err)
		return nil
	}
	return s
}

func (d *Detector) save(s *stay) error {
	if s == nil {
		return d.store.Remove(d.key)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return d.store.Set(d.key, b)
}

// continues reports whether obs extends the stay.
func (d *Detector) continues(s *stay, obs Observation) bool {
	if obs.Timestamp-s.Last >= d.config.MaxGap.Milliseconds() {
		return false
	}
	if obs.SpeedKmh >= d.config.PeakSpeedKmh {
		return false
	}
	return geo.Distance(s.centroid(), orb.Point{obs.Longitude, obs.Latitude}) <= d.config.Radius
}

// qualifies reports whether a finished stay is a visit.
func (d *Detector) qualifies(s *stay) bool {
	if s.duration() < d.config.MinDwell {
		return false
	}
	m := s.metadata()
	return m.AverageSpeed < d.config.StaySpeedKmh && m.MaxSpeed < d.config.PeakSpeedKmh
}

// Process feeds one observation to the detector.
// It returns the completed visit when obs ends a qualifying stay, otherwise nil.
// Observations older than the open stay's last are ignored.
func (d *Detector) Process(ctx context.Context, obs Observation) (*Visit, error) {
	s := d.load()
	var completed *Visit
	if s != nil {
		if obs.Timestamp < s.Last {
			return nil, nil
		}
		if d.continues(s, obs) {
			s.add(obs)
			return nil, d.save(s)
		}
		if d.qualifies(s) {
			completed = d.build(ctx, s, true)
		}
		s = nil
	}
	if obs.SpeedKmh < d.config.StaySpeedKmh {
		s = newStay(obs)
	}
	return completed, d.save(s)
}

// Current returns the open stay as a provisional visit if it already meets the dwell policy.
func (d *Detector) Current(ctx context.Context) *Visit {
	s := d.load()
	if s == nil || !d.qualifies(s) {
		return nil
	}
	return d.build(ctx, s, false)
}

// Flush ends any open stay, returning it if it qualifies.
func (d *Detector) Flush(ctx context.Context) (*Visit, error) {
	s := d.load()
	if s == nil {
		return nil, nil
	}
	var completed *Visit
	if d.qualifies(s) {
		completed = d.build(ctx, s, true)
	}
	return completed, d.save(nil)
}

func (d *Detector) build(ctx context.Context, s *stay, complete bool) *Visit {
	c := s.centroid()
	dur := s.duration()
	v := &Visit{
		ID:          uuid.New().String(),
		Latitude:    c.Lat(),
		Longitude:   c.Lon(),
		ArrivalTime: s.Arrival,
		VisitType:   TypeFor(dur, d.config.QuickStopMax, d.config.VisitMax),
		Metadata:    s.metadata(),
	}
	if complete {
		departure, ms := s.Last, dur.Milliseconds()
		v.DepartureTime = &departure
		v.Duration = &ms
	}

	place := rgeo.CoordinatesPlace(v.Latitude, v.Longitude)
	if d.geocoder != nil {
		gctx, cancel := context.WithTimeout(ctx, d.timeout)
		p, err := d.geocoder.ReverseGeocode(gctx, v.Latitude, v.Longitude)
		cancel()
		if err != nil || p == nil {
			d.logger.Warn("Visit geocoding failed, using coordinates", "error", err)
		} else {
			place = p
		}
	}
	v.Place, v.Address = place.Place, place.Address
	v.Confidence, v.Source = place.Confidence, place.Source
	if complete {
		d.logger.Info("Visit", "type", v.VisitType, "place", v.Place, "duration", dur.Round(time.Second))
	}
	return v
}
