package visit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/rgeo"
)

type memKV struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemKV() *memKV { return &memKV{m: map[string][]byte{}} }

func (kv *memKV) Get(key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.m[key], nil
}

func (kv *memKV) Set(key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[key] = value
	return nil
}

func (kv *memKV) Remove(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.m, key)
	return nil
}

type fakeGeocoder struct {
	place *rgeo.Place
	err   error
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (*rgeo.Place, error) {
	return f.place, f.err
}

// slowGeocoder answers only when its context is done.
type slowGeocoder struct{}

func (slowGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (*rgeo.Place, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

var t0 = time.Date(2024, 12, 20, 12, 0, 0, 0, time.UTC)

func obs(lat, lon, speed float64, state movement.State, ts time.Time) Observation {
	return Observation{Latitude: lat, Longitude: lon, SpeedKmh: speed, State: state, Timestamp: ts.UnixMilli()}
}

// dwell feeds n stationary observations a minute apart at a point, starting at start.
func dwell(t *testing.T, d *Detector, start time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		v, err := d.Process(context.Background(), obs(45+float64(i%3)*0.0001, -93, 0.3, movement.Stationary, start.Add(time.Duration(i)*time.Minute)))
		if err != nil {
			t.Fatal(err)
		}
		if v != nil {
			t.Fatalf("visit emitted mid-stay: %+v", v)
		}
	}
}

func TestDetectorEmitsVisit(t *testing.T) {
	geo := &fakeGeocoder{place: &rgeo.Place{Place: "Home", Address: "1 Cat St", Confidence: rgeo.ConfidenceHigh, Source: rgeo.SourceRgeo}}
	d := NewDetector(params.DefaultVisitConfig(), newMemKV(), geo, 0)

	dwell(t, d, t0, 21) // 20 minutes.
	if cur := d.Current(context.Background()); cur == nil || cur.Complete() {
		t.Fatalf("want open current visit, have %+v", cur)
	}

	v, err := d.Process(context.Background(), obs(45.05, -93, 40, movement.FastMoving, t0.Add(25*time.Minute)))
	if err != nil {
		t.Fatal(err)
	}
	if v == nil {
		t.Fatal("want visit")
	}
	if !v.Complete() || *v.Duration != (20 * time.Minute).Milliseconds() {
		t.Errorf("have duration %v want %v", v.Duration, (20 * time.Minute).Milliseconds())
	}
	if v.VisitType != TypeVisit {
		t.Errorf("have %s want %s", v.VisitType, TypeVisit)
	}
	if v.Place != "Home" || v.Confidence != rgeo.ConfidenceHigh {
		t.Errorf("unexpected place: %+v", v)
	}
	if v.Metadata.MaxSpeed != 0.3 || v.Metadata.StationaryDuration != (20*time.Minute).Milliseconds() {
		t.Errorf("unexpected metadata: %+v", v.Metadata)
	}
	if v.ID == "" {
		t.Error("missing id")
	}
	if cur := d.Current(context.Background()); cur != nil {
		t.Errorf("stay still open: %+v", cur)
	}
}

func TestDetectorShortStay(t *testing.T) {
	d := NewDetector(params.DefaultVisitConfig(), newMemKV(), nil, 0)
	dwell(t, d, t0, 4) // 3 minutes.
	v, err := d.Process(context.Background(), obs(45.05, -93, 40, movement.FastMoving, t0.Add(5*time.Minute)))
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("have %+v want nil", v)
	}
}

func TestDetectorGeocodeFailure(t *testing.T) {
	d := NewDetector(params.DefaultVisitConfig(), newMemKV(), &fakeGeocoder{err: errors.New("offline")}, 0)
	dwell(t, d, t0, 6)
	v, err := d.Flush(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v == nil {
		t.Fatal("want visit")
	}
	if v.Confidence != rgeo.ConfidenceLow || v.Source != rgeo.SourceCoordinates {
		t.Errorf("have %s/%s want %s/%s", v.Confidence, v.Source, rgeo.ConfidenceLow, rgeo.SourceCoordinates)
	}
	if v.VisitType != TypeQuickStop {
		t.Errorf("have %s want %s", v.VisitType, TypeQuickStop)
	}
}

func TestDetectorSurvivesRestart(t *testing.T) {
	kv := newMemKV()
	d := NewDetector(params.DefaultVisitConfig(), kv, nil, 0)
	dwell(t, d, t0, 10)

	d2 := NewDetector(params.DefaultVisitConfig(), kv, nil, 0)
	v, err := d2.Flush(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v == nil || v.ArrivalTime != t0.UnixMilli() {
		t.Errorf("stay not resumed: %+v", v)
	}
}

func TestDetectorMalformedState(t *testing.T) {
	kv := newMemKV()
	kv.Set(params.VisitKeyDetector, []byte("{not json"))
	d := NewDetector(params.DefaultVisitConfig(), kv, nil, 0)
	if _, err := d.Process(context.Background(), obs(45, -93, 0, movement.Stationary, t0)); err != nil {
		t.Fatal(err)
	}
	if cur := d.load(); cur == nil || cur.Arrival != t0.UnixMilli() {
		t.Errorf("malformed stay not replaced: %+v", cur)
	}
}

func TestTypeFor(t *testing.T) {
	c := params.DefaultVisitConfig()
	for d, want := range map[time.Duration]string{
		5 * time.Minute:  TypeQuickStop,
		15 * time.Minute: TypeVisit,
		3 * time.Hour:    TypeExtendedStay,
	} {
		if have := TypeFor(d, c.QuickStopMax, c.VisitMax); have != want {
			t.Errorf("%v: have %s want %s", d, have, want)
		}
	}
}

func TestDetectorGeocodeNoResult(t *testing.T) {
	d := NewDetector(params.DefaultVisitConfig(), newMemKV(), &fakeGeocoder{}, 0)
	dwell(t, d, t0, 21)
	v, err := d.Process(context.Background(), obs(45.05, -93, 40, movement.FastMoving, t0.Add(25*time.Minute)))
	if err != nil {
		t.Fatal(err)
	}
	if v == nil {
		t.Fatal("want visit")
	}
	if v.Confidence != rgeo.ConfidenceLow || v.Source != rgeo.SourceCoordinates || v.Place == "" {
		t.Errorf("want coordinates place, have %+v", v)
	}
}

func TestDetectorGeocodeTimeout(t *testing.T) {
	d := NewDetector(params.DefaultVisitConfig(), newMemKV(), slowGeocoder{}, 10*time.Millisecond)
	dwell(t, d, t0, 6)
	start := time.Now()
	v, err := d.Flush(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v == nil || v.Source != rgeo.SourceCoordinates {
		t.Fatalf("want coordinates visit, have %+v", v)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("lookup took %v, timeout not applied", elapsed)
	}
}
