package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/sink"
	"github.com/rotblauer/catmotion/visit"
)

func TestLocationPoint(t *testing.T) {
	speed := 3.5
	p := LocationPoint(sink.LocationUpdate{
		Latitude:      44.98,
		Longitude:     -93.25,
		Timestamp:     time.Unix(1734733193, 0),
		Speed:         &speed,
		MovementState: movement.SlowMoving,
	})
	line := write.PointToLineProtocol(p, time.Second)
	t.Log(line)
	for _, want := range []string{"catmotion,", "kind=location", "state=SLOW_MOVING", "speed=3.5", "latitude=44.98", " 1734733193"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "accuracy") {
		t.Errorf("unexpected accuracy field: %q", line)
	}
}

func TestVisitPoint(t *testing.T) {
	dur := int64(20 * 60 * 1000)
	line := write.PointToLineProtocol(VisitPoint(&visit.Visit{
		Place:       "Home",
		ArrivalTime: 1734733193000,
		Duration:    &dur,
		VisitType:   visit.TypeVisit,
	}), time.Second)
	t.Log(line)
	for _, want := range []string{"kind=visit", "visit_type=visit", `place="Home"`, "duration=1200"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}
