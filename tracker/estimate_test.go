package tracker

import (
	"math"
	"testing"
	"time"
)

func TestEstimator(t *testing.T) {
	e := &estimator{}
	for i := 0; i < 5; i++ {
		est := e.observe(at(45, -93, t0.Add(time.Duration(i)*10*time.Second), nil), 4)
		if est != nil && (math.Abs(est.Latitude-45) > 0.1 || math.Abs(est.Longitude+93) > 0.1) {
			t.Errorf("estimate strayed: %+v", est)
		}
	}
	f := e.filter

	e.observe(at(45, -93, t0.Add(time.Hour), nil), 0)
	if f != nil && e.filter == f {
		t.Error("filter not reset after a long gap")
	}

	e.reset()
	if e.filter != nil || !e.last.IsZero() {
		t.Error("reset left state behind")
	}
}
