package movement

import (
	"encoding/json"
	"testing"
)

func TestDetermineState(t *testing.T) {
	cases := []struct {
		speed float64
		want  State
	}{
		{0, Stationary},
		{0.9, Stationary},
		{1.0, SlowMoving},
		{4.99, SlowMoving},
		{5.0, FastMoving},
		{120, FastMoving},
	}
	for _, c := range cases {
		if have := DetermineState(c.speed); have != c.want {
			t.Errorf("DetermineState(%v): have %v want %v", c.speed, have, c.want)
		}
	}
}

func TestThresholdOrdering(t *testing.T) {
	for i := 1; i < len(States); i++ {
		lo, hi := States[i-1].Profile().ThresholdKmh, States[i].Profile().ThresholdKmh
		if lo >= hi {
			t.Errorf("%v threshold %v not below %v threshold %v", States[i-1], lo, States[i], hi)
		}
	}
}

func TestValidateChangeRequiresEvidence(t *testing.T) {
	for _, buf := range [][]float64{nil, {}, {0.1}, {0.1, 0.2}} {
		for _, from := range States {
			for _, to := range States {
				if ValidateChange(from, to, buf, Average(buf)) {
					t.Errorf("%v -> %v accepted with %d samples", from, to, len(buf))
				}
			}
		}
	}
}

func TestValidateChange(t *testing.T) {
	cases := []struct {
		name     string
		from, to State
		buf      []float64
		want     bool
	}{
		{"fast->stationary low", FastMoving, Stationary, []float64{0.1, 0.2, 0.3}, true},
		{"fast->stationary avg too high", FastMoving, Stationary, []float64{0.1, 0.2, 1.9}, false},
		{"fast->stationary peak too high", FastMoving, Stationary, []float64{0, 0, 0, 0, 0, 2.0}, false},
		{"fast->slow ok", FastMoving, SlowMoving, []float64{2, 2.5, 3.5}, true},
		{"fast->slow peak", FastMoving, SlowMoving, []float64{1, 1, 5}, false},
		{"fast->slow avg", FastMoving, SlowMoving, []float64{3, 3, 3}, false},
		{"slow->stationary ok", SlowMoving, Stationary, []float64{0.2, 0.3, 0.9}, true},
		{"slow->stationary peak", SlowMoving, Stationary, []float64{0, 0, 1}, false},
		{"stationary->slow ok", Stationary, SlowMoving, []float64{0.6, 1.5, 2}, true},
		{"stationary->slow floor", Stationary, SlowMoving, []float64{0.5, 2, 3}, false},
		{"stationary->slow avg", Stationary, SlowMoving, []float64{0.6, 0.7, 1.7}, false},
		{"stationary->fast ok", Stationary, FastMoving, []float64{3.1, 6, 9}, true},
		{"stationary->fast floor", Stationary, FastMoving, []float64{3, 9, 9}, false},
		{"slow->fast ok", SlowMoving, FastMoving, []float64{4, 6, 8}, true},
		{"slow->fast avg", SlowMoving, FastMoving, []float64{4, 5, 6}, false},
		{"same state", SlowMoving, SlowMoving, []float64{0, 0, 0}, true},
	}
	for _, c := range cases {
		if have := ValidateChange(c.from, c.to, c.buf, Average(c.buf)); have != c.want {
			t.Errorf("%s: have %v want %v (avg=%v)", c.name, have, c.want, Average(c.buf))
		}
	}
}

func TestStateJSON(t *testing.T) {
	for _, s := range States {
		b, err := json.Marshal(s)
		if err != nil {
			t.Fatal(err)
		}
		var got State
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatal(err)
		}
		if got != s {
			t.Errorf("have %v want %v", got, s)
		}
	}
	if b, _ := json.Marshal(FastMoving); string(b) != `"FAST_MOVING"` {
		t.Errorf("have %s want %s", b, `"FAST_MOVING"`)
	}
	var s State
	if err := json.Unmarshal([]byte(`"RUNNING"`), &s); err == nil {
		t.Error("expected error for unknown state")
	}
}
