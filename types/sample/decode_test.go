package sample

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
)

type decodeTestCase struct {
	name                 string
	input                []byte
	expectScanMessages   int
	expectDecodeMessages int
	expectError          error
}

var gf1 = `{"type":"Feature","properties":{"UUID":"76170e959f967f40","Name":"ranga-moto-act3","Time":"2024-12-20T22:19:53.713Z","UnixTime":1734733193,"Speed":0.18,"Accuracy":4.1,"Activity":"Stationary"},"geometry":{"type":"Point","coordinates":[-113.4733911,47.178916]}}`
var gf2 = `{"type":"Feature","properties":{"UUID":"76170e959f967f40","Name":"ranga-moto-act3","UnixTime":1734733194,"Speed":0.18,"Accuracy":4,"Activity":"Stationary"},"geometry":{"type":"Point","coordinates":[-113.473419,47.1788913]}}`
var tp1 = `{"heading":-1,"speed":-1,"uuid":"5D37B5DA-6E0B-41FE-8A72-2BB681D661DA","long":-93.255531311035156,"time":"2024-12-20T22:09:01.458Z","lat":44.988998413085938,"accuracy":3.800194263458252,"name":"Rye16"}`
var tp2 = `{"heading":-1,"speed":1.2,"uuid":"5D37B5DA-6E0B-41FE-8A72-2BB681D661DA","long":-93.255531311035156,"time":"2024-12-20T22:09:06.964Z","lat":44.988998413085938,"accuracy":3.7969114780426025,"name":"Rye16"}`
var ex1 = `{"coords":{"latitude":10.794847,"longitude":106.6426474,"accuracy":12.5,"speed":3.4,"heading":0},"timestamp":1734733193000}`
var fl1 = `{"latitude":10.794847,"longitude":106.6426474,"timestamp":1734733194000}`

var featsNDJSON_T = decodeTestCase{
	name:                 "featsNDJSON",
	input:                []byte(fmt.Sprintf("%s\n%s\n", gf1, gf2)),
	expectScanMessages:   2,
	expectDecodeMessages: 2,
}
var featsArrayIndented_T = decodeTestCase{
	name:                 "featsArrayIndented",
	input:                []byte(fmt.Sprintf("[\n\t%s,\n\t%s\n]\n", gf1, gf2)),
	expectScanMessages:   2,
	expectDecodeMessages: 2,
}
var trackpointsJSONCompact_T = decodeTestCase{
	name:                 "trackpointsJSONCompact",
	input:                []byte(fmt.Sprintf("[%s,%s]", tp1, tp2)),
	expectScanMessages:   2,
	expectDecodeMessages: 2,
}
var expoAndFlatNDJSON_T = decodeTestCase{
	name:                 "expoAndFlatNDJSON",
	input:                []byte(fmt.Sprintf("%s\n%s\n", ex1, fl1)),
	expectScanMessages:   2,
	expectDecodeMessages: 2,
}
var geojsonFeatureCollectionCompact_T = decodeTestCase{
	name:                 "geojsonFeatureCollectionCompact",
	input:                []byte(`{"type": "FeatureCollection","features": [` + gf1 + "," + gf2 + `]}`),
	expectScanMessages:   1,
	expectDecodeMessages: 2,
}
var empty_T = decodeTestCase{
	name:        "empty",
	input:       []byte{},
	expectError: io.EOF,
}
var malformed_T = decodeTestCase{
	name:        "malformed",
	input:       []byte("malformed"),
	expectError: &json.SyntaxError{},
}
var outOfRange_T = decodeTestCase{
	name:               "outOfRange",
	input:              []byte(`{"latitude":91,"longitude":0,"timestamp":1734733194000}`),
	expectScanMessages: 1,
	expectError:        ErrInvalidSample,
}

func checkDecodeError(t *testing.T, c decodeTestCase, err error) {
	if c.expectError != nil {
		if err == nil {
			t.Fatalf("wanted error: %v (got: nil)", c.expectError)
		}
		var serr *json.SyntaxError
		if errors.As(c.expectError, &serr) {
			if !errors.As(err, &serr) {
				t.Fatalf("returned error: %v", err)
			}
		} else if !errors.Is(err, c.expectError) {
			t.Fatalf("returned error: %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScanMessages(t *testing.T) {
	for _, data := range []decodeTestCase{
		featsNDJSON_T,
		featsArrayIndented_T,
		trackpointsJSONCompact_T,
		expoAndFlatNDJSON_T,
		geojsonFeatureCollectionCompact_T,
		empty_T,
		malformed_T,
	} {
		t.Run(data.name, func(t *testing.T) {
			msgs := []json.RawMessage{}
			err := ScanJSONMessages(bytes.NewBuffer(data.input), func(message json.RawMessage) error {
				msgs = append(msgs, message)
				return nil
			})
			checkDecodeError(t, data, err)
			if data.expectError != nil {
				return
			}
			if len(msgs) != data.expectScanMessages {
				t.Errorf("returned %d messages, expected %d", len(msgs), data.expectScanMessages)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	for _, data := range []decodeTestCase{
		featsNDJSON_T,
		featsArrayIndented_T,
		trackpointsJSONCompact_T,
		expoAndFlatNDJSON_T,
		geojsonFeatureCollectionCompact_T,
		empty_T,
		malformed_T,
		outOfRange_T,
	} {
		t.Run(data.name, func(t *testing.T) {
			samples, err := Decode(bytes.NewBuffer(data.input))
			checkDecodeError(t, data, err)
			if data.expectError != nil {
				return
			}
			if len(samples) != data.expectDecodeMessages {
				t.Errorf("decoded %d samples, expected %d", len(samples), data.expectDecodeMessages)
			}
			for _, s := range samples {
				if err := s.Validate(); err != nil {
					t.Error(err)
				}
				t.Log(s)
			}
		})
	}
}

func TestDecodeFields(t *testing.T) {
	got, err := Decode(bytes.NewBufferString(gf2 + "\n" + tp1 + "\n" + ex1))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("have %d want 3", len(got))
	}

	// UnixTime is seconds.
	if have, want := got[0].Timestamp, int64(1734733194000); have != want {
		t.Errorf("feature timestamp: have %v want %v", have, want)
	}
	if have, want := got[0].Longitude, -113.473419; have != want {
		t.Errorf("feature longitude: have %v want %v", have, want)
	}

	// Trackpoint time is RFC3339 and speed -1 means unknown.
	if have, want := got[1].Timestamp, int64(1734732541458); have != want {
		t.Errorf("trackpoint timestamp: have %v want %v", have, want)
	}
	if _, ok := got[1].ReportedSpeed(); ok {
		t.Error("negative speed should not be reported")
	}
	if got[1].Accuracy == nil {
		t.Error("trackpoint accuracy missing")
	}

	if have, want := got[2].Timestamp, int64(1734733193000); have != want {
		t.Errorf("expo timestamp: have %v want %v", have, want)
	}
	if v, ok := got[2].ReportedSpeed(); !ok || v != 3.4 {
		t.Errorf("expo speed: have %v want %v", v, 3.4)
	}
	if have, want := got[2].Point(), [2]float64{106.6426474, 10.794847}; have != want {
		t.Errorf("expo point: have %v want %v", have, want)
	}
}
