package sample

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tidwall/gjson"
)

var ErrDecodeSample = errors.New("could not decode as sample or expo location or geojson feature")

// ScanJSONMessages reads a stream of JSON messages from an io.Reader,
// and calls onEach for each decoded message.
// If the stream is encoded as a JSON array, onEach is called for each element in the array.
// Newline-delimited objects work too.
func ScanJSONMessages(body io.Reader, onEach func(message json.RawMessage) error) error {
	buf := bufio.NewReader(body)
	peek, err := buf.Peek(1)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewBuffer(peek))
	t, err := dec.Token()
	if err != nil {
		return err
	}
	dec = json.NewDecoder(buf)
	if t == json.Delim('[') {
		if _, err := dec.Token(); err != nil {
			return err
		}
	}
	for dec.More() {
		var msg json.RawMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("decode err: %w", err)
		}
		if err := onEach(msg); err != nil {
			return err
		}
	}
	return nil
}

// DecodeObject decodes a single JSON object into one or more samples.
// Supported shapes:
//
//	{"latitude":..,"longitude":..,"timestamp":<ms>,"accuracy":..,"speed":..}
//	{"lat":..,"long":..,"time":"<RFC3339>","speed":..}      (legacy trackpoint)
//	{"coords":{"latitude":..,"longitude":..,"speed":..},"timestamp":<ms>} (expo)
//	{"type":"Feature","geometry":{"coordinates":[lon,lat]},"properties":{"Time":..}}
//	{"type":"FeatureCollection","features":[...]}
func DecodeObject(msg json.RawMessage, onEach func(s LocationSample) error) error {
	parsed := gjson.ParseBytes(msg)
	if !parsed.IsObject() {
		return fmt.Errorf("%w: not an object", ErrDecodeSample)
	}

	switch parsed.Get("type").String() {
	case "FeatureCollection":
		feats := parsed.Get("features")
		if !feats.Exists() {
			return errors.New("no 'features' attribute present in feature collection")
		}
		for _, f := range feats.Array() {
			if err := DecodeObject([]byte(f.Raw), onEach); err != nil {
				return err
			}
		}
		return nil
	case "Feature":
		s, err := decodeFeature(parsed)
		if err != nil {
			return err
		}
		return onEach(s)
	}

	var s LocationSample
	if coords := parsed.Get("coords"); coords.Exists() {
		s = decodeFlat(coords)
		s.Timestamp = decodeTimestamp(parsed, "timestamp")
	} else {
		s = decodeFlat(parsed)
		s.Timestamp = decodeTimestamp(parsed, "timestamp", "time")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	return onEach(s)
}

// Decode reads every sample in the stream.
func Decode(body io.Reader) ([]LocationSample, error) {
	out := []LocationSample{}
	err := ScanJSONMessages(body, func(msg json.RawMessage) error {
		return DecodeObject(msg, func(s LocationSample) error {
			out = append(out, s)
			return nil
		})
	})
	return out, err
}

func decodeFlat(r gjson.Result) LocationSample {
	s := LocationSample{
		Latitude:  firstOf(r, "latitude", "lat").Float(),
		Longitude: firstOf(r, "longitude", "lng", "long", "lon").Float(),
	}
	if v := firstOf(r, "accuracy"); v.Exists() && v.Type == gjson.Number {
		s.Accuracy = Float64(v.Float())
	}
	if v := firstOf(r, "speed"); v.Exists() && v.Type == gjson.Number {
		s.Speed = Float64(v.Float())
	}
	return s
}

func decodeFeature(r gjson.Result) (LocationSample, error) {
	coords := r.Get("geometry.coordinates").Array()
	if len(coords) < 2 {
		return LocationSample{}, fmt.Errorf("%w: feature has no point coordinates", ErrDecodeSample)
	}
	props := r.Get("properties")
	s := LocationSample{
		Longitude: coords[0].Float(),
		Latitude:  coords[1].Float(),
		Timestamp: decodeTimestamp(props, "Time", "UnixTime"),
	}
	if v := props.Get("Accuracy"); v.Type == gjson.Number {
		s.Accuracy = Float64(v.Float())
	}
	if v := props.Get("Speed"); v.Type == gjson.Number {
		s.Speed = Float64(v.Float())
	}
	return s, s.Validate()
}

// decodeTimestamp returns unix milliseconds from the first present key.
// Numbers are taken as milliseconds, except for keys named UnixTime (seconds).
// Strings are parsed as RFC3339.
func decodeTimestamp(r gjson.Result, keys ...string) int64 {
	for _, k := range keys {
		v := r.Get(k)
		if !v.Exists() {
			continue
		}
		switch v.Type {
		case gjson.Number:
			if k == "UnixTime" {
				return v.Int() * 1000
			}
			return v.Int()
		case gjson.String:
			t, err := time.Parse(time.RFC3339, v.String())
			if err == nil {
				return t.UnixMilli()
			}
		}
	}
	return 0
}

func firstOf(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
