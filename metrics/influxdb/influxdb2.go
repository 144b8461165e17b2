// Package influxdb exports location updates and visits to an InfluxDB bucket.
package influxdb

import (
	"context"
	"log/slog"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/sink"
	"github.com/rotblauer/catmotion/visit"
)

const Measurement = "catmotion"

// Sink writes points through the asynchronous Write API,
// which buffers and flushes on its own schedule.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	wait     sync.WaitGroup
	logger   *slog.Logger
}

func NewSink(config *params.InfluxDBConfig) *Sink {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(config.URL, config.Token, opts)
	s := &Sink{
		client:   client,
		writeAPI: client.WriteAPI(config.Org, config.Bucket),
		logger:   slog.With("d", "influxdb", "bucket", config.Bucket),
	}

	// Errors returns a channel for reading errors which occurs during async writes.
	// Must be called before performing any writes for errors to be collected.
	// The chan is unbuffered and must be drained or the writer will block.
	errorsCh := s.writeAPI.Errors()
	s.wait.Add(1)
	go func() {
		defer s.wait.Done()
		for e := range errorsCh {
			if e != nil {
				s.logger.Error("InfluxDB write", "error", e)
			}
		}
	}()
	return s
}

func (s *Sink) PushLocationUpdate(ctx context.Context, u sink.LocationUpdate) error {
	s.writeAPI.WritePoint(LocationPoint(u))
	return nil
}

func (s *Sink) PushVisit(ctx context.Context, v *visit.Visit) error {
	s.writeAPI.WritePoint(VisitPoint(v))
	return nil
}

// Close flushes pending writes.
func (s *Sink) Close() {
	s.writeAPI.Flush()
	s.client.Close()
	s.wait.Wait()
}

func LocationPoint(u sink.LocationUpdate) *write.Point {
	p := influxdb2.NewPointWithMeasurement(Measurement).
		SetTime(u.Timestamp).
		AddTag("kind", sink.KindLocation).
		AddTag("state", u.MovementState.String()).
		AddField("latitude", u.Latitude).
		AddField("longitude", u.Longitude)
	if u.Speed != nil {
		p.AddField("speed", *u.Speed)
	}
	if u.Accuracy != nil {
		p.AddField("accuracy", *u.Accuracy)
	}
	if u.EnhancedPlace != "" {
		p.AddField("place", u.EnhancedPlace)
	}
	return p
}

func VisitPoint(v *visit.Visit) *write.Point {
	p := influxdb2.NewPointWithMeasurement(Measurement).
		SetTime(time.UnixMilli(v.ArrivalTime)).
		AddTag("kind", sink.KindVisit).
		AddTag("visit_type", v.VisitType).
		AddField("latitude", v.Latitude).
		AddField("longitude", v.Longitude).
		AddField("place", v.Place).
		AddField("average_speed", v.Metadata.AverageSpeed).
		AddField("max_speed", v.Metadata.MaxSpeed)
	if v.Duration != nil {
		p.AddField("duration", time.Duration(*v.Duration*int64(time.Millisecond)).Seconds())
	}
	return p
}
