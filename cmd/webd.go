/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"time"

	"github.com/rotblauer/catmotion/common"
	"github.com/rotblauer/catmotion/daemon/webd"
	"github.com/rotblauer/catmotion/delivery"
	"github.com/rotblauer/catmotion/metrics/influxdb"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/rgeo"
	"github.com/rotblauer/catmotion/sink"
	"github.com/rotblauer/catmotion/state"
	"github.com/rotblauer/catmotion/tracker"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var optHTTPAddr string
var optHTTPToken string
var optGeocode bool
var optStateTimeout time.Duration

// geocoderFlags are shared by the commands that run a tracker.
func geocoderFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("geocoder", pflag.ContinueOnError)
	fs.BoolVar(&optGeocode, "geocode", params.DefaultGeocoderConfig().Enabled,
		"Reverse geocode visits and stationary locations with the offline rgeo datasets")
	fs.DurationVar(&optStateTimeout, "state-timeout", 5*time.Second,
		"How long to wait for the state database lock")
	return fs
}

// newGeocoder returns nil if geocoding is disabled.
// The returned stop func is always safe to call.
func newGeocoder() (rgeo.ReverseGeocoder, func(), error) {
	if !optGeocode {
		return nil, func() {}, nil
	}
	backend, err := rgeo.Loaded()
	if err != nil {
		return nil, func() {}, err
	}
	cached := rgeo.NewCached(rgeo.NewGeocoder(backend), params.DefaultGeocoderConfig())
	go cached.Start()
	return cached, cached.Stop, nil
}

// newSinks wires the configured backends. It returns a nil Pusher if none are.
func newSinks(ctx context.Context, store sink.KV) (sink.Pusher, func()) {
	var sinks sink.Multi
	var closers []func()

	if cfg := params.DefaultSinkConfig(); cfg.Enabled() {
		h := sink.NewHTTP(cfg, store)
		go h.Run(ctx)
		sinks = append(sinks, h)
		slog.Info("Pushing to backend", "url", cfg.BackendURL)
	}
	if cfg := params.DefaultS3Config(); cfg.Enabled() {
		s, err := sink.NewS3(cfg)
		if err != nil {
			slog.Error("Failed to create S3 archive", "error", err)
		} else {
			sinks = append(sinks, s)
			slog.Info("Archiving to S3", "bucket", cfg.Bucket, "prefix", cfg.Prefix)
		}
	}
	if cfg := params.DefaultInfluxDBConfig(); cfg.Enabled() {
		s := influxdb.NewSink(cfg)
		sinks = append(sinks, s)
		closers = append(closers, s.Close)
		slog.Info("Pushing to InfluxDB", "url", cfg.URL, "bucket", cfg.Bucket)
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(sinks) == 0 {
		return nil, closeAll
	}
	return sinks, closeAll
}

// webdCmd represents the webd command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the tracking webserver",
	Long: `Runs the tracker behind an HTTP API.

Devices POST their location samples to /samples and read the cadence they should
deliver at from /delivery. Tracking is started and stopped with POST /tracking/start
and /tracking/stop. Browsers can watch movement state changes and visits on the /socat websocket.

A tracking session survives restarts: if one was active when the daemon stopped, it resumes.

Environment:

  CATMOTION_WEBD_TOKEN          Token required of devices (Bearer or ?api_token=).
  CATMOTION_BACKEND_URL         Journaling backend for location updates and visits.
  CATMOTION_BACKEND_TOKEN       Backend bearer token, or
  CATMOTION_BACKEND_JWT_SECRET  secret to sign one with, for CATMOTION_BACKEND_USER_ID.
  AWS_BUCKETNAME                S3 bucket archiving location updates and visits,
  CATMOTION_S3_PREFIX           under this key prefix.
  INFLUXDB_URL, INFLUXDB_TOKEN, INFLUXDB_ORG, INFLUXDB_BUCKET
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("webd.Run")

		store, err := state.Open(params.DatadirRoot, false, optStateTimeout)
		if err != nil {
			log.Fatalln(err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				slog.Error("Failed to close state", "error", err)
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		geocoder, stopGeocoder, err := newGeocoder()
		if err != nil {
			log.Fatalln(err)
		}
		defer stopGeocoder()

		pusher, closeSinks := newSinks(ctx, store)
		defer closeSinks()

		deliv := delivery.NewAdvertised()
		grants := &delivery.ReportedGrants{}
		t, err := tracker.New(tracker.Options{
			Config:      params.DefaultTrackerConfig(),
			Store:       store,
			Delivery:    deliv,
			Permissions: grants,
			Geocoder:    geocoder,
			Sink:        pusher,
		})
		if err != nil {
			log.Fatalln(err)
		}
		if err := t.Resume(ctx); err != nil && !errors.Is(err, tracker.ErrNotTracking) {
			slog.Error("Failed to resume tracking", "error", err)
		}

		config := params.DefaultWebDaemonConfig()
		config.DataDir = params.DatadirRoot
		config.Address = optHTTPAddr
		if optHTTPToken != "" {
			config.Token = optHTTPToken
		}
		server, err := webd.NewWebDaemon(config, t, deliv, grants)
		if err != nil {
			log.Fatalln(err)
		}
		if err := server.Start(); err != nil {
			log.Fatalln(err)
		}

		sig := <-common.Interrupted()
		slog.Warn("Received signal", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Stop(shutdownCtx); err != nil {
			slog.Error("Failed to stop web daemon", "error", err)
		}
		// Tracking is left active so the session resumes on the next run.
		t.Wait()
	},
}

func init() {
	rootCmd.AddCommand(webdCmd)

	defaults := params.DefaultWebDaemonConfig()

	pFlags := webdCmd.PersistentFlags()
	pFlags.AddFlagSet(geocoderFlags())
	pFlags.StringVar(&optHTTPAddr, "address", defaults.Address, "HTTP address to listen on")
	pFlags.StringVar(&optHTTPToken, "token", "", "Token required of devices (overrides CATMOTION_WEBD_TOKEN)")
}
