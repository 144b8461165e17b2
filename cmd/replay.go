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
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/catmotion/common"
	"github.com/rotblauer/catmotion/delivery"
	"github.com/rotblauer/catmotion/events"
	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/state"
	"github.com/rotblauer/catmotion/stream"
	"github.com/rotblauer/catmotion/tracker"
	"github.com/rotblauer/catmotion/types/sample"
	"github.com/rotblauer/catmotion/visit"
	"github.com/spf13/cobra"
)

var optReplaySort bool
var optReplayPersist bool

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Replay recorded samples through the tracker",
	Long: `Replays recorded location samples through a fresh tracking session
and prints every movement state change and visit.

Samples are read from the file argument, or stdin if none is given.
Accepted formats are the same as the webd /samples endpoint:
a JSON sample or array, NDJSON, Expo location objects, or GeoJSON point features.

Time is taken from the samples, so a day of samples replays in moments.
By default the session lives in a temporary directory; use --persist to replay into the datadir.

Examples:

  catmotion replay drive.ndjson
  zcat week.json.gz | catmotion replay --geocode=false
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				log.Fatalln(err)
			}
			defer f.Close()
			in = f
		}
		samples, err := sample.Decode(in)
		if err != nil {
			log.Fatalln(err)
		}
		if optReplaySort {
			sort.SliceStable(samples, func(i, j int) bool {
				return samples[i].Timestamp < samples[j].Timestamp
			})
		}

		dir := params.DatadirRoot
		if !optReplayPersist {
			dir, err = os.MkdirTemp("", "catmotion-replay-")
			if err != nil {
				log.Fatalln(err)
			}
			defer os.RemoveAll(dir)
		}
		store, err := state.Open(dir, false, optStateTimeout)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()

		geocoder, stopGeocoder, err := newGeocoder()
		if err != nil {
			log.Fatalln(err)
		}
		defer stopGeocoder()

		config := params.DefaultTrackerConfig()
		config.ReconfigureSettle = 0
		t, err := tracker.New(tracker.Options{
			Config:      config,
			Store:       store,
			Delivery:    delivery.NewSimulated(),
			Permissions: delivery.Grants{Foreground: true, Background: true},
			Geocoder:    geocoder,
			Clock:       tracker.SampleClock,
		})
		if err != nil {
			log.Fatalln(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		printer := newReplayPrinter(os.Stdout)
		printer.run()
		defer printer.stop()

		if err := t.Start(ctx); err != nil {
			log.Fatalln(err)
		}

		interrupted := common.Interrupted()
		valid := stream.Filter(ctx, func(s sample.LocationSample) bool {
			if err := s.Validate(); err != nil {
				slog.Warn("Skipping sample", "error", err)
				return false
			}
			return true
		}, stream.Slice(ctx, samples))

		n := 0
		var info movement.Info
	loop:
		for s := range valid {
			select {
			case sig := <-interrupted:
				slog.Warn("Received signal", "signal", sig)
				cancel()
				break loop
			default:
			}
			info, err = t.OnSample(ctx, s)
			if err != nil {
				slog.Error("Failed to handle sample", "sample", s, "error", err)
			}
			n++
		}

		// Stopping closes any open visit.
		if err := t.Stop(context.Background()); err != nil {
			slog.Error("Failed to stop tracking", "error", err)
		}
		t.Wait()
		printer.stop()

		fmt.Fprintf(os.Stdout, "Replayed %s of %s samples: %s state changes, %s visits, last state %s\n",
			humanize.Comma(int64(n)), humanize.Comma(int64(len(samples))),
			humanize.Comma(int64(printer.changes)), humanize.Comma(int64(printer.visits)),
			info.State)
	},
}

// replayPrinter writes state changes and visits as the tracker emits them.
type replayPrinter struct {
	w       io.Writer
	changes int
	visits  int

	last  time.Time
	quit  chan struct{}
	wg    sync.WaitGroup
	stop  func()
}

func newReplayPrinter(w io.Writer) *replayPrinter {
	p := &replayPrinter{w: w, quit: make(chan struct{})}
	once := sync.Once{}
	p.stop = func() {
		once.Do(func() {
			close(p.quit)
			p.wg.Wait()
		})
	}
	return p
}

func (p *replayPrinter) run() {
	changes := make(chan movement.StateChange)
	visits := make(chan *visit.Visit)
	changesSub := events.StateChangedFeed.Subscribe(changes)
	visitsSub := events.VisitFeed.Subscribe(visits)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer changesSub.Unsubscribe()
		defer visitsSub.Unsubscribe()
		for {
			select {
			case ch := <-changes:
				p.changes++
				after := ""
				if !p.last.IsZero() {
					after = " after " + common.FormatInterval(ch.At.Sub(p.last))
				}
				p.last = ch.At
				fmt.Fprintf(p.w, "%s  %s -> %s%s (%.1f km/h at %.5f,%.5f)\n",
					ch.At.Format(time.RFC3339), ch.From, ch.To, after,
					ch.SpeedKmh, ch.Latitude, ch.Longitude)
			case v := <-visits:
				p.visits++
				dur := ""
				if v.Duration != nil {
					dur = common.FormatInterval(time.Duration(*v.Duration) * time.Millisecond)
				}
				fmt.Fprintf(p.w, "%s  visit %s %q %s (%s samples, %s confidence)\n",
					v.Arrival().Format(time.RFC3339), v.VisitType, v.Place, dur,
					humanize.Comma(int64(v.Metadata.Samples)), v.Confidence)
			case <-p.quit:
				return
			}
		}
	}()
}

func init() {
	rootCmd.AddCommand(replayCmd)

	pFlags := replayCmd.PersistentFlags()
	pFlags.AddFlagSet(geocoderFlags())
	pFlags.BoolVar(&optReplaySort, "sort", true, "Sort samples by timestamp before replaying")
	pFlags.BoolVar(&optReplayPersist, "persist", false, "Replay into the datadir state instead of a temporary one")
}
