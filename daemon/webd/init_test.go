package webd

import (
	"os"
	"testing"
	"time"

	"github.com/rotblauer/catmotion/delivery"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/state"
	"github.com/rotblauer/catmotion/tracker"
)

// newTestWebDaemon creates a new WebDaemon over a fresh state database.
// If datadir is empty, one will be provided for you.
func newTestWebDaemon(t *testing.T, datadir string) (daemon *WebDaemon, teardown func() error) {
	t.Helper()
	config := params.DefaultTestWebDaemonConfig()
	if datadir != "" {
		config.DataDir = datadir
	} else {
		tmpd, err := os.MkdirTemp(os.TempDir(), "catmotion-webd-test")
		if err != nil {
			t.Fatal(err)
		}
		config.DataDir = tmpd
	}
	store, err := state.Open(config.DataDir, false, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	trackerConfig := params.DefaultTrackerConfig()
	trackerConfig.ReconfigureSettle = 0
	d := delivery.NewAdvertised()
	g := &delivery.ReportedGrants{}
	c, err := tracker.New(tracker.Options{
		Config:      trackerConfig,
		Store:       store,
		Delivery:    d,
		Permissions: g,
		Clock:       tracker.SampleClock,
	})
	if err != nil {
		t.Fatal(err)
	}
	daemon, err = NewWebDaemon(config, c, d, g)
	if err != nil {
		t.Fatal(err)
	}
	teardown = func() error {
		c.Wait()
		if err := store.Close(); err != nil {
			return err
		}
		return os.RemoveAll(config.DataDir)
	}
	return daemon, teardown
}
