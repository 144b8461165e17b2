// Package tracker owns the persisted tracking session. It feeds delivered
// samples through the monitoring engine and the visit detector, and keeps
// the location provider's delivery cadence matched to the movement state.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rotblauer/catmotion/delivery"
	"github.com/rotblauer/catmotion/events"
	"github.com/rotblauer/catmotion/monitor"
	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/rgeo"
	"github.com/rotblauer/catmotion/sink"
	"github.com/rotblauer/catmotion/types/sample"
	"github.com/rotblauer/catmotion/visit"
)

type Options struct {
	Config      *params.TrackerConfig
	Store       Store
	Delivery    Delivery
	Permissions Permissions

	// Geocoder and Sink are optional.
	Geocoder rgeo.ReverseGeocoder
	Sink     sink.Pusher

	// Clock defaults to WallClock.
	Clock Clock
}

// EnhancedLocation is the last sample that got a refined place lookup.
type EnhancedLocation struct {
	Sample sample.LocationSample `json:"sample"`
	State  movement.State        `json:"state"`
	Place  rgeo.Place            `json:"place"`
}

// Controller is the tracking session controller.
// Its operations are serialized; all cross-call state lives in the store.
type Controller struct {
	config      *params.TrackerConfig
	store       Store
	delivery    Delivery
	permissions Permissions
	geocoder    rgeo.ReverseGeocoder
	sink        sink.Pusher
	clock       Clock

	engine *monitor.Engine
	visits *visit.Detector

	mu        sync.Mutex
	dedup     func(sample.LocationSample) bool
	estimator estimator

	// Waiting tracks background pushes.
	Waiting sync.WaitGroup

	logger *slog.Logger
}

func New(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.New("tracker: nil store")
	}
	if opts.Delivery == nil {
		return nil, errors.New("tracker: nil delivery")
	}
	if opts.Permissions == nil {
		return nil, errors.New("tracker: nil permissions")
	}
	if opts.Config == nil {
		opts.Config = params.DefaultTrackerConfig()
	}
	if opts.Clock == nil {
		opts.Clock = WallClock
	}
	return &Controller{
		config:      opts.Config,
		store:       opts.Store,
		delivery:    opts.Delivery,
		permissions: opts.Permissions,
		geocoder:    opts.Geocoder,
		sink:        opts.Sink,
		clock:       opts.Clock,
		engine:      monitor.NewEngine(opts.Config.Monitor),
		visits:      visit.NewDetector(opts.Config.Visit, opts.Store, opts.Geocoder, opts.Config.GeocodeTimeout),
		dedup:       newDedupePassFunc(opts.Config.DedupeCacheSize),
		logger:      slog.With("d", "tracker"),
	}, nil
}

// Start begins tracking in FastMoving.
// It returns ErrPermissionDenied or ErrDeliveryUnavailable without creating any state.
// Starting while delivery is already active is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.permissions.RequestForeground(ctx) {
		c.logger.Warn("Foreground location permission denied")
		return fmt.Errorf("%w: foreground", ErrPermissionDenied)
	}
	if !c.permissions.RequestBackground(ctx) {
		c.logger.Warn("Background location permission denied")
		return fmt.Errorf("%w: background", ErrPermissionDenied)
	}
	if !c.delivery.Available(ctx) {
		c.logger.Error("Sample delivery is not available")
		return ErrDeliveryUnavailable
	}
	if c.delivery.IsDelivering(ctx) {
		c.logger.Info("Already tracking")
		return nil
	}

	// Clear any prior configuration and session left by a crash.
	if err := c.clearSession(); err != nil {
		c.logger.Warn("Failed to clear prior session", "error", err)
	}
	c.resetSampleFilters()

	cfg := delivery.ConfigFor(movement.FastMoving)
	if err := c.delivery.Start(ctx, cfg); err != nil {
		if errors.Is(err, delivery.ErrUnavailable) {
			return fmt.Errorf("%w: %v", ErrDeliveryUnavailable, err)
		}
		return fmt.Errorf("start delivery: %w", err)
	}

	now := c.clock(nil)
	if err := c.saveSession(NewSession(now)); err != nil {
		c.logger.Error("Failed to persist new session, stopping delivery", "error", err)
		if serr := c.delivery.Stop(ctx); serr != nil {
			c.logger.Error("Failed to stop delivery", "error", serr)
		}
		_ = c.clearSession()
		return fmt.Errorf("persist session: %w", err)
	}
	if err := c.setFingerprint(cfg); err != nil {
		c.logger.Warn("Failed to persist delivery fingerprint", "error", err)
	}
	c.logger.Info("Tracking started", "delivery", cfg.String())
	return nil
}

// Stop ends delivery if it is active and clears the session.
// An open stay is flushed and, if it qualifies, emitted as a visit.
func (c *Controller) Stop(ctx context.Context) error {
	v, err := c.stop(ctx)
	if v != nil {
		c.emitVisit(v)
	}
	if err != nil {
		return err
	}
	c.logger.Info("Tracking stopped")
	return nil
}

// stop returns the flushed visit, if any, to be emitted once the lock is released.
func (c *Controller) stop(ctx context.Context) (*visit.Visit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.delivery.IsDelivering(ctx) {
		if err := c.delivery.Stop(ctx); err != nil {
			return nil, fmt.Errorf("stop delivery: %w", err)
		}
	}

	v, err := c.visits.Flush(ctx)
	if err != nil {
		c.logger.Warn("Failed to flush open stay", "error", err)
	}
	c.resetSampleFilters()
	if err := c.clearSession(); err != nil {
		return v, fmt.Errorf("clear session: %w", err)
	}
	return v, nil
}

// resetSampleFilters forgets the samples seen by the dedupe cache and the estimator.
func (c *Controller) resetSampleFilters() {
	c.dedup = newDedupePassFunc(c.config.DedupeCacheSize)
	c.estimator.reset()
}

// Resume restarts delivery for a session persisted by a previous process,
// at the session's cadence. It returns ErrNotTracking if there is no session.
// Permissions are not requested again.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sessionExists() {
		return ErrNotTracking
	}
	if c.delivery.IsDelivering(ctx) {
		return nil
	}
	if !c.delivery.Available(ctx) {
		return ErrDeliveryUnavailable
	}
	s := c.loadSession(c.clock(nil))
	cfg := delivery.ConfigFor(s.State)
	if err := c.delivery.Start(ctx, cfg); err != nil {
		return fmt.Errorf("start delivery: %w", err)
	}
	if err := c.setFingerprint(cfg); err != nil {
		c.logger.Warn("Failed to persist delivery fingerprint", "error", err)
	}
	c.logger.Info("Tracking resumed", "state", s.State, "delivery", cfg.String())
	return nil
}

// Tracking reports whether samples are being delivered.
func (c *Controller) Tracking(ctx context.Context) bool {
	return c.delivery.IsDelivering(ctx)
}

// OnSample processes one delivered sample and persists the resulting session.
// Duplicate samples and samples older than the last stored location are ignored.
func (c *Controller) OnSample(ctx context.Context, s sample.LocationSample) (movement.Info, error) {
	return c.onSample(ctx, s, c.clock)
}

// OnSamples processes a batch of samples in order and returns the info after the last.
// All but the last sample were queued on the device, so they are evaluated at
// their own time; a delivered backlog can then complete wait and monitoring windows.
// It stops at ErrNotTracking; other errors are joined and processing goes on.
func (c *Controller) OnSamples(ctx context.Context, samples []sample.LocationSample) (movement.Info, error) {
	var info movement.Info
	var errs []error
	for i, s := range samples {
		clock := c.clock
		if i < len(samples)-1 {
			clock = SampleClock
		}
		got, err := c.onSample(ctx, s, clock)
		if errors.Is(err, ErrNotTracking) {
			return info, err
		}
		if err != nil {
			errs = append(errs, err)
		}
		// A sample whose session failed to persist was still processed.
		if got.Timestamp != 0 {
			info = got
		}
	}
	return info, errors.Join(errs...)
}

func (c *Controller) onSample(ctx context.Context, s sample.LocationSample, clock Clock) (movement.Info, error) {
	if err := s.Validate(); err != nil {
		return movement.Info{}, err
	}

	out, err := c.processSample(ctx, s, clock)
	if err != nil {
		return movement.Info{}, err
	}
	if !out.processed {
		return out.info, nil
	}

	if out.change != nil {
		events.StateChangedFeed.Send(*out.change)
	}
	if out.completed != nil {
		c.emitVisit(out.completed)
	}
	events.SampleFeed.Send(events.ProcessedSample{Sample: s, Info: out.info})

	if out.saveErr != nil {
		return out.info, fmt.Errorf("persist session: %w", out.saveErr)
	}
	return out.info, nil
}

// sampleOutcome is what processSample leaves to be published once the lock is released.
type sampleOutcome struct {
	info      movement.Info
	processed bool
	change    *movement.StateChange
	completed *visit.Visit
	saveErr   error
}

func (c *Controller) processSample(ctx context.Context, s sample.LocationSample, clock Clock) (sampleOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.delivery.IsDelivering(ctx) {
		return sampleOutcome{}, ErrNotTracking
	}

	now := clock(&s)
	sess := c.loadSession(now)

	if sess.LastLocation != nil && s.Timestamp < sess.LastLocation.Timestamp {
		c.logger.Debug("Ignoring out of order sample", "sample", s, "last", sess.LastLocation)
		return sampleOutcome{info: c.info(sess, now)}, nil
	}
	if !c.dedup(s) {
		c.logger.Debug("Ignoring duplicate sample", "sample", s)
		return sampleOutcome{info: c.info(sess, now)}, nil
	}

	// Clock skew (or a replayed sample) can put the session in the future.
	if sess.StateEnteredAt > now.UnixMilli() {
		sess.StateEnteredAt = now.UnixMilli()
	}
	if sess.PhaseData.LastCheckAt > now.UnixMilli() {
		sess.PhaseData.LastCheckAt = now.UnixMilli()
	}

	analysis := Analyze(s, sess.LastLocation)
	res := c.engine.Step(sess.State, monitor.Input{
		Sample:   s,
		SpeedKmh: analysis.SpeedKmh,
		Previous: sess.LastLocation,
		Now:      now,
		Data:     sess.PhaseData,
	})

	out := sampleOutcome{processed: true}
	if res.Changed {
		out.change = &movement.StateChange{
			From:      sess.State,
			To:        res.Next,
			At:        now,
			SpeedKmh:  analysis.SpeedKmh,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
		}
		sess.State = res.Next
		sess.StateEnteredAt = now.UnixMilli()
	}
	sess.PhaseData = res.Data
	sess.SpeedBuffer = trimBuffer(append(sess.SpeedBuffer, analysis.SpeedKmh), c.config.SpeedBufferSize)
	sess.LastSpeed = movement.Average(sess.SpeedBuffer)

	completed, err := c.visits.Process(ctx, visit.Observation{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		SpeedKmh:  analysis.SpeedKmh,
		State:     sess.State,
		Timestamp: s.Timestamp,
	})
	if err != nil {
		c.logger.Warn("Visit detection failed", "error", err)
	}
	out.completed = completed

	entry := HistoryEntry{
		Sample:   s,
		State:    sess.State,
		SpeedKmh: analysis.SpeedKmh,
		Estimate: c.estimator.observe(s, analysis.SpeedKmh),
	}
	if res.Refine {
		if place := c.refine(ctx, s, sess.State); place != nil {
			entry.Place = place.Place
		}
	}

	if err := c.reconfigure(ctx, sess.State); err != nil {
		c.logger.Error("Failed to reconfigure delivery", "state", sess.State, "error", err)
	}

	sess.LastLocation = &s
	out.saveErr = c.saveSession(sess)
	if out.saveErr != nil {
		c.logger.Error("Failed to persist session", "error", out.saveErr)
	}
	if err := c.appendHistory(ctx, entry); err != nil {
		c.logger.Warn("Failed to append location history", "error", err)
	}

	out.info = c.info(sess, now)
	return out, nil
}

// CurrentMovementInfo returns the movement snapshot of the persisted session.
// It returns the zero Info if not tracking.
func (c *Controller) CurrentMovementInfo(ctx context.Context) movement.Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sessionExists() {
		return movement.Info{}
	}
	now := c.clock(nil)
	return c.info(c.loadSession(now), now)
}

// CurrentVisit returns the open stay as a provisional visit, if it already qualifies.
func (c *Controller) CurrentVisit(ctx context.Context) *visit.Visit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visits.Current(ctx)
}

// LastEnhancedLocation returns the last refined place lookup, if any.
func (c *Controller) LastEnhancedLocation() (*EnhancedLocation, error) {
	b := c.enhanced()
	if b == nil {
		return nil, nil
	}
	e := &EnhancedLocation{}
	if err := json.Unmarshal(b, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Controller) enhanced() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(params.LocationKeyEnhanced)
}

// Wait blocks until background pushes are done.
func (c *Controller) Wait() {
	c.Waiting.Wait()
}

func (c *Controller) info(s *Session, now time.Time) movement.Info {
	info := movement.Info{
		State:           s.State,
		AverageSpeedKmh: movement.Average(s.SpeedBuffer),
	}
	if n := len(s.SpeedBuffer); n > 0 {
		info.SpeedKmh = s.SpeedBuffer[n-1]
	}
	if since := now.UnixMilli() - s.StateEnteredAt; since > 0 {
		info.TimeSinceStateChange = time.Duration(since) * time.Millisecond
	}
	if s.LastLocation != nil {
		info.Timestamp = s.LastLocation.Timestamp
	}
	return info
}

// refine looks up the sample's place, stores it as the last enhanced
// location and pushes a location update. Failures leave the plain coordinates.
func (c *Controller) refine(ctx context.Context, s sample.LocationSample, state movement.State) *rgeo.Place {
	if c.geocoder == nil {
		return nil
	}
	gctx, cancel := context.WithTimeout(ctx, c.config.GeocodeTimeout)
	place, err := c.geocoder.ReverseGeocode(gctx, s.Latitude, s.Longitude)
	cancel()
	if err != nil || place == nil {
		c.logger.Warn("Refined place lookup failed", "sample", s, "error", err)
		return nil
	}
	c.logger.Info("Refined place", "place", place.Place, "confidence", place.Confidence, "state", state)

	b, err := json.Marshal(EnhancedLocation{Sample: s, State: state, Place: *place})
	if err == nil {
		err = c.store.Set(params.LocationKeyEnhanced, b)
	}
	if err != nil {
		c.logger.Warn("Failed to store enhanced location", "error", err)
	}

	u := sink.LocationUpdate{
		Latitude:            s.Latitude,
		Longitude:           s.Longitude,
		Timestamp:           s.Time().UTC(),
		Accuracy:            s.Accuracy,
		Speed:               s.Speed,
		MovementState:       state,
		EnhancedPlace:       place.Place,
		EnhancedAddress:     place.Address,
		GeocodingSource:     place.Source,
		GeocodingConfidence: place.Confidence,
	}
	c.push(sink.KindLocation, func(ctx context.Context, p sink.Pusher) error {
		return p.PushLocationUpdate(ctx, u)
	})
	return place
}

func (c *Controller) emitVisit(v *visit.Visit) {
	events.VisitFeed.Send(v)
	c.push(sink.KindVisit, func(ctx context.Context, p sink.Pusher) error {
		return p.PushVisit(ctx, v)
	})
}

// push runs fn against the sink in the background.
func (c *Controller) push(kind string, fn func(ctx context.Context, p sink.Pusher) error) {
	if c.sink == nil {
		return
	}
	c.Waiting.Add(1)
	go func() {
		defer c.Waiting.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.config.PushTimeout)
		defer cancel()
		if err := fn(ctx, c.sink); err != nil {
			c.logger.Warn("Push failed", "kind", kind, "error", err)
			return
		}
		c.logger.Debug("Pushed", "kind", kind)
	}()
}
