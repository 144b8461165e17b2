package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
)

var ErrUnavailable = errors.New("delivery unavailable")

// Status is a snapshot of a delivery capability.
type Status struct {
	Delivering bool      `json:"delivering"`
	Config     *Config   `json:"config,omitempty"`
	Since      time.Time `json:"since"`
	Starts     int       `json:"starts"`
	Stops      int       `json:"stops"`
}

// Simulated is an in-process delivery capability.
// It records the requested cadence and counts start/stop cycles.
type Simulated struct {
	mu sync.Mutex

	// Unavailable makes the capability report itself as unregistered.
	Unavailable bool

	status Status
}

func NewSimulated() *Simulated {
	return &Simulated{}
}

func (s *Simulated) Available(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.Unavailable
}

func (s *Simulated) Start(ctx context.Context, c Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return ErrUnavailable
	}
	cfg := c
	s.status.Delivering = true
	s.status.Config = &cfg
	s.status.Since = time.Now()
	s.status.Starts++
	return nil
}

func (s *Simulated) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Delivering {
		return nil
	}
	s.status.Delivering = false
	s.status.Config = nil
	s.status.Since = time.Now()
	s.status.Stops++
	return nil
}

func (s *Simulated) IsDelivering(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Delivering
}

func (s *Simulated) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.status
	if out.Config != nil {
		cfg := *out.Config
		out.Config = &cfg
	}
	return out
}

// Advertised is a delivery capability for remote devices.
// Devices learn the requested cadence by polling Status or subscribing to changes.
type Advertised struct {
	*Simulated
	feed event.FeedOf[Status]
}

func NewAdvertised() *Advertised {
	return &Advertised{Simulated: NewSimulated()}
}

func (a *Advertised) Start(ctx context.Context, c Config) error {
	if err := a.Simulated.Start(ctx, c); err != nil {
		return err
	}
	a.feed.Send(a.Status())
	return nil
}

func (a *Advertised) Stop(ctx context.Context) error {
	was := a.IsDelivering(ctx)
	if err := a.Simulated.Stop(ctx); err != nil {
		return err
	}
	if was {
		a.feed.Send(a.Status())
	}
	return nil
}

// SubscribeStatus delivers every status change to ch.
func (a *Advertised) SubscribeStatus(ch chan<- Status) event.Subscription {
	return a.feed.Subscribe(ch)
}

// Grants is a fixed set of permission answers.
type Grants struct {
	Foreground bool `json:"foreground"`
	Background bool `json:"background"`
}

func (g Grants) RequestForeground(ctx context.Context) bool { return g.Foreground }
func (g Grants) RequestBackground(ctx context.Context) bool { return g.Background }

// ReportedGrants holds the permission answers last reported by a remote device.
type ReportedGrants struct {
	mu     sync.Mutex
	grants Grants
}

func (r *ReportedGrants) Set(g Grants) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants = g
}

func (r *ReportedGrants) Get() Grants {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grants
}

func (r *ReportedGrants) RequestForeground(ctx context.Context) bool {
	return r.Get().Foreground
}

func (r *ReportedGrants) RequestBackground(ctx context.Context) bool {
	return r.Get().Background
}
