package sink

import (
	"context"
	"errors"

	"github.com/rotblauer/catmotion/visit"
)

// Pusher is anything that accepts location updates and visits.
type Pusher interface {
	PushLocationUpdate(ctx context.Context, u LocationUpdate) error
	PushVisit(ctx context.Context, v *visit.Visit) error
}

// Multi pushes to every sink, joining their errors.
type Multi []Pusher

func (m Multi) PushLocationUpdate(ctx context.Context, u LocationUpdate) error {
	var errs []error
	for _, p := range m {
		if err := p.PushLocationUpdate(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PushVisit(ctx context.Context, v *visit.Visit) error {
	var errs []error
	for _, p := range m {
		if err := p.PushVisit(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
