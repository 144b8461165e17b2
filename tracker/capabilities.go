package tracker

import (
	"context"
	"errors"

	"github.com/rotblauer/catmotion/delivery"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrDeliveryUnavailable = errors.New("sample delivery unavailable")
	ErrNotTracking         = errors.New("not tracking")
)

// Permissions asks the device for location access.
type Permissions interface {
	RequestForeground(ctx context.Context) bool
	RequestBackground(ctx context.Context) bool
}

// Delivery is the location provider's sample delivery.
// Samples it delivers are handed to Controller.OnSample.
type Delivery interface {
	Available(ctx context.Context) bool
	Start(ctx context.Context, c delivery.Config) error
	Stop(ctx context.Context) error
	IsDelivering(ctx context.Context) bool
}

// Store is durable string-keyed storage. Get returns nil for missing keys.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
}
