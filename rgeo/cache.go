package rgeo

import (
	"context"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rotblauer/catmotion/params"
	"github.com/shopspring/decimal"
)

// ReverseGeocoder is anything that turns coordinates into a place.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*Place, error)
}

// Cached reuses results for nearby coordinates.
// Coordinates are rounded to a fixed number of decimal places to form cache keys.
type Cached struct {
	inner     ReverseGeocoder
	precision int32
	cache     *ttlcache.Cache[string, *Place]
}

func NewCached(inner ReverseGeocoder, config *params.GeocoderConfig) *Cached {
	if config == nil {
		config = params.DefaultGeocoderConfig()
	}
	return &Cached{
		inner:     inner,
		precision: config.CachePrecision,
		cache: ttlcache.New[string, *Place](
			ttlcache.WithTTL[string, *Place](config.CacheTTL)),
	}
}

func (c *Cached) key(lat, lon float64) string {
	return decimal.NewFromFloat(lat).Round(c.precision).String() + "," +
		decimal.NewFromFloat(lon).Round(c.precision).String()
}

func (c *Cached) ReverseGeocode(ctx context.Context, lat, lon float64) (*Place, error) {
	key := c.key(lat, lon)
	if item := c.cache.Get(key); item != nil {
		p := *item.Value()
		return &p, nil
	}
	p, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoPlace
	}
	cp := *p
	c.cache.Set(key, &cp, ttlcache.DefaultTTL)
	return p, nil
}

func (c *Cached) Len() int {
	return c.cache.Len()
}

// Start runs the expired item cleanup loop until Stop is called.
func (c *Cached) Start() {
	c.cache.Start()
}

func (c *Cached) Stop() {
	c.cache.Stop()
}
