package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/rotblauer/catmotion/delivery"
	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/params"
)

// Reconfigure sets the delivery cadence to the state's profile.
// It is a no-op when the persisted fingerprint already matches and delivery is active.
func (c *Controller) Reconfigure(ctx context.Context, state movement.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconfigure(ctx, state)
}

func (c *Controller) reconfigure(ctx context.Context, state movement.State) error {
	if !c.delivery.IsDelivering(ctx) {
		return ErrNotTracking
	}
	cfg := delivery.ConfigFor(state)
	fp, err := cfg.Fingerprint()
	if err != nil {
		return err
	}
	if string(c.get(params.DeliveryKeyFingerprint)) == fp {
		return nil
	}

	c.logger.Info("Reconfiguring delivery", "delivery", cfg.String())
	if err := c.delivery.Stop(ctx); err != nil {
		return fmt.Errorf("stop delivery: %w", err)
	}
	if c.config.ReconfigureSettle > 0 {
		select {
		case <-ctx.Done():
			c.logger.Warn("Delivery settle interrupted", "error", ctx.Err())
		case <-time.After(c.config.ReconfigureSettle):
		}
	}
	// Delivery is stopped now; restart it even if the caller gave up.
	if err := c.delivery.Start(context.WithoutCancel(ctx), cfg); err != nil {
		return fmt.Errorf("start delivery: %w", err)
	}
	return c.store.Set(params.DeliveryKeyFingerprint, []byte(fp))
}

func (c *Controller) setFingerprint(cfg delivery.Config) error {
	fp, err := cfg.Fingerprint()
	if err != nil {
		return err
	}
	return c.store.Set(params.DeliveryKeyFingerprint, []byte(fp))
}
