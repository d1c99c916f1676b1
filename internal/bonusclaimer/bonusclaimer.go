// Package bonusclaimer is a 60-second sweep that records each live
// broadcaster's balance and claims any available community-points bonus.
// The recorded balance is the one fetched before the claim is made.
package bonusclaimer

import (
	"context"
	"time"

	"pointskeeper/internal/analytics"
	"pointskeeper/internal/logging"
	"pointskeeper/internal/platform"
	"pointskeeper/internal/registry"
)

const tickInterval = 60 * time.Second

type Claimer struct {
	client   *platform.Client
	registry *registry.Registry
	store    *analytics.Store
	logger   *logging.Logger
}

func New(client *platform.Client, reg *registry.Registry, store *analytics.Store, logger *logging.Logger) *Claimer {
	return &Claimer{client: client, registry: reg, store: store, logger: logger}
}

// Run ticks every tickInterval, sweeping every live broadcaster.
func (c *Claimer) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.cycle(ctx)
		}
	}
}

func (c *Claimer) cycle(ctx context.Context) {
	for _, b := range c.registry.Live() {
		points, claimID, err := c.client.ChannelPointsBalance(ctx, b.Name)
		if err != nil {
			c.logger.Errorf("bonusclaimer: balance fetch failed for %s: %v", b.Name, err)
			continue
		}
		now := time.Now()
		c.registry.SetPoints(b.ChannelID, uint32(points), now)
		c.store.Submit(analytics.InsertPointsIfUpdated{ChannelID: b.ChannelID, Value: points, CreatedAt: now})

		if claimID == "" {
			continue
		}
		if err := c.client.ClaimBonus(ctx, b.ChannelID, claimID); err != nil {
			c.logger.Errorf("bonusclaimer: claim failed for %s: %v", b.Name, err)
			continue
		}
		c.logger.EmojiPrintf(":gift:", "claimed bonus for %s", b.Name)
	}
}
