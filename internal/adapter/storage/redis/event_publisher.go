package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// EventPublisher implements ports.EventPublisher with Redis PUBLISH.
// Each organization gets its own channel: "<channel>:<organization_id>".
type EventPublisher struct {
	client  *goredis.Client
	channel string
}

// NewEventPublisher creates a publisher writing under the given channel prefix.
func NewEventPublisher(client *goredis.Client, channel string) *EventPublisher {
	return &EventPublisher{client: client, channel: channel}
}

// ChannelFor returns the channel events of orgID are published on.
func (p *EventPublisher) ChannelFor(event domain.WalletEvent) string {
	return p.channel + ":" + event.OrganizationID.String()
}

// Publish serializes event as JSON and publishes it.
func (p *EventPublisher) Publish(ctx context.Context, event domain.WalletEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode wallet event: %w", err)
	}
	if err := p.client.Publish(ctx, p.ChannelFor(event), payload).Err(); err != nil {
		return fmt.Errorf("redis publish wallet event: %w", err)
	}
	return nil
}
