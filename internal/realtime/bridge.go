package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/csssit/club-api/pkg/messaging/redis"
)

// ChannelPrefix namespaces group traffic on the shared redis broker so the
// bridge can pattern-subscribe to exactly the realtime channels.
const ChannelPrefix = "realtime."

// ChannelFor maps a broadcast group to its cluster-wide redis channel.
func ChannelFor(group string) string {
	return ChannelPrefix + group
}

// ClusterBroker wraps the redis broker so service-level publishes to a group
// land on the namespaced cluster channel. It is what the composition root
// hands the notification service when redis is enabled; single-process
// deployments hand it the hub instead.
type ClusterBroker struct {
	*redis.RedisBroker
}

func NewClusterBroker(broker *redis.RedisBroker) *ClusterBroker {
	return &ClusterBroker{RedisBroker: broker}
}

func (c *ClusterBroker) Publish(ctx context.Context, group string, message interface{}) error {
	return c.RedisBroker.Publish(ctx, ChannelFor(group), message)
}

// Bridge fans cluster traffic into the local hub. In multi-process
// deployments the notification service publishes to redis; each process runs
// one bridge that replays every group's messages to its own connections. The
// service and gateway are unaware of which side of the bridge they sit on.
type Bridge struct {
	broker *redis.RedisBroker
	hub    *Hub
	logger zerolog.Logger
}

func NewBridge(broker *redis.RedisBroker, hub *Hub, logger zerolog.Logger) *Bridge {
	return &Bridge{
		broker: broker,
		hub:    hub,
		logger: logger,
	}
}

// Run consumes until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	deliveries, err := b.broker.PSubscribe(ctx, ChannelPrefix+"*")
	if err != nil {
		return err
	}

	for delivery := range deliveries {
		group := strings.TrimPrefix(delivery.Channel, ChannelPrefix)

		var message json.RawMessage = delivery.Payload
		if err := b.hub.Publish(ctx, group, message); err != nil {
			b.logger.Error().Err(err).Str("group", group).Msg("failed to replay bridged message")
		}
	}

	return ctx.Err()
}
