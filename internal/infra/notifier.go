package infra

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis channels shared by every terminal.
const (
	ChannelConfig    = "quicktill:config"
	ChannelBarcode   = "quicktill:barcode"
	ChannelUserToken = "quicktill:usertoken"
)

// Notifier broadcasts changes and terminal events over redis pub/sub.
type Notifier struct{ rdb *redis.Client }

func NewNotifier(rdb *redis.Client) *Notifier { return &Notifier{rdb: rdb} }

// PublishConfigChange tells every terminal that key changed.
func (n *Notifier) PublishConfigChange(ctx context.Context, key string) error {
	return n.rdb.Publish(ctx, ChannelConfig, key).Err()
}

// Publish sends payload on channel.
func (n *Notifier) Publish(ctx context.Context, channel, payload string) error {
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe delivers messages on channel to fn until ctx is done.
func (n *Notifier) Subscribe(ctx context.Context, channel string, fn func(payload string)) {
	sub := n.rdb.Subscribe(ctx, channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fn(msg.Payload)
		}
	}
}

// WatchConfig calls invalidate whenever any terminal changes the site
// configuration.
func (n *Notifier) WatchConfig(ctx context.Context, invalidate func()) {
	log.Info().Str("channel", ChannelConfig).Msg("watching for config changes")
	n.Subscribe(ctx, ChannelConfig, func(key string) {
		log.Debug().Str("key", key).Msg("config changed elsewhere")
		invalidate()
	})
}
