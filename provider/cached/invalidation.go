package cached

import (
	"context"
	"errors"

	_ "github.com/pitabwire/natspubsub" // registers the nats:// driver
	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub" // registers the mem:// driver
)

// ErrNoSubscription is returned by Listen without a subscription.
var ErrNoSubscription = errors.New("no invalidation subscription")

const metadataBundle = "polyglot-bundle"

// Announce tells every listening Provider that bundle changed. An empty
// bundle invalidates all bundles.
func Announce(ctx context.Context, topic *pubsub.Topic, bundle string) error {
	metadata := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, metadata)
	metadata[metadataBundle] = bundle

	return topic.Send(ctx, &pubsub.Message{
		Body:     []byte(bundle),
		Metadata: metadata,
	})
}

// OpenTopic opens the invalidation topic at a gocloud url such as
// "mem://polyglot" or "nats://polyglot.invalidations".
func OpenTopic(ctx context.Context, url string) (*pubsub.Topic, error) {
	return pubsub.OpenTopic(ctx, url)
}

// OpenSubscription opens the invalidation subscription at a gocloud url.
func OpenSubscription(ctx context.Context, url string) (*pubsub.Subscription, error) {
	return pubsub.OpenSubscription(ctx, url)
}

// Listen invalidates p for every announcement received on sub. It returns
// nil once ctx is done and the receive error otherwise.
func (p *Provider) Listen(ctx context.Context, sub *pubsub.Subscription) error {
	if sub == nil {
		return ErrNoSubscription
	}

	logger := util.Log(ctx).WithField("function", "Listen")
	logger.Debug("listening for cache invalidations")

	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.WithError(err).Error("could not receive invalidation")
			return err
		}

		var metadata propagation.MapCarrier = msg.Metadata
		mCtx := otel.GetTextMapPropagator().Extract(ctx, metadata)

		bundle, ok := metadata[metadataBundle]
		if !ok {
			bundle = string(msg.Body)
		}
		p.Invalidate(bundle)

		util.Log(mCtx).WithField("bundle", bundle).Debug("invalidated cached resource sets")
		msg.Ack()
	}
}
