package pubsub

import (
	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
)

// PublisherProvider builds AMQP publishers bound to a durable fanout
// exchange per topic.
type PublisherProvider struct {
	url    string
	logger watermill.LoggerAdapter
}

func NewPublisherProvider(url string, logger watermill.LoggerAdapter) *PublisherProvider {
	return &PublisherProvider{url: url, logger: logger}
}

func (p *PublisherProvider) Build() (message.Publisher, error) {
	return amqp.NewPublisher(amqp.NewDurablePubSubConfig(p.url, nil), p.logger)
}

// SubscriberProvider builds AMQP subscribers with one durable queue per
// handler instance.
type SubscriberProvider struct {
	url    string
	logger watermill.LoggerAdapter
}

func NewSubscriberProvider(url string, logger watermill.LoggerAdapter) *SubscriberProvider {
	return &SubscriberProvider{url: url, logger: logger}
}

func (p *SubscriberProvider) Build(queue string) (message.Subscriber, error) {
	cfg := amqp.NewDurablePubSubConfig(p.url, amqp.GenerateQueueNameConstant(queue))
	return amqp.NewSubscriber(cfg, p.logger)
}
