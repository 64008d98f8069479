package main

import (
	"context"
	"fmt"
	"strings"
)

const (
	sinkPubSub = "pubsub"
	sinkKafka  = "kafka"
)

type pubsubPublisher interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic, orderingKey string, data []byte, attributes map[string]string) (string, error)
}

type pubsubSink struct {
	client pubsubPublisher
}

func (pubsubSink) Name() string { return sinkPubSub }

func (s pubsubSink) Ping(ctx context.Context) error { return s.client.Ping(ctx) }

func (s pubsubSink) Publish(ctx context.Context, topic, key string, data []byte, attributes map[string]string) error {
	if _, err := s.client.Publish(ctx, topic, key, data, attributes); err != nil {
		return fmt.Errorf("pubsub publish to %s: %w", topic, err)
	}
	return nil
}

type kafkaPublisher interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic, key string, data []byte, headers map[string]string) error
}

type kafkaSink struct {
	writer kafkaPublisher
}

func (kafkaSink) Name() string { return sinkKafka }

func (s kafkaSink) Ping(ctx context.Context) error { return s.writer.Ping(ctx) }

func (s kafkaSink) Publish(ctx context.Context, topic, key string, data []byte, attributes map[string]string) error {
	return s.writer.Publish(ctx, topic, key, data, attributes)
}

func normalizeSink(raw string) (string, error) {
	switch name := strings.ToLower(strings.TrimSpace(raw)); name {
	case "", sinkPubSub:
		return sinkPubSub, nil
	case sinkKafka:
		return sinkKafka, nil
	default:
		return "", fmt.Errorf("unknown outbox sink %q", raw)
	}
}
