package kafka_middleware

import (
	"context"
	"time"

	"calendra/pkg/kafka"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_messages_total",
		Help: "Kafka messages handled, by direction and result.",
	}, []string{"direction", "topic", "result"})

	messageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_message_duration_seconds",
		Help:    "Time spent publishing or handling a Kafka message.",
		Buckets: prometheus.DefBuckets,
	}, []string{"direction", "topic"})
)

func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		observe("publish", msg.Topic, start, err)
		return err
	}
}

func MetricsConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		observe("consume", msg.Topic, start, err)
		return err
	}
}

func observe(direction, topic string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	messagesTotal.WithLabelValues(direction, topic, result).Inc()
	messageDuration.WithLabelValues(direction, topic).Observe(time.Since(start).Seconds())
}
