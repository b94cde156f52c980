package repository

import (
	"context"
	"fmt"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	xhttp "AlphaPipe/pkg/http"
	pkgkafka "AlphaPipe/pkg/kafka"
	applogger "AlphaPipe/pkg/logger"
)

// KafkaMessaging delivers update messages to a Kafka topic, keyed by run id
// so one run's messages stay on one partition (preserving FIFO order).
type KafkaMessaging struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaMessaging(producer *pkgkafka.Producer, topic string) domrepo.MessagingSink {
	return &KafkaMessaging{producer: producer, topic: topic}
}

func (m *KafkaMessaging) Send(ctx context.Context, msg *models.InsightUpdateMessage) error {
	return m.producer.Publish(ctx, m.topic, []byte(msg.RunID), msg)
}

func (m *KafkaMessaging) Close() error {
	if m.producer != nil {
		return m.producer.Close()
	}
	return nil
}

// WebhookMessaging posts update messages to a configured HTTP endpoint.
type WebhookMessaging struct {
	client *xhttp.Client
	url    string
}

func NewWebhookMessaging(client *xhttp.Client, url string) domrepo.MessagingSink {
	return &WebhookMessaging{client: client, url: url}
}

func (m *WebhookMessaging) Send(ctx context.Context, msg *models.InsightUpdateMessage) error {
	err := m.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     m.url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    msg,
	}, nil)
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	return nil
}

func (m *WebhookMessaging) Close() error { return nil }

// LogMessaging writes update messages to the structured log. Default sink
// for runs with no external delivery channel configured.
type LogMessaging struct {
	log *applogger.Logger
}

func NewLogMessaging(log *applogger.Logger) domrepo.MessagingSink {
	return &LogMessaging{log: log.With("messaging")}
}

func (m *LogMessaging) Send(ctx context.Context, msg *models.InsightUpdateMessage) error {
	m.log.Info("insight update",
		applogger.String("run_id", msg.RunID),
		applogger.Int("insights", len(msg.Insights)),
		applogger.Bool("final", msg.Final),
	)
	return nil
}

func (m *LogMessaging) Close() error { return nil }
