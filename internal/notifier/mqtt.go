package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"astra-monitor/internal/common/mqtt"
	"astra-monitor/internal/models"
)

// BreachNotifier publishes breach events to MQTT so downstream alert
// consumers (dashboards, pagers) receive them as they are recorded.
// Topic layout: <prefix>/<scid>/<metric_type>.
type BreachNotifier struct {
	client      *mqtt.Client
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewBreachNotifier creates an MQTT breach notifier.
func NewBreachNotifier(client *mqtt.Client, topicPrefix string, qos byte, logger *zap.Logger) *BreachNotifier {
	return &BreachNotifier{
		client:      client,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
	}
}

// NotifyBreach publishes one breach event as JSON.
func (n *BreachNotifier) NotifyBreach(ctx context.Context, event *models.Event) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal breach event: %w", err)
	}

	topic := fmt.Sprintf("%s/%d/%s", n.topicPrefix, event.SCID, event.MetricType)
	if err := n.client.Publish(topic, n.qos, false, payload); err != nil {
		return err
	}

	n.logger.Debug("Published breach notification",
		zap.String("topic", topic),
		zap.Int64("event_id", event.ID),
	)

	return nil
}
