package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/haulwatch/service-tracking/internal/application"
	"github.com/haulwatch/service-tracking/internal/platform/kafka"
)

// TopicTrackingEvents carries every event this service publishes.
const TopicTrackingEvents = "tracking.events"

const eventSource = "service-tracking"

// Event types published to the tracking topic. The envelope subject is
// the dispatch group ID, so consumers can route without decoding data.
const (
	TypeLocationUpdated = "tracking.location.updated"
	TypeProgressUpdated = "tracking.progress.updated"
	TypeExtendedStop    = "tracking.alert.extended_stop"
)

// KafkaNotifier publishes tracking updates as CloudEvents. Delivery
// semantics are the caller's concern: the tracking service treats every
// notification as fire-and-forget and only logs failures.
type KafkaNotifier struct {
	producer *kafka.Producer
	logger   *zap.Logger
}

// NewKafkaNotifier creates a notifier publishing to the tracking topic.
func NewKafkaNotifier(producer *kafka.Producer, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, logger: logger}
}

// LocationUpdated publishes a one-shot location report for a group.
func (n *KafkaNotifier) LocationUpdated(ctx context.Context, groupID string, status application.LocationStatusDTO) error {
	return n.publish(ctx, TypeLocationUpdated, groupID, status)
}

// ProgressUpdated publishes a distance-to-destination report for a group.
func (n *KafkaNotifier) ProgressUpdated(ctx context.Context, groupID string, report application.DistanceReportDTO) error {
	return n.publish(ctx, TypeProgressUpdated, groupID, report)
}

// ExtendedStop publishes an alert that a group's driver has been
// stationary past the alert threshold.
func (n *KafkaNotifier) ExtendedStop(ctx context.Context, groupID string, alert application.ExtendedStopAlertDTO) error {
	return n.publish(ctx, TypeExtendedStop, groupID, alert)
}

func (n *KafkaNotifier) publish(ctx context.Context, eventType, groupID string, data interface{}) error {
	event, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	event.Subject = groupID

	if err := n.producer.PublishEvent(ctx, TopicTrackingEvents, event); err != nil {
		return fmt.Errorf("failed to publish %s for group %s: %w", eventType, groupID, err)
	}
	return nil
}
