package providers

import (
	"context"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// pipeline lifecycle events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.PipelineEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.PipelineEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for the pipeline surfaces
const (
	// EventChannelChecks carries check.completed events
	EventChannelChecks = "pipeline:checks"

	// EventChannelTasks carries task.created and task.completed events
	EventChannelTasks = "pipeline:tasks"

	// EventChannelEligibility carries eligibility.verified events
	EventChannelEligibility = "pipeline:eligibility"
)
