package providers

import (
	"context"
	"time"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
)

// JobQueue is the durable queue the pipeline enqueues work on.
// Delivery is at-least-once; consumers rely on keyed upserts for
// idempotency rather than on exactly-once delivery.
type JobQueue interface {
	// Enqueue schedules a job for delivery after the given delay.
	// A zero delay makes the job immediately available.
	Enqueue(ctx context.Context, job *entities.Job, delay time.Duration) error

	// Close stops the queue; in-flight jobs finish naturally.
	Close() error
}
