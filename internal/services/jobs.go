package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Worker job commands.
const (
	JobShareComment = "dissent-share-comment"
)

// WorkerJob is published by front-end processes and consumed by the
// background worker. Delivery is at-least-once with no cross-channel
// ordering.
type WorkerJob struct {
	Command string `json:"command"`
	User    uint   `json:"user,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// JobQueue publishes worker jobs on the shared broadcast channel.
type JobQueue struct {
	redis   *redis.Client
	channel string
}

func NewJobQueue(redisClient *redis.Client, channel string) *JobQueue {
	return &JobQueue{redis: redisClient, channel: channel}
}

func (q *JobQueue) Publish(ctx context.Context, job WorkerJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode worker job: %w", err)
	}
	if err := q.redis.Publish(ctx, q.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish worker job: %w", err)
	}
	return nil
}
