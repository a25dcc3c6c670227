package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

// Enqueuer is what the API needs from the queue.
type Enqueuer interface {
	EnqueueRegistrationNotify(ctx context.Context, p RegistrationNotifyPayload) error
}

type Client struct {
	client *asynq.Client
}

func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

func (c *Client) EnqueueRegistrationNotify(ctx context.Context, p RegistrationNotifyPayload) error {
	task, err := NewRegistrationNotifyTask(p)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

func (c *Client) Close() error {
	return c.client.Close()
}

// NewServer builds the worker server and its mux.
func NewServer(redisOpts asynq.RedisClientOpt, concurrency int, notify *NotifyHandler) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueDefault: 1},
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskRegistrationNotify, notify)
	return srv, mux
}
