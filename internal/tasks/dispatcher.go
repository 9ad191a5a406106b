package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-magiclink/internal/magiclink"
	"github.com/hugh/go-magiclink/pkg/crypto"
)

// enqueuer is satisfied by *asynq.Client.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher is a magiclink.Notifier that hands delivery to the worker.
type Dispatcher struct {
	client    enqueuer
	encryptor *crypto.Encryptor
}

func NewDispatcher(client *asynq.Client, encryptor *crypto.Encryptor) *Dispatcher {
	return &Dispatcher{client: client, encryptor: encryptor}
}

var _ magiclink.Notifier = (*Dispatcher)(nil)

func (d *Dispatcher) SendMagicLink(ctx context.Context, delivery magiclink.Delivery) error {
	task, err := NewSendMagicLinkTask(SendMagicLinkPayload{
		Email:     delivery.Email,
		Name:      delivery.Name,
		URL:       delivery.URL,
		ExpiresAt: delivery.ExpiresAt,
	}, d.encryptor)
	if err != nil {
		return fmt.Errorf("building email task: %w", err)
	}

	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueueing email task: %w", err)
	}
	return nil
}
