package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-magiclink/pkg/crypto"
)

// Task type names
const (
	TypeSendMagicLink   = "email:magic_link"
	TypePurgeMagicLinks = "maintenance:purge_magic_links"
)

const (
	QueueCritical = "critical"
	QueueLow      = "low"
)

// SendMagicLinkPayload carries a live login URL. It is sealed with age when
// an encryptor is configured.
type SendMagicLinkPayload struct {
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewSendMagicLinkTask(payload SendMagicLinkPayload, enc *crypto.Encryptor) (*asynq.Task, error) {
	data, err := encodePayload(payload, enc)
	if err != nil {
		return nil, err
	}

	// Retrying past expiry is pointless, so the deadline follows the link.
	return asynq.NewTask(TypeSendMagicLink, data,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Deadline(payload.ExpiresAt),
	), nil
}

// PurgeMagicLinksPayload controls how long expired links are retained.
type PurgeMagicLinksPayload struct {
	RetentionHours int `json:"retention_hours"`
}

func NewPurgeMagicLinksTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(PurgeMagicLinksPayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePurgeMagicLinks, data,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(3),
		asynq.Unique(time.Hour),
	), nil
}

func encodePayload(v any, enc *crypto.Encryptor) ([]byte, error) {
	if enc != nil {
		return enc.Seal(v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return data, nil
}

func decodePayload(data []byte, v any, enc *crypto.Encryptor) error {
	if enc != nil {
		return enc.Open(data, v)
	}
	return json.Unmarshal(data, v)
}
