package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-magiclink/internal/mailer"
	"github.com/hugh/go-magiclink/internal/metrics"
	"github.com/hugh/go-magiclink/internal/store"
	"github.com/hugh/go-magiclink/pkg/crypto"
)

type Handler struct {
	links     store.MagicLinkStore
	mailer    mailer.Mailer
	encryptor *crypto.Encryptor
	logger    *slog.Logger
	now       func() time.Time
}

func NewHandler(links store.MagicLinkStore, m mailer.Mailer, encryptor *crypto.Encryptor, logger *slog.Logger) *Handler {
	return &Handler{
		links:     links,
		mailer:    m,
		encryptor: encryptor,
		logger:    logger,
		now:       time.Now,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSendMagicLink, h.HandleSendMagicLink)
	mux.HandleFunc(TypePurgeMagicLinks, h.HandlePurgeMagicLinks)
}

func (h *Handler) HandleSendMagicLink(ctx context.Context, t *asynq.Task) error {
	var payload SendMagicLinkPayload
	if err := decodePayload(t.Payload(), &payload, h.encryptor); err != nil {
		// A payload we cannot read will never become readable.
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	now := h.now()
	if !now.Before(payload.ExpiresAt) {
		h.logger.Warn("dropping email for expired magic link", "to", payload.Email, "expires_at", payload.ExpiresAt)
		metrics.EmailsSent.WithLabelValues("expired").Inc()
		return nil
	}

	msg, err := mailer.RenderMagicLink(mailer.MagicLinkEmail{
		To:        payload.Email,
		Name:      payload.Name,
		URL:       payload.URL,
		ExpiresAt: payload.ExpiresAt,
	}, now)
	if err != nil {
		return fmt.Errorf("rendering email: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		metrics.EmailsSent.WithLabelValues("error").Inc()
		h.logger.Error("failed to send magic link email", "to", payload.Email, "error", err)
		return err
	}

	metrics.EmailsSent.WithLabelValues("sent").Inc()
	h.logger.Info("sent magic link email", "to", payload.Email)
	return nil
}

func (h *Handler) HandlePurgeMagicLinks(ctx context.Context, t *asynq.Task) error {
	var payload PurgeMagicLinksPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	cutoff := h.now().UTC().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	purged, err := h.links.PurgeMagicLinks(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purging magic links: %w", err)
	}

	metrics.MagicLinksPurged.Add(float64(purged))
	h.logger.Info("purged expired magic links", "count", purged, "cutoff", cutoff)
	return nil
}
