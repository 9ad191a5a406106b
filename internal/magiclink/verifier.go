package magiclink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/metrics"
	"github.com/hugh/go-magiclink/internal/store"
)

type Verifier struct {
	links  store.MagicLinkStore
	logger *slog.Logger
	now    func() time.Time
}

func NewVerifier(links store.MagicLinkStore, logger *slog.Logger) *Verifier {
	return &Verifier{
		links:  links,
		logger: logger,
		now:    time.Now,
	}
}

// Redeem exchanges token for its owner. Unknown, used and expired tokens all
// fail with ErrInvalidOrExpired.
func (v *Verifier) Redeem(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.Redemptions.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, ErrInvalidOrExpired
	}

	user, err := v.links.RedeemMagicLink(ctx, token, v.now().UTC())
	switch {
	case err == nil:
	case errors.Is(err, store.ErrTokenUnavailable):
		metrics.Redemptions.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, ErrInvalidOrExpired
	case errors.Is(err, store.ErrNotFound):
		metrics.Redemptions.WithLabelValues(metrics.ResultError).Inc()
		v.logger.Error("magic link owner missing", "error", err)
		return nil, fmt.Errorf("magic link owner: %w", err)
	default:
		metrics.Redemptions.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("redeeming magic link: %w", err)
	}

	metrics.Redemptions.WithLabelValues(metrics.ResultSuccess).Inc()
	v.logger.Info("magic link redeemed", "user_id", user.ID)

	return user, nil
}
