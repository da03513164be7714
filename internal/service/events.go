package service

import (
	"context"

	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"

	"github.com/rs/zerolog"
)

// publishAfterCommit announces a committed movement. Delivery failures are
// logged and never undo the commit.
func publishAfterCommit(ctx context.Context, publisher ports.EventPublisher, event *domain.Event, log zerolog.Logger) {
	if publisher == nil || event == nil {
		return
	}
	if err := publisher.Publish(context.WithoutCancel(ctx), *event); err != nil {
		log.Warn().Err(err).
			Str("event", string(event.Type)).
			Str("user_id", string(event.UserID)).
			Int64("amount", event.Amount).
			Msg("failed to publish settlement event")
	}
}
