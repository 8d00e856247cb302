package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/event"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// Topics returns the topics the notifier subscribes to.
func Topics() []string {
	return []string{event.TopicUserRegistered, event.TopicUserPasswordReset}
}

// Handler turns account events into mail.
type Handler struct {
	mailer Mailer
	logger *slog.Logger
}

// NewHandler creates a new notification handler.
func NewHandler(mailer Mailer, logger *slog.Logger) *Handler {
	return &Handler{
		mailer: mailer,
		logger: logger,
	}
}

// Handle processes an incoming event based on its event type. Unknown types
// are acknowledged so they do not block the partition.
func (h *Handler) Handle(ctx context.Context, evt *pkgkafka.Event) error {
	switch evt.EventType {
	case event.TopicUserRegistered:
		return h.handleUserRegistered(ctx, evt)
	case event.TopicUserPasswordReset:
		return h.handlePasswordReset(ctx, evt)
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", evt.EventType),
			slog.String("event_id", evt.EventID),
		)
		return nil
	}
}

func (h *Handler) handleUserRegistered(ctx context.Context, evt *pkgkafka.Event) error {
	var data event.UserRegisteredData
	if err := evt.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode user.registered payload: %w", err)
	}
	if data.Email == "" {
		return fmt.Errorf("user.registered event %s has no email", evt.EventID)
	}

	return h.send(ctx, evt, Message{
		To:      data.Email,
		Subject: "Welcome to the store",
		Body:    "Your account is ready and your wishlist has been created.",
	})
}

func (h *Handler) handlePasswordReset(ctx context.Context, evt *pkgkafka.Event) error {
	var data event.UserPasswordResetData
	if err := evt.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode user.password_reset payload: %w", err)
	}
	if data.Email == "" || data.ResetURL == "" {
		return fmt.Errorf("user.password_reset event %s is missing email or link", evt.EventID)
	}

	return h.send(ctx, evt, Message{
		To:      data.Email,
		Subject: "Password reset",
		Body:    "Use the following link to choose a new password: " + data.ResetURL,
	})
}

func (h *Handler) send(ctx context.Context, evt *pkgkafka.Event, msg Message) error {
	if err := h.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s mail via %s: %w", evt.EventType, h.mailer.Name(), err)
	}
	h.logger.InfoContext(ctx, "notification delivered",
		slog.String("event_id", evt.EventID),
		slog.String("event_type", evt.EventType),
		slog.String("mailer", h.mailer.Name()),
	)
	return nil
}

// NewConsumer builds the group consumer that feeds h.
func NewConsumer(cfg pkgkafka.ConsumerConfig, h *Handler, logger *slog.Logger, opts ...pkgkafka.ConsumerOption) *pkgkafka.Consumer {
	cfg.Topics = Topics()
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10e6
	}
	return pkgkafka.NewConsumer(cfg, h.Handle, logger, opts...)
}
