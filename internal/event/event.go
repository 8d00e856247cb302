package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topics for storefront domain events.
var (
	TopicUserRegistered    = pkgkafka.Topic("user", "registered")
	TopicUserPasswordReset = pkgkafka.Topic("user", "password_reset")
	TopicWishlistUpdated   = pkgkafka.Topic("wishlist", "updated")
)

// Aggregate types.
const (
	AggregateTypeUser     = "user"
	AggregateTypeWishlist = "wishlist"
)

// Source identifies events originating from this service.
const Source = "storefront"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserPasswordResetData is the payload for a user.password_reset event.
type UserPasswordResetData struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	ResetURL string `json:"reset_url"`
}

// WishlistUpdatedData is the payload for a wishlist.updated event.
type WishlistUpdatedData struct {
	WishlistID string   `json:"wishlist_id"`
	UserID     string   `json:"user_id"`
	Added      []string `json:"added"`
	Removed    []string `json:"removed"`
	Skipped    []string `json:"skipped"`
}

// Publisher is what services depend on to emit domain events.
type Publisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserPasswordReset(ctx context.Context, user *domain.User, resetURL string) error
	PublishWishlistUpdated(ctx context.Context, change domain.WishlistChange) error
}

type eventWriter interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  eventWriter
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("event_id", evt.EventID),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, UserRegisteredData{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
	})
}

// PublishUserPasswordReset publishes a user.password_reset event carrying the
// link the notifier mails out.
func (p *Producer) PublishUserPasswordReset(ctx context.Context, user *domain.User, resetURL string) error {
	return p.publish(ctx, TopicUserPasswordReset, user.ID, AggregateTypeUser, UserPasswordResetData{
		UserID:   user.ID,
		Email:    user.Email,
		ResetURL: resetURL,
	})
}

// PublishWishlistUpdated publishes a wishlist.updated event.
func (p *Producer) PublishWishlistUpdated(ctx context.Context, change domain.WishlistChange) error {
	return p.publish(ctx, TopicWishlistUpdated, change.WishlistID, AggregateTypeWishlist, WishlistUpdatedData{
		WishlistID: change.WishlistID,
		UserID:     change.UserID,
		Added:      nonNil(change.Added),
		Removed:    nonNil(change.Removed),
		Skipped:    nonNil(change.Skipped),
	})
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// Discard is a Publisher that drops every event. It backs commands that run
// without a broker, such as create-admin.
type Discard struct{}

func (Discard) PublishUserRegistered(context.Context, *domain.User) error { return nil }

func (Discard) PublishUserPasswordReset(context.Context, *domain.User, string) error { return nil }

func (Discard) PublishWishlistUpdated(context.Context, domain.WishlistChange) error { return nil }
