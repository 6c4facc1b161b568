package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Routing keys for domain events.
const (
	EventAccountRegistered     = "account.registered"
	EventFavoriteAdded         = "favorite.added"
	EventFavoriteRemoved       = "favorite.removed"
	EventProfilePictureUpdated = "profile.picture_updated"
)

// EventPublisher sends domain events to a message broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, routingKey string, payload interface{}) error
}

// AccountEvent is the payload of account.registered and profile.picture_updated.
type AccountEvent struct {
	AccountID    string    `json:"accountId"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// FavoriteEvent is the payload of favorite.added and favorite.removed.
type FavoriteEvent struct {
	AccountID   string    `json:"accountId"`
	PokemonID   int       `json:"pokemonId"`
	PokemonName string    `json:"pokemonName,omitempty"`
	Count       int       `json:"count"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// publishEvent is best effort: a failed publish is logged and never fails the caller.
func publishEvent(ctx context.Context, pub EventPublisher, log *zap.Logger, key string, payload interface{}) {
	if pub == nil {
		return
	}
	if err := pub.PublishEvent(ctx, key, payload); err != nil {
		log.Warn("failed to publish event", zap.String("routing_key", key), zap.Error(err))
	}
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
