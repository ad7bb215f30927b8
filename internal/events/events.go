// Package events publishes member lifecycle events.
package events

import (
	"context"
	"time"
)

// Routing keys.
const (
	UserCreated = "user.created"
	UserDeleted = "user.deleted"
)

// Publisher sends an event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, v any) error
	Close() error
}

// Created is published after a user and its side-records are provisioned.
type Created struct {
	UserID string    `json:"userId"`
	Email  string    `json:"email"`
	At     time.Time `json:"at"`
}

// Deleted is published after a user and every owned record are removed.
type Deleted struct {
	UserID  string    `json:"userId"`
	Removed int       `json:"removed"`
	At      time.Time `json:"at"`
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }
