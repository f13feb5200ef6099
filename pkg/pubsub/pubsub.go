package pubsub

import (
	"context"
	"encoding/json"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "graph_status")
	Type    string          `json:"type"`    // Event type (e.g., "building", "ready", "error")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// TopicGraphStatus carries graph build progress
const TopicGraphStatus = "graph_status"

// Graph build states, also used as the event type on TopicGraphStatus
const (
	StateIdle     = "idle" // nothing built yet; never published
	StateBuilding = "building"
	StateReady    = "ready"
	StateError    = "error"
)

// GraphStatus describes the state of the session graph
type GraphStatus struct {
	State       string `json:"state"` // idle, building, ready, error
	Model       string `json:"model"`
	Label       string `json:"label,omitempty"`
	Message     string `json:"message,omitempty"`
	Nodes       int    `json:"nodes"`
	Connections int    `json:"connections"`
	Skipped     int    `json:"skipped"`
	Regions     int    `json:"regions"`
}
