package events

import (
	"context"
	"encoding/json"
	"log/slog"
)

// SlogPublisher writes events to a structured logger. It is the default
// publisher for local CLI runs where no broker is configured.
type SlogPublisher struct {
	logger *slog.Logger
}

// compile-time interface check
var _ Publisher = (*SlogPublisher)(nil)

// NewSlogPublisher creates a logger-backed publisher.
func NewSlogPublisher(logger *slog.Logger) *SlogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogPublisher{logger: logger}
}

// Publish logs the event at info level.
func (p *SlogPublisher) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.logger.Info("event published", "topic", topic, "event", string(data))
	return nil
}
