// Package notify contains the parent-notification collaborator. The core
// invokes it explicitly after a state change has committed; a dispatch
// failure never rolls the change back.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message is a single outbound notification.
type Message struct {
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
	StudentID string `json:"student_id,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Dispatcher delivers a message to a guardian. Implementations must respect
// context cancellation and report failures instead of swallowing them.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// ConsoleDispatcher logs messages instead of delivering them. Used in
// development and as the fallback when notifications are disabled.
type ConsoleDispatcher struct {
	logger *zap.Logger
}

// NewConsoleDispatcher constructs the console dispatcher.
func NewConsoleDispatcher(logger *zap.Logger) *ConsoleDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleDispatcher{logger: logger}
}

// Send logs the message.
func (d *ConsoleDispatcher) Send(_ context.Context, msg Message) error {
	d.logger.Info("notification",
		zap.String("recipient", msg.Recipient),
		zap.String("reference", msg.Reference),
		zap.String("body", msg.Body),
	)
	return nil
}

// Name identifies the dispatcher in logs.
func (d *ConsoleDispatcher) Name() string { return "console" }
