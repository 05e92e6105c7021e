// Package notify delivers user-facing notifications for workflow
// events. The gateway wires the log-based notifier; a real deployment
// can swap in push or email delivery behind the same interface.
package notify

import (
	"context"
	"log"
)

type Notification struct {
	UserID string
	Kind   string // review_assigned | review_received | grade_released
	Title  string
	Body   string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	log.Printf("notify user=%s kind=%s title=%q", n.UserID, n.Kind, n.Title)
	return nil
}

// NopNotifier drops notifications. Used in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }
