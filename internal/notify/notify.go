// Package notify is the push-notification boundary. Every call is
// best-effort: failures are logged by the caller and never surfaced to the
// client the coordinator is serving.
package notify

import (
	"context"
	"log/slog"
)

// PushRequest is one queued delivery to a single user's device.
type PushRequest struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// Dispatcher is the contract both coordinators consume.
type Dispatcher interface {
	SendPushNotification(ctx context.Context, userID, title, body string, data map[string]string) error
	SendChatMessageNotification(ctx context.Context, userID, senderName, preview, bookingID string) error
}

// LogDispatcher logs deliveries instead of sending them. Default when no
// push backend is configured.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d *LogDispatcher) SendPushNotification(_ context.Context, userID, title, body string, data map[string]string) error {
	d.Logger.Info("push notification", "user", userID, "title", title, "body", body, "data", data)
	return nil
}

func (d *LogDispatcher) SendChatMessageNotification(ctx context.Context, userID, senderName, preview, bookingID string) error {
	return d.SendPushNotification(ctx, userID, senderName, preview, chatData(senderName, bookingID))
}

func chatData(senderName, bookingID string) map[string]string {
	return map[string]string{"type": "chat_message", "booking_id": bookingID, "sender": senderName}
}
