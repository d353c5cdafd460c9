package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TokenResolver maps a user id to that user's current FCM device token.
// When nil, the token field is left empty and routing is delegated to the
// endpoint (a proxy keyed on the user_id data field).
type TokenResolver func(ctx context.Context, userID string) (string, error)

// FCMClient posts JSON to the FCM HTTPv1 endpoint using a server key or
// oauth token.
type FCMClient struct {
	Endpoint string
	Key      string
	Client   *http.Client
	Resolve  TokenResolver
}

func NewFCMClient(endpoint, key string) *FCMClient {
	return &FCMClient{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

// Push delivers a single notification. Unlike the coordinator-facing
// Dispatcher, Push reports transport failures so the relay worker can retry.
func (f *FCMClient) Push(ctx context.Context, pr PushRequest) error {
	token := ""
	if f.Resolve != nil {
		t, err := f.Resolve(ctx, pr.UserID)
		if err != nil {
			return fmt.Errorf("resolve token for %s: %w", pr.UserID, err)
		}
		token = t
	}
	data := map[string]string{"user_id": pr.UserID}
	for k, v := range pr.Data {
		data[k] = v
	}
	body := map[string]any{"message": map[string]any{
		"token":        token,
		"notification": map[string]string{"title": pr.Title, "body": pr.Body},
		"data":         data,
	}}
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fcm status %d", resp.StatusCode)
	}
	return nil
}

func (f *FCMClient) SendPushNotification(ctx context.Context, userID, title, body string, data map[string]string) error {
	return f.Push(ctx, PushRequest{UserID: userID, Title: title, Body: body, Data: data})
}

func (f *FCMClient) SendChatMessageNotification(ctx context.Context, userID, senderName, preview, bookingID string) error {
	return f.SendPushNotification(ctx, userID, senderName, preview, chatData(senderName, bookingID))
}
