package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fcmMessage struct {
	Message struct {
		Token        string            `json:"token"`
		Notification map[string]string `json:"notification"`
		Data         map[string]string `json:"data"`
	} `json:"message"`
}

func TestPushResolvesDeviceToken(t *testing.T) {
	var got fcmMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	f := NewFCMClient(ts.URL, "k")
	f.Resolve = func(_ context.Context, userID string) (string, error) {
		if userID != "u1" {
			t.Errorf("resolved unexpected user %q", userID)
		}
		return "device-tok-1", nil
	}

	err := f.Push(context.Background(), PushRequest{
		UserID: "u1", Title: "hi", Body: "there",
		Data: map[string]string{"booking_id": "b1"},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if got.Message.Token != "device-tok-1" {
		t.Fatalf("token = %q", got.Message.Token)
	}
	if got.Message.Data["user_id"] != "u1" || got.Message.Data["booking_id"] != "b1" {
		t.Fatalf("data = %v", got.Message.Data)
	}
}

func TestPushWithoutResolverLeavesTokenEmpty(t *testing.T) {
	var got fcmMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	f := NewFCMClient(ts.URL, "")
	if err := f.Push(context.Background(), PushRequest{UserID: "u1"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if got.Message.Token != "" {
		t.Fatalf("token = %q, want empty", got.Message.Token)
	}
}

func TestPushReportsEndpointFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	f := NewFCMClient(ts.URL, "")
	if err := f.Push(context.Background(), PushRequest{UserID: "u1"}); err == nil {
		t.Fatal("expected error on 502")
	}
}
