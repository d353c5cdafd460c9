package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/service-match/internal/config"
	"github.com/example/service-match/internal/match"
	"github.com/example/service-match/internal/models"
	"github.com/example/service-match/internal/nego"
	"github.com/example/service-match/internal/notify"
	"github.com/example/service-match/internal/rooms"
	"github.com/example/service-match/internal/session"
	"github.com/example/service-match/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ms := store.NewMemoryStore()
	ms.AddUser("s1", "Sam")
	ms.AddUser("u1", "Pat")

	verifier := session.StaticVerifier{
		"tok-s1": {UserID: "s1", Role: session.RoleSeeker},
		"tok-u1": {UserID: "u1", Role: session.RoleProvider},
	}
	reg := rooms.NewRegistry(logger)
	dispatch := &notify.LogDispatcher{Logger: logger}
	mc := &match.Coordinator{Rooms: reg, Store: ms, Dispatch: dispatch, Logger: logger}
	nc := &nego.Coordinator{Rooms: reg, Store: ms, Dispatch: dispatch, Logger: logger}

	cfg, err := config.LoadGatewayConfig()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	srv := NewServer(cfg, logger, reg, mc, nc, ms, verifier)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, ms
}

func dial(t *testing.T, ts *httptest.Server, namespace, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + namespace + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", namespace, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"event": event, "data": data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func read(t *testing.T, conn *websocket.Conn) rooms.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev rooms.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	ts, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/matching?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

// The handshake ignores any client-claimed identity; the binding comes
// from the token alone, so a provider token cannot act as a seeker.
func TestRoleComesFromSessionNotHandshake(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts, "matching", "tok-u1")
	send(t, conn, "watch_request", map[string]any{"request_id": "r1"})
	ev := read(t, conn)
	if ev.Name != "error" {
		t.Fatalf("provider allowed to watch a request: %+v", ev)
	}
}

func TestWatchRequestRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts, "matching", "tok-s1")
	send(t, conn, "watch_request", map[string]any{"request_id": "r1"})
	ev := read(t, conn)
	if ev.Name != match.EvWatchingRequest {
		t.Fatalf("expected watching_request, got %+v", ev)
	}
}

func TestUnknownEventYieldsError(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts, "matching", "tok-s1")
	send(t, conn, "fly_to_moon", map[string]any{})
	ev := read(t, conn)
	if ev.Name != "error" {
		t.Fatalf("expected error frame, got %+v", ev)
	}
}

// End to end over the REST hook: request_created fans out to a provider
// in the pool, booking_created reaches the watching seeker.
func TestLifecycleEventFanout(t *testing.T) {
	ts, ms := newTestServer(t)
	ms.AddRequest(&models.RequestDetails{
		Request: models.Request{ID: "r1", ServiceTypeID: "T", SeekerUserID: "s1", Status: models.RequestPending},
	})

	prov := dial(t, ts, "matching", "tok-u1")
	send(t, prov, "join_provider_rooms", map[string]any{"service_type_ids": []string{"T"}})
	if ev := read(t, prov); ev.Name != match.EvJoinedRooms {
		t.Fatalf("join ack: %+v", ev)
	}

	seeker := dial(t, ts, "matching", "tok-s1")
	send(t, seeker, "watch_request", map[string]any{"request_id": "r1"})
	if ev := read(t, seeker); ev.Name != match.EvWatchingRequest {
		t.Fatalf("watch ack: %+v", ev)
	}

	postEvent(t, ts, map[string]any{"type": "request_created", "request_id": "r1", "service_type_id": "T"}, http.StatusNoContent)
	if ev := read(t, prov); ev.Name != match.EvNewRequest {
		t.Fatalf("provider expected new_request, got %+v", ev)
	}

	postEvent(t, ts, map[string]any{
		"type": "booking_created", "request_id": "r1", "booking_id": "b1",
		"provider": map[string]any{"user_id": "u1", "name": "Pat"},
	}, http.StatusNoContent)
	ev := read(t, seeker)
	if ev.Name != match.EvRequestSettling {
		t.Fatalf("seeker expected request_settling, got %+v", ev)
	}

	// removal is only wired through cancel, so the hook for an unknown
	// request reports not found instead of silently succeeding
	postEvent(t, ts, map[string]any{"type": "request_created", "request_id": "missing", "service_type_id": "T"}, http.StatusNotFound)
}

func postEvent(t *testing.T, ts *httptest.Server, body map[string]any, wantStatus int) {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+"/internal/events", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post event: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("event status %d, want %d", resp.StatusCode, wantStatus)
	}
}

func TestChatNamespaceIsolation(t *testing.T) {
	ts, ms := newTestServer(t)
	ms.AddBooking(&models.BookingParticipants{
		BookingID: "b1", RequestID: "r1",
		SeekerUserID: "s1", SeekerName: "Sam",
		ProviderUserID: "u9", ProviderName: "Other",
	})

	// u1 is not a participant of b1
	conn := dial(t, ts, "chat", "tok-u1")
	send(t, conn, "join_booking_chat", map[string]any{"booking_id": "b1"})
	ev := read(t, conn)
	if ev.Name != "error" {
		t.Fatalf("outsider joined booking chat: %+v", ev)
	}
}

func TestChatMessageRoundTrip(t *testing.T) {
	ts, ms := newTestServer(t)
	ms.AddBooking(&models.BookingParticipants{
		BookingID: "b1", RequestID: "r1",
		SeekerUserID: "s1", SeekerName: "Sam",
		ProviderUserID: "u1", ProviderName: "Pat",
	})

	seeker := dial(t, ts, "chat", "tok-s1")
	send(t, seeker, "join_booking_chat", map[string]any{"booking_id": "b1"})
	if ev := read(t, seeker); ev.Name != nego.EvJoinedBookingChat {
		t.Fatalf("join ack: %+v", ev)
	}

	prov := dial(t, ts, "chat", "tok-u1")
	send(t, prov, "join_booking_chat", map[string]any{"booking_id": "b1"})
	if ev := read(t, prov); ev.Name != nego.EvJoinedBookingChat {
		t.Fatalf("join ack: %+v", ev)
	}
	if ev := read(t, seeker); ev.Name != nego.EvUserJoined {
		t.Fatalf("seeker expected user_joined, got %+v", ev)
	}

	send(t, seeker, "send_message", map[string]any{"booking_id": "b1", "message": "hello"})
	for _, conn := range []*websocket.Conn{seeker, prov} {
		ev := read(t, conn)
		if ev.Name != nego.EvNewMessage {
			t.Fatalf("expected new_message, got %+v", ev)
		}
	}
}

func TestMessageHistoryEndpoint(t *testing.T) {
	ts, ms := newTestServer(t)
	ms.AddBooking(&models.BookingParticipants{
		BookingID: "b1", RequestID: "r1",
		SeekerUserID: "s1", SeekerName: "Sam",
		ProviderUserID: "u1", ProviderName: "Pat",
	})

	get := func(token string) int {
		req, _ := http.NewRequest("GET", ts.URL+"/api/v1/bookings/b1/messages?token="+token, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		return resp.StatusCode
	}

	if code := get("tok-s1"); code != http.StatusOK {
		t.Fatalf("participant got %d", code)
	}
	if code := get("garbage"); code != http.StatusUnauthorized {
		t.Fatalf("bad token got %d", code)
	}
}
