package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/service-match/internal/fault"
	"github.com/example/service-match/internal/observability"
	"github.com/example/service-match/internal/rooms"
	"github.com/example/service-match/internal/session"
)

// eventHandler is one named callback slot in a namespace's routing table.
type eventHandler func(ctx context.Context, p session.Peer, data json.RawMessage) error

// inboundFrame is the wire shape of every client-sent event.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type providerRoomsPayload struct {
	ServiceTypeIDs []string `json:"service_type_ids"`
}

type requestPayload struct {
	RequestID string `json:"request_id"`
}

type bookingPayload struct {
	BookingID string `json:"booking_id"`
}

type messagePayload struct {
	BookingID string   `json:"booking_id"`
	Message   string   `json:"message"`
	ImageKeys []string `json:"image_keys"`
}

type typingPayload struct {
	BookingID string `json:"booking_id"`
	IsTyping  bool   `json:"is_typing"`
}

type declineBookingPayload struct {
	BookingID string `json:"booking_id"`
	RequestID string `json:"request_id"`
}

func (s *Server) buildMatchingHandlers() map[string]eventHandler {
	return map[string]eventHandler{
		"join_provider_rooms": func(ctx context.Context, p session.Peer, data json.RawMessage) error {
			var pl providerRoomsPayload
			if err := decode(data, &pl); err != nil {
				return err
			}
			return s.match.JoinProviderRooms(ctx, p, pl.ServiceTypeIDs)
		},
		"leave_provider_rooms": func(ctx context.Context, p session.Peer, data json.RawMessage) error {
			var pl providerRoomsPayload
			if err := decode(data, &pl); err != nil {
				return err
			}
			return s.match.LeaveProviderRooms(ctx, p, pl.ServiceTypeIDs)
		},
		"watch_request": func(ctx context.Context, p session.Peer, data json.RawMessage) error {
			var pl requestPayload
			if err := decode(data, &pl); err != nil {
				return err
			}
			return s.match.WatchRequest(ctx, p, pl.RequestID)
		},
		"unwatch_request": func(ctx context.Context, p session.Peer, data json.RawMessage) error {
			var pl requestPayload
			if err := decode(data, &pl); err != nil {
				return err
			}
			return s.match.UnwatchRequest(ctx, p, pl.RequestID)
		},
		"cancel_request": func(ctx context.Context, p session.Peer, data json.RawMessage) error {
			var pl requestPayload
			if err := decode(data, &pl); err != nil {
				return err
			}
			return s.match.CancelRequest(ctx, p, pl.RequestID)
		},
	}
}

func (s *Server) buildChatHandlers() map[string]eventHandler {
	return map[string]eventHandler{
		"join_booking_chat": func(ctx context.Context, p session.Peer, data json.RawMessage) error {
			var pl bookingPayload
			if err := decode(data, &pl); err != nil {
				return err
			}
			return s.nego.JoinBookingRoom(ctx, p, pl.BookingID)
		},
		"leave_booking_chat": func(ctx context.Context, p session.Peer, data json.RawMessage) error {
			var pl bookingPayload
			if err := decode(data, &pl); err != nil {
				return err
			}
			return s.nego.LeaveBookingRoom(ctx, p, pl.BookingID)
		},
		"send_message": func(ctx context.Context, p session.Peer, data json.RawMessage) error {
			var pl messagePayload
			if err := decode(data, &pl); err != nil {
				return err
			}
			return s.nego.SendMessage(ctx, p, pl.BookingID, pl.Message, pl.ImageKeys)
		},
		"typing": func(ctx context.Context, p session.Peer, data json.RawMessage) error {
			var pl typingPayload
			if err := decode(data, &pl); err != nil {
				return err
			}
			return s.nego.SendTyping(ctx, p, pl.BookingID, pl.IsTyping)
		},
		"decline_booking": func(ctx context.Context, p session.Peer, data json.RawMessage) error {
			var pl declineBookingPayload
			if err := decode(data, &pl); err != nil {
				return err
			}
			return s.nego.DeclineBooking(ctx, p, pl.BookingID, pl.RequestID)
		},
		"decline_proposal": func(ctx context.Context, p session.Peer, data json.RawMessage) error {
			var pl bookingPayload
			if err := decode(data, &pl); err != nil {
				return err
			}
			return s.nego.DeclineProposal(ctx, p, pl.BookingID)
		},
		"accept_proposal": func(ctx context.Context, p session.Peer, data json.RawMessage) error {
			var pl bookingPayload
			if err := decode(data, &pl); err != nil {
				return err
			}
			return s.nego.AcceptProposal(ctx, p, pl.BookingID)
		},
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fault.New(fault.InvalidArgument, "missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fault.Wrap(fault.InvalidArgument, "malformed payload", err)
	}
	return nil
}

func (s *Server) handleMatchingWS(w http.ResponseWriter, r *http.Request) {
	s.serveNamespace(w, r, "matching", s.matchingHandlers)
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	s.serveNamespace(w, r, "chat", s.chatHandlers)
}

// serveNamespace authenticates the handshake, upgrades, and runs the read
// loop. One reader goroutine per connection keeps events from the same
// client strictly ordered.
func (s *Server) serveNamespace(w http.ResponseWriter, r *http.Request, name string, handlers map[string]eventHandler) {
	binding, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		return
	}
	conn.SetReadLimit(s.cfg.MaxFrameBytes)

	sink := newWSSink(conn)
	peer := session.Peer{Sink: sink, Binding: binding}

	observability.ConnectionsActive.WithLabelValues(name).Inc()
	s.logger.Info("ws connected", "namespace", name, "user", binding.UserID, "role", binding.Role, "sink", sink.ID())

	defer func() {
		// implicit leave for every room; no user_left side effects
		s.rooms.Drop(sink.ID())
		_ = conn.Close()
		observability.ConnectionsActive.WithLabelValues(name).Dec()
		s.logger.Info("ws disconnected", "namespace", name, "user", binding.UserID, "sink", sink.ID())
	}()

	ctx := r.Context()
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		h, ok := handlers[frame.Event]
		if !ok {
			s.sendError(sink, fault.Newf(fault.InvalidArgument, "unknown event %q", frame.Event))
			continue
		}
		if err := h(ctx, peer, frame.Data); err != nil {
			s.sendError(sink, err)
		}
	}
}

// authenticate derives identity solely from the verified server-side
// session. The token comes from the session cookie or, for clients that
// cannot set cookies on the upgrade, a query parameter. Client-claimed
// identity fields in the handshake are never read.
func (s *Server) authenticate(r *http.Request) (session.Binding, error) {
	token := ""
	if c, err := r.Cookie("session_token"); err == nil {
		token = c.Value
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return s.verifier.Verify(r.Context(), token)
}

func (s *Server) sendError(sink rooms.Sink, err error) {
	code := fault.CodeOf(err)
	observability.CoordinatorFaults.WithLabelValues(string(code)).Inc()
	s.logger.Warn("operation failed", "sink", sink.ID(), "code", code, "error", err)
	msg := err.Error()
	var fe *fault.Error
	if errors.As(err, &fe) {
		msg = fe.Message
	}
	_ = sink.Send(rooms.Event{Name: "error", Data: map[string]any{"message": msg, "code": code}})
}
