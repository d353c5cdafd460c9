// Package nego owns the booking-room lifecycle: message relay, typing
// relay, proposal notifications, and decline handling. It never mutates
// booking status itself; status transitions ride the REST path and are
// only mirrored into the room from here.
package nego

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	"github.com/example/service-match/internal/fault"
	"github.com/example/service-match/internal/models"
	"github.com/example/service-match/internal/notify"
	"github.com/example/service-match/internal/observability"
	"github.com/example/service-match/internal/rooms"
	"github.com/example/service-match/internal/session"
	"github.com/example/service-match/internal/store"
)

// Outbound event names, chat namespace.
const (
	EvJoinedBookingChat = "joined_booking_chat"
	EvLeftBookingChat   = "left_booking_chat"
	EvUserJoined        = "user_joined"
	EvUserLeft          = "user_left"
	EvNewMessage        = "new_message"
	EvUserTyping        = "user_typing"
	EvBookingDeclined   = "booking_declined"
	EvProposalSubmitted = "proposal_submitted"
	EvProposalDeclined  = "proposal_declined"
	EvProviderArrived   = "provider_arrived"
	EvBookingCompleted  = "booking_completed"
)

// Deposits settles the payment hold attached to a booking. Nil disables
// the deposit flow entirely.
type Deposits interface {
	CaptureDeposit(ctx context.Context, paymentIntentID string) error
	ReleaseDeposit(ctx context.Context, paymentIntentID string) error
}

type Coordinator struct {
	Rooms    *rooms.Registry
	Store    store.Facade
	Dispatch notify.Dispatcher
	Deposits Deposits
	Logger   *slog.Logger
}

// verifyParticipant gates every room mutation: only the seeker and
// provider of the booking may act on its room.
func (c *Coordinator) verifyParticipant(ctx context.Context, bookingID, userID string) error {
	ok, err := c.Store.VerifyUserInBooking(ctx, bookingID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fault.New(fault.NotFound, "booking not found")
		}
		return fault.Wrap(fault.OperationFailed, "verify participant", err)
	}
	if !ok {
		return fault.New(fault.Forbidden, "not a booking participant")
	}
	return nil
}

func (c *Coordinator) JoinBookingRoom(ctx context.Context, p session.Peer, bookingID string) error {
	if bookingID == "" {
		return fault.New(fault.InvalidArgument, "booking id required")
	}
	if err := c.verifyParticipant(ctx, bookingID, p.UserID()); err != nil {
		return err
	}
	room := rooms.BookingRoom(bookingID)
	c.Rooms.Join(room, p.Sink)
	c.Rooms.BroadcastExcept(room, p.Sink.ID(), rooms.Event{
		Name: EvUserJoined,
		Data: map[string]any{"user_id": p.UserID(), "booking_id": bookingID},
	})
	_ = p.Sink.Send(rooms.Event{Name: EvJoinedBookingChat, Data: map[string]any{"booking_id": bookingID}})
	return nil
}

// LeaveBookingRoom carries no participancy re-check so it stays safe to
// call from disconnect paths where the connection may already be gone.
func (c *Coordinator) LeaveBookingRoom(ctx context.Context, p session.Peer, bookingID string) error {
	room := rooms.BookingRoom(bookingID)
	c.Rooms.Leave(room, p.Sink.ID())
	c.Rooms.Broadcast(room, rooms.Event{
		Name: EvUserLeft,
		Data: map[string]any{"user_id": p.UserID(), "booking_id": bookingID},
	})
	_ = p.Sink.Send(rooms.Event{Name: EvLeftBookingChat, Data: map[string]any{"booking_id": bookingID}})
	return nil
}

// SendMessage persists the message, broadcasts it to the full room
// (sender included, so all clients converge on the same order), then
// fires a chat push at the other participant. The push can fail without
// failing the send.
func (c *Coordinator) SendMessage(ctx context.Context, p session.Peer, bookingID, text string, imageKeys []string) error {
	if bookingID == "" {
		return fault.New(fault.InvalidArgument, "booking id required")
	}
	if text == "" && len(imageKeys) == 0 {
		return fault.New(fault.InvalidArgument, "empty message")
	}
	bp, err := c.Store.GetBookingParticipants(ctx, bookingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fault.New(fault.NotFound, "booking not found")
		}
		return fault.Wrap(fault.OperationFailed, "fetch booking", err)
	}
	if bp.SeekerUserID != p.UserID() && bp.ProviderUserID != p.UserID() {
		return fault.New(fault.Forbidden, "not a booking participant")
	}

	msg, err := c.Store.CreateMessage(ctx, bookingID, p.UserID(), text, imageKeys)
	if err != nil {
		return fault.Wrap(fault.OperationFailed, "persist message", err)
	}

	c.Rooms.Broadcast(rooms.BookingRoom(bookingID), rooms.Event{Name: EvNewMessage, Data: msg})
	observability.BroadcastsTotal.WithLabelValues(EvNewMessage).Inc()
	observability.MessagesTotal.Inc()

	other := bp.ProviderUserID
	if p.UserID() == bp.ProviderUserID {
		other = bp.SeekerUserID
	}
	c.fireAndForget(ctx, func(ctx context.Context) error {
		return c.Dispatch.SendChatMessageNotification(ctx, other, msg.SenderName, preview(msg), bookingID)
	})
	return nil
}

// SendTyping relays to the other room members only; nothing is persisted
// and loss on disconnect is acceptable.
func (c *Coordinator) SendTyping(ctx context.Context, p session.Peer, bookingID string, isTyping bool) error {
	if err := c.verifyParticipant(ctx, bookingID, p.UserID()); err != nil {
		return err
	}
	c.Rooms.BroadcastExcept(rooms.BookingRoom(bookingID), p.Sink.ID(), rooms.Event{
		Name: EvUserTyping,
		Data: map[string]any{"user_id": p.UserID(), "booking_id": bookingID, "is_typing": isTyping},
	})
	return nil
}

// DeclineBooking is provider-initiated. It broadcasts the decline and
// notifies the seeker but deliberately leaves the booking row and request
// status untouched; the client navigates both parties out of the room.
func (c *Coordinator) DeclineBooking(ctx context.Context, p session.Peer, bookingID, requestID string) error {
	if p.Role() != session.RoleProvider {
		return fault.New(fault.Unauthorized, "provider role required")
	}
	bp, err := c.Store.GetBookingParticipants(ctx, bookingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fault.New(fault.NotFound, "booking not found")
		}
		return fault.Wrap(fault.OperationFailed, "fetch booking", err)
	}
	if bp.ProviderUserID != p.UserID() {
		return fault.New(fault.Forbidden, "not the booking provider")
	}

	c.Rooms.Broadcast(rooms.BookingRoom(bookingID), rooms.Event{
		Name: EvBookingDeclined,
		Data: map[string]any{"booking_id": bookingID, "request_id": requestID},
	})
	observability.BroadcastsTotal.WithLabelValues(EvBookingDeclined).Inc()

	c.fireAndForget(ctx, func(ctx context.Context) error {
		return c.Dispatch.SendPushNotification(ctx, bp.SeekerUserID, "Booking declined",
			bp.ProviderName+" declined the booking",
			map[string]string{"type": "booking_declined", "booking_id": bookingID, "request_id": requestID})
	})
	c.releaseDeposit(ctx, bp)
	return nil
}

// DeclineProposal returns both parties to the chat screen without
// deleting the booking.
func (c *Coordinator) DeclineProposal(ctx context.Context, p session.Peer, bookingID string) error {
	if err := c.verifyParticipant(ctx, bookingID, p.UserID()); err != nil {
		return err
	}
	c.Rooms.Broadcast(rooms.BookingRoom(bookingID), rooms.Event{
		Name: EvProposalDeclined,
		Data: map[string]any{"booking_id": bookingID},
	})
	return nil
}

// AcceptProposal is a verified no-op: acceptance is acknowledged client
// side and the status transition itself rides the REST path.
func (c *Coordinator) AcceptProposal(ctx context.Context, p session.Peer, bookingID string) error {
	return c.verifyParticipant(ctx, bookingID, p.UserID())
}

// NotifyProposalSubmitted mirrors a REST-persisted proposal into the room.
func (c *Coordinator) NotifyProposalSubmitted(ctx context.Context, bookingID string, provider models.ProviderInfo, proposal models.Proposal) error {
	n := c.Rooms.Broadcast(rooms.BookingRoom(bookingID), rooms.Event{
		Name: EvProposalSubmitted,
		Data: map[string]any{"booking_id": bookingID, "provider_info": provider, "proposal": proposal},
	})
	observability.BroadcastsTotal.WithLabelValues(EvProposalSubmitted).Inc()
	c.Logger.Info("proposal submitted", "booking_id", bookingID, "notified", n)
	return nil
}

func (c *Coordinator) NotifyProviderArrived(ctx context.Context, bookingID string) error {
	c.Rooms.Broadcast(rooms.BookingRoom(bookingID), rooms.Event{
		Name: EvProviderArrived,
		Data: map[string]any{"booking_id": bookingID},
	})
	return nil
}

func (c *Coordinator) NotifyBookingCompleted(ctx context.Context, bookingID string) error {
	c.Rooms.Broadcast(rooms.BookingRoom(bookingID), rooms.Event{
		Name: EvBookingCompleted,
		Data: map[string]any{"booking_id": bookingID},
	})
	if c.Deposits != nil {
		bp, err := c.Store.GetBookingParticipants(ctx, bookingID)
		if err != nil {
			c.Logger.Warn("deposit lookup failed", "booking_id", bookingID, "error", err)
			return nil
		}
		if bp.DepositIntentID != "" {
			c.fireAndForget(ctx, func(ctx context.Context) error {
				return c.Deposits.CaptureDeposit(ctx, bp.DepositIntentID)
			})
		}
	}
	return nil
}

// releaseDeposit cancels the payment hold on a declined booking. Retries
// belong to the payment provider's reconciliation, not the room path.
func (c *Coordinator) releaseDeposit(ctx context.Context, bp *models.BookingParticipants) {
	if c.Deposits == nil || bp.DepositIntentID == "" {
		return
	}
	c.fireAndForget(ctx, func(ctx context.Context) error {
		return c.Deposits.ReleaseDeposit(ctx, bp.DepositIntentID)
	})
}

// fireAndForget runs a notification dispatch outside the caller's
// lifetime; failures are logged and counted, never propagated.
func (c *Coordinator) fireAndForget(ctx context.Context, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := fn(ctx); err != nil {
			observability.NotifyFailures.Inc()
			c.Logger.Warn("notification dispatch failed", "error", err)
		}
	}()
}

func preview(m *models.Message) string {
	if m.Text == "" {
		return "Sent an image"
	}
	if len(m.Text) <= 80 {
		return m.Text
	}
	// back up to a rune boundary so the cut never splits a character
	cut := 80
	for cut > 0 && !utf8.RuneStart(m.Text[cut]) {
		cut--
	}
	return m.Text[:cut]
}
