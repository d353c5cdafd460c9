// Package match owns the request lifecycle on the gateway: fan-out on
// create, watch-room delivery while pending, removal on cancel, and the
// settling signal when a provider claims.
package match

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/service-match/internal/fault"
	"github.com/example/service-match/internal/models"
	"github.com/example/service-match/internal/notify"
	"github.com/example/service-match/internal/observability"
	"github.com/example/service-match/internal/rooms"
	"github.com/example/service-match/internal/session"
	"github.com/example/service-match/internal/store"
)

// Outbound event names, matching namespace.
const (
	EvJoinedRooms      = "joined_rooms"
	EvLeftRooms        = "left_rooms"
	EvWatchingRequest  = "watching_request"
	EvUnwatchedRequest = "unwatched_request"
	EvRequestCancelled = "request_cancelled"
	EvRequestRemoved   = "request_removed"
	EvNewRequest       = "new_request"
	EvRequestSettling  = "request_settling"
	EvProviderViewing  = "provider_viewing"
)

type Coordinator struct {
	Rooms    *rooms.Registry
	Store    store.Facade
	Dispatch notify.Dispatcher
	Logger   *slog.Logger
}

// JoinProviderRooms subscribes a provider connection to the broadcast pool
// for each service type plus the provider's personal room (for targeted
// requests). Joining an already-joined room is a no-op.
func (c *Coordinator) JoinProviderRooms(ctx context.Context, p session.Peer, serviceTypeIDs []string) error {
	if p.Role() != session.RoleProvider {
		return fault.New(fault.Unauthorized, "provider role required")
	}
	if len(serviceTypeIDs) == 0 {
		return fault.New(fault.InvalidArgument, "service type ids required")
	}
	for _, id := range serviceTypeIDs {
		if id == "" {
			return fault.New(fault.InvalidArgument, "empty service type id")
		}
	}
	for _, id := range serviceTypeIDs {
		c.Rooms.Join(rooms.ServiceTypeRoom(id), p.Sink)
	}
	c.Rooms.Join(rooms.ProviderRoom(p.UserID()), p.Sink)
	_ = p.Sink.Send(rooms.Event{Name: EvJoinedRooms, Data: map[string]any{"service_type_ids": serviceTypeIDs}})
	return nil
}

// LeaveProviderRooms is best-effort: leaving rooms the connection never
// joined is not an error, which supports disable-then-retry flows. The
// personal room is kept until disconnect so targeted requests still reach
// a provider who merely toggled one service type off.
func (c *Coordinator) LeaveProviderRooms(ctx context.Context, p session.Peer, serviceTypeIDs []string) error {
	if p.Role() != session.RoleProvider {
		return fault.New(fault.Unauthorized, "provider role required")
	}
	for _, id := range serviceTypeIDs {
		c.Rooms.Leave(rooms.ServiceTypeRoom(id), p.Sink.ID())
	}
	_ = p.Sink.Send(rooms.Event{Name: EvLeftRooms, Data: map[string]any{"service_type_ids": serviceTypeIDs}})
	return nil
}

// WatchRequest joins the seeker to the request's watch room so settling
// and cancellation land without an always-on personal channel.
func (c *Coordinator) WatchRequest(ctx context.Context, p session.Peer, requestID string) error {
	if p.Role() != session.RoleSeeker {
		return fault.New(fault.Unauthorized, "seeker role required")
	}
	if requestID == "" {
		return fault.New(fault.InvalidArgument, "request id required")
	}
	c.Rooms.Join(rooms.RequestRoom(requestID), p.Sink)
	_ = p.Sink.Send(rooms.Event{Name: EvWatchingRequest, Data: map[string]any{"request_id": requestID}})
	return nil
}

func (c *Coordinator) UnwatchRequest(ctx context.Context, p session.Peer, requestID string) error {
	if p.Role() != session.RoleSeeker {
		return fault.New(fault.Unauthorized, "seeker role required")
	}
	c.Rooms.Leave(rooms.RequestRoom(requestID), p.Sink.ID())
	_ = p.Sink.Send(rooms.Event{Name: EvUnwatchedRequest, Data: map[string]any{"request_id": requestID}})
	return nil
}

// CancelRequest deletes a pending request and tells everyone who could see
// it. The delete is all-or-nothing; broadcasts only happen after it
// commits, so a failed delete leaves every client's view untouched.
func (c *Coordinator) CancelRequest(ctx context.Context, p session.Peer, requestID string) error {
	if p.Role() != session.RoleSeeker {
		return fault.New(fault.Unauthorized, "seeker role required")
	}
	if requestID == "" {
		return fault.New(fault.InvalidArgument, "request id required")
	}
	d, err := c.Store.GetRequestDetails(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fault.New(fault.NotFound, "request not found")
		}
		return fault.Wrap(fault.OperationFailed, "fetch request", err)
	}
	if d.SeekerUserID != p.UserID() {
		return fault.New(fault.Forbidden, "not the request owner")
	}
	if err := c.Store.DeleteRequest(ctx, requestID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fault.New(fault.NotFound, "request not found")
		}
		return fault.Wrap(fault.OperationFailed, "delete request", err)
	}

	_ = p.Sink.Send(rooms.Event{Name: EvRequestCancelled, Data: map[string]any{"request_id": requestID}})

	room, ok := c.targetRoom(ctx, d)
	if !ok {
		// cancellation already committed; providers fall back to their
		// own refresh
		return nil
	}
	n := c.Rooms.Broadcast(room, rooms.Event{Name: EvRequestRemoved, Data: map[string]any{"request_id": requestID}})
	observability.BroadcastsTotal.WithLabelValues(EvRequestRemoved).Inc()
	c.Logger.Info("request cancelled", "request_id", requestID, "room", room, "notified", n)
	return nil
}

// BroadcastNewRequest is the fan-out point, invoked by the external
// request-creation flow. Every provider connection in the target room gets
// the same payload; delivery is at-most-once with no ordering guarantee
// across providers.
func (c *Coordinator) BroadcastNewRequest(ctx context.Context, requestID, serviceTypeID, serviceID string) error {
	d, err := c.Store.GetRequestDetails(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fault.New(fault.NotFound, "request not found")
		}
		return fault.Wrap(fault.OperationFailed, "fetch request", err)
	}
	room, ok := c.targetRoom(ctx, d)
	if !ok {
		return fault.Newf(fault.NotFound, "no target for service %s", serviceID)
	}
	n := c.Rooms.Broadcast(room, rooms.Event{Name: EvNewRequest, Data: d})
	observability.BroadcastsTotal.WithLabelValues(EvNewRequest).Inc()
	observability.RequestFanouts.Inc()
	c.Logger.Info("new request broadcast", "request_id", requestID, "room", room, "notified", n)
	return nil
}

// NotifyRequestSettling signals the watching seeker that a provider
// claimed the request and negotiation has begun. Other providers are not
// told; their stale entries last until their own refresh. A push also goes
// to the seeker so a claim lands even when the watch connection is gone.
func (c *Coordinator) NotifyRequestSettling(ctx context.Context, requestID, bookingID string, provider models.ProviderInfo) error {
	n := c.Rooms.Broadcast(rooms.RequestRoom(requestID), rooms.Event{
		Name: EvRequestSettling,
		Data: map[string]any{"request_id": requestID, "booking_id": bookingID, "provider": provider},
	})
	observability.BroadcastsTotal.WithLabelValues(EvRequestSettling).Inc()
	c.Logger.Info("request settling", "request_id", requestID, "booking_id", bookingID, "notified", n)

	d, err := c.Store.GetRequestDetails(ctx, requestID)
	if err != nil {
		c.Logger.Warn("seeker lookup for settling push failed", "request_id", requestID, "error", err)
		return nil
	}
	c.fireAndForget(ctx, func(ctx context.Context) error {
		return c.Dispatch.SendPushNotification(ctx, d.SeekerUserID, "Provider found",
			provider.Name+" accepted your request",
			map[string]string{"type": EvRequestSettling, "request_id": requestID, "booking_id": bookingID})
	})
	return nil
}

// NotifyProviderViewing is a soft-state ping with no persistence.
func (c *Coordinator) NotifyProviderViewing(ctx context.Context, requestID, providerID, providerName string) error {
	c.Rooms.Broadcast(rooms.RequestRoom(requestID), rooms.Event{
		Name: EvProviderViewing,
		Data: map[string]any{"request_id": requestID, "provider_id": providerID, "provider_name": providerName},
	})
	return nil
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

// targetRoom picks the room eligible for a request: the owning provider's
// personal room when the request targets one service, else the general
// service-type pool.
func (c *Coordinator) targetRoom(ctx context.Context, d *models.RequestDetails) (string, bool) {
	if d.ServiceID == "" {
		return rooms.ServiceTypeRoom(d.ServiceTypeID), true
	}
	owners, err := c.Store.GetTargetProviders(ctx, d.ServiceTypeID, d.ServiceID)
	if err != nil || len(owners) == 0 {
		c.Logger.Warn("target provider lookup failed", "service_id", d.ServiceID, "error", err)
		return "", false
	}
	return rooms.ProviderRoom(owners[0]), true
}
