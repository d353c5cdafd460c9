package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/service-match/internal/fault"
	"github.com/example/service-match/internal/ingest"
	"github.com/example/service-match/internal/store"
)

// handleLifecycleEvent is the direct REST path for deployments without
// kafka: the CRUD service posts the same envelope it would otherwise
// publish. With kafka configured, HandleEnvelope is fed by the reader
// instead and this endpoint is simply unused.
func (s *Server) handleLifecycleEvent(w http.ResponseWriter, r *http.Request) {
	var e ingest.Envelope
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.HandleEnvelope(r.Context(), e); err != nil {
		if fault.CodeOf(err) == fault.NotFound {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEnvelope routes one lifecycle event to the owning coordinator.
func (s *Server) HandleEnvelope(ctx context.Context, e ingest.Envelope) error {
	switch e.Type {
	case ingest.RequestCreated:
		return s.match.BroadcastNewRequest(ctx, e.RequestID, e.ServiceTypeID, e.ServiceID)
	case ingest.BookingCreated:
		return s.match.NotifyRequestSettling(ctx, e.RequestID, e.BookingID, e.Provider)
	case ingest.ProposalSubmitted:
		return s.nego.NotifyProposalSubmitted(ctx, e.BookingID, e.Provider, e.Proposal)
	case ingest.ProviderArrived:
		return s.nego.NotifyProviderArrived(ctx, e.BookingID)
	case ingest.BookingCompleted:
		return s.nego.NotifyBookingCompleted(ctx, e.BookingID)
	case ingest.ProviderViewing:
		return s.match.NotifyProviderViewing(ctx, e.RequestID, e.ProviderID, e.ProviderName)
	default:
		return fault.Newf(fault.InvalidArgument, "unknown event type %q", e.Type)
	}
}

// handleGetMessages serves chat history to a verified booking participant.
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	binding, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	bookingID := mux.Vars(r)["booking_id"]

	ok, err := s.store.VerifyUserInBooking(r.Context(), bookingID, binding.UserID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	msgs, err := s.store.GetMessages(r.Context(), bookingID, limit, offset)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"booking_id": bookingID, "messages": msgs})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return def
	}
	return i
}
