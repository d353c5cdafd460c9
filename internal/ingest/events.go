// Package ingest carries request/booking lifecycle events from the
// external CRUD service into the gateway. The CRUD side publishes one
// envelope per state change; every gateway instance consumes the topic and
// mirrors the change into its local rooms.
package ingest

import "github.com/example/service-match/internal/models"

type EventType string

const (
	RequestCreated    EventType = "request_created"
	BookingCreated    EventType = "booking_created"
	ProposalSubmitted EventType = "proposal_submitted"
	ProviderArrived   EventType = "provider_arrived"
	BookingCompleted  EventType = "booking_completed"
	ProviderViewing   EventType = "provider_viewing"
)

// Envelope is the wire shape on the request-events topic. Fields beyond
// Type are populated per event type; unused ones stay zero.
type Envelope struct {
	Type EventType `json:"type"`

	RequestID     string `json:"request_id,omitempty"`
	ServiceTypeID string `json:"service_type_id,omitempty"`
	ServiceID     string `json:"service_id,omitempty"`
	BookingID     string `json:"booking_id,omitempty"`

	Provider models.ProviderInfo `json:"provider,omitempty"`
	Proposal models.Proposal     `json:"proposal,omitempty"`

	ProviderID   string `json:"provider_id,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// key groups ordering: events for one request (and its booking) land on
// one partition so settle never overtakes create.
func (e Envelope) key() []byte {
	if e.RequestID != "" {
		return []byte(e.RequestID)
	}
	return []byte(e.BookingID)
}
