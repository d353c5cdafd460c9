package models

import "time"

// Request statuses. A request is pending until exactly one booking claims
// it, at which point it becomes settling and leaves circulation.
const (
	RequestPending  = "pending"
	RequestSettling = "settling"
)

// Booking statuses. Status transitions are written by the REST CRUD path;
// the gateway only mirrors them into rooms.
const (
	BookingPending   = "pending"
	BookingInTransit = "in_transit"
	BookingServing   = "serving"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

type Address struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

type Request struct {
	ID            string    `json:"id"`
	ServiceTypeID string    `json:"service_type_id"`
	ServiceID     string    `json:"service_id,omitempty"` // set when the seeker targets one provider
	SeekerUserID  string    `json:"seeker_user_id"`
	AddressID     string    `json:"address_id"`
	Description   string    `json:"description"`
	ImageKeys     []string  `json:"image_keys,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RequestDetails is the fan-out payload: the request joined with the
// display fields providers need to render it.
type RequestDetails struct {
	Request
	ServiceTypeName string  `json:"service_type_name"`
	SeekerName      string  `json:"seeker_name"`
	Address         Address `json:"address"`
}

type Booking struct {
	ID             string    `json:"id"`
	ProviderUserID string    `json:"provider_user_id"`
	SeekerUserID   string    `json:"seeker_user_id"`
	ServiceID      string    `json:"service_id"`
	RequestID      string    `json:"request_id"`
	Cost           int64     `json:"cost"`
	Status         string    `json:"status"`
	Specifications string    `json:"specifications,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BookingParticipants carries the two sides of a booking plus their display
// names, resolved in one store round trip.
type BookingParticipants struct {
	BookingID      string `json:"booking_id"`
	RequestID      string `json:"request_id"`
	SeekerUserID   string `json:"seeker_user_id"`
	SeekerName     string `json:"seeker_name"`
	ProviderUserID string `json:"provider_user_id"`
	ProviderName   string `json:"provider_name"`
	// DepositIntentID is the payment hold placed when the provider claimed
	// the request; empty for bookings without a deposit.
	DepositIntentID string `json:"deposit_intent_id,omitempty"`
}

type Message struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	Text       string    `json:"message"`
	ImageKeys  []string  `json:"image_keys,omitempty"`
	SenderName string    `json:"sender"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProviderInfo is the provider display payload attached to settling and
// proposal events.
type ProviderInfo struct {
	UserID string  `json:"user_id"`
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

// Proposal is the negotiated cost/specification offer. Persisted by the
// REST path; the gateway only broadcasts it.
type Proposal struct {
	BookingID      string  `json:"booking_id"`
	Cost           int64   `json:"cost"`
	Specifications string  `json:"specifications"`
	Address        Address `json:"address"`
}
