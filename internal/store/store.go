// Package store is the persistence facade: the only component permitted to
// read or write durable marketplace state on behalf of the gateway.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/service-match/internal/models"
)

// ErrNotFound is returned when a referenced entity is absent. Callers
// depend on it to distinguish "already gone" from "succeeded".
var ErrNotFound = errors.New("not found")

// Facade is the narrow persistence interface both coordinators consume.
// Implementations must provide read-committed isolation and the unique
// constraint guaranteeing at most one non-cancelled booking per request;
// the coordinators add no locking of their own.
type Facade interface {
	GetRequestDetails(ctx context.Context, requestID string) (*models.RequestDetails, error)
	// DeleteRequest removes the request and its owned address and images
	// as one all-or-nothing operation.
	DeleteRequest(ctx context.Context, requestID string) error
	// GetTargetProviders resolves the providers eligible for a request:
	// the single owner of serviceID when set, else every provider with an
	// accepting service of the given type.
	GetTargetProviders(ctx context.Context, serviceTypeID, serviceID string) ([]string, error)
	VerifyUserInBooking(ctx context.Context, bookingID, userID string) (bool, error)
	GetBookingParticipants(ctx context.Context, bookingID string) (*models.BookingParticipants, error)
	CreateMessage(ctx context.Context, bookingID, userID, text string, imageKeys []string) (*models.Message, error)
	GetMessages(ctx context.Context, bookingID string, limit, offset int) ([]models.Message, error)
	// GetFCMToken resolves a user's current device token; empty when the
	// user has no registered device.
	GetFCMToken(ctx context.Context, userID string) (string, error)
}

// MemoryStore backs local runs and tests. Seed state through the exported
// Add helpers before serving.
type MemoryStore struct {
	mu           sync.RWMutex
	requests     map[string]*models.RequestDetails
	bookings     map[string]*models.BookingParticipants
	providers    map[string][]string // serviceTypeID -> provider user ids
	serviceOwner map[string]string   // serviceID -> provider user id
	messages     map[string][]models.Message
	userNames    map[string]string
	fcmTokens    map[string]string
	nextMsgID    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:     make(map[string]*models.RequestDetails),
		bookings:     make(map[string]*models.BookingParticipants),
		providers:    make(map[string][]string),
		serviceOwner: make(map[string]string),
		messages:     make(map[string][]models.Message),
		userNames:    make(map[string]string),
		fcmTokens:    make(map[string]string),
	}
}

func (m *MemoryStore) AddUser(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userNames[id] = name
}

func (m *MemoryStore) SetFCMToken(userID, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fcmTokens[userID] = token
}

func (m *MemoryStore) GetFCMToken(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.userNames[userID]; !ok {
		return "", ErrNotFound
	}
	return m.fcmTokens[userID], nil
}

func (m *MemoryStore) AddService(serviceID, serviceTypeID, providerUserID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serviceOwner[serviceID] = providerUserID
	m.providers[serviceTypeID] = append(m.providers[serviceTypeID], providerUserID)
}

func (m *MemoryStore) AddRequest(d *models.RequestDetails) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[d.ID] = d
}

func (m *MemoryStore) AddBooking(p *models.BookingParticipants) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[p.BookingID] = p
	if r, ok := m.requests[p.RequestID]; ok {
		r.Status = models.RequestSettling
	}
}

func (m *MemoryStore) GetRequestDetails(_ context.Context, requestID string) (*models.RequestDetails, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.requests[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) DeleteRequest(_ context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[requestID]; !ok {
		return ErrNotFound
	}
	delete(m.requests, requestID)
	return nil
}

func (m *MemoryStore) GetTargetProviders(_ context.Context, serviceTypeID, serviceID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if serviceID != "" {
		owner, ok := m.serviceOwner[serviceID]
		if !ok {
			return nil, ErrNotFound
		}
		return []string{owner}, nil
	}
	out := append([]string(nil), m.providers[serviceTypeID]...)
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) VerifyUserInBooking(_ context.Context, bookingID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.bookings[bookingID]
	if !ok {
		return false, ErrNotFound
	}
	return p.SeekerUserID == userID || p.ProviderUserID == userID, nil
}

func (m *MemoryStore) GetBookingParticipants(_ context.Context, bookingID string) (*models.BookingParticipants, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) CreateMessage(_ context.Context, bookingID, userID, text string, imageKeys []string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[bookingID]; !ok {
		return nil, ErrNotFound
	}
	m.nextMsgID++
	msg := models.Message{
		ID:         fmt.Sprintf("m%d", m.nextMsgID),
		BookingID:  bookingID,
		UserID:     userID,
		Text:       text,
		ImageKeys:  append([]string(nil), imageKeys...),
		SenderName: m.userNames[userID],
		CreatedAt:  time.Now(),
	}
	m.messages[bookingID] = append(m.messages[bookingID], msg)
	return &msg, nil
}

func (m *MemoryStore) GetMessages(_ context.Context, bookingID string, limit, offset int) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.messages[bookingID]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return append([]models.Message(nil), all[offset:end]...), nil
}
