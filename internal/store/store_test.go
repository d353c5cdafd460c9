package store

import (
	"context"
	"errors"
	"testing"

	"github.com/example/service-match/internal/models"
)

func seeded() *MemoryStore {
	ms := NewMemoryStore()
	ms.AddUser("s1", "Sam")
	ms.AddUser("u1", "Pat")
	ms.AddService("svc1", "T", "u1")
	ms.AddService("svc2", "T", "u2")
	ms.AddRequest(&models.RequestDetails{
		Request: models.Request{ID: "r1", ServiceTypeID: "T", SeekerUserID: "s1", Status: models.RequestPending},
	})
	ms.AddBooking(&models.BookingParticipants{
		BookingID: "b1", RequestID: "r1",
		SeekerUserID: "s1", SeekerName: "Sam",
		ProviderUserID: "u1", ProviderName: "Pat",
	})
	return ms
}

func TestGetRequestDetailsNotFound(t *testing.T) {
	ms := NewMemoryStore()
	if _, err := ms.GetRequestDetails(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRequest(t *testing.T) {
	ms := seeded()
	ctx := context.Background()
	if err := ms.DeleteRequest(ctx, "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ms.DeleteRequest(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestBookingMarksRequestSettling(t *testing.T) {
	ms := seeded()
	d, err := ms.GetRequestDetails(context.Background(), "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Status != models.RequestSettling {
		t.Fatalf("expected settling, got %s", d.Status)
	}
}

func TestGetTargetProviders(t *testing.T) {
	ms := seeded()
	ctx := context.Background()

	owners, err := ms.GetTargetProviders(ctx, "T", "svc1")
	if err != nil || len(owners) != 1 || owners[0] != "u1" {
		t.Fatalf("targeted lookup: %v %v", owners, err)
	}
	if _, err := ms.GetTargetProviders(ctx, "T", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown service, got %v", err)
	}
	all, err := ms.GetTargetProviders(ctx, "T", "")
	if err != nil || len(all) != 2 {
		t.Fatalf("pool lookup: %v %v", all, err)
	}
}

func TestVerifyUserInBooking(t *testing.T) {
	ms := seeded()
	ctx := context.Background()
	for _, u := range []string{"s1", "u1"} {
		ok, err := ms.VerifyUserInBooking(ctx, "b1", u)
		if err != nil || !ok {
			t.Fatalf("%s should be a participant: %v %v", u, ok, err)
		}
	}
	ok, err := ms.VerifyUserInBooking(ctx, "b1", "x9")
	if err != nil || ok {
		t.Fatalf("outsider verified: %v %v", ok, err)
	}
	if _, err := ms.VerifyUserInBooking(ctx, "nope", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMessagesPagination(t *testing.T) {
	ms := seeded()
	ctx := context.Background()
	for _, txt := range []string{"a", "b", "c", "d"} {
		if _, err := ms.CreateMessage(ctx, "b1", "s1", txt, nil); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	page, err := ms.GetMessages(ctx, "b1", 2, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(page) != 2 || page[0].Text != "b" || page[1].Text != "c" {
		t.Fatalf("wrong page: %+v", page)
	}
	if page[0].SenderName != "Sam" {
		t.Fatalf("sender name not resolved: %+v", page[0])
	}
	empty, err := ms.GetMessages(ctx, "b1", 10, 99)
	if err != nil || len(empty) != 0 {
		t.Fatalf("offset past end: %v %v", empty, err)
	}
}

func TestCreateMessageUnknownBooking(t *testing.T) {
	ms := seeded()
	if _, err := ms.CreateMessage(context.Background(), "nope", "s1", "hi", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetFCMToken(t *testing.T) {
	ms := NewMemoryStore()
	ms.AddUser("u1", "Pat")
	ms.SetFCMToken("u1", "tok-1")

	tok, err := ms.GetFCMToken(context.Background(), "u1")
	if err != nil || tok != "tok-1" {
		t.Fatalf("got (%q, %v)", tok, err)
	}

	ms.AddUser("u2", "Sam")
	tok, err = ms.GetFCMToken(context.Background(), "u2")
	if err != nil || tok != "" {
		t.Fatalf("deviceless user: got (%q, %v)", tok, err)
	}

	if _, err := ms.GetFCMToken(context.Background(), "ghost"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
