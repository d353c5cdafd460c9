// Command eventctl publishes a single lifecycle envelope onto the
// request-events topic. It exists for smoke-testing gateway fan-out
// without standing up the CRUD service.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/example/service-match/internal/ingest"
	"github.com/example/service-match/internal/models"
)

func main() {
	var (
		brokers      = flag.String("brokers", "localhost:9092", "comma-separated kafka brokers")
		topic        = flag.String("topic", "request-events", "destination topic")
		eventType    = flag.String("type", "", "event type (request_created, booking_created, ...)")
		requestID    = flag.String("request", "", "request id")
		bookingID    = flag.String("booking", "", "booking id")
		serviceType  = flag.String("service-type", "", "service type id")
		serviceID    = flag.String("service", "", "service id for targeted requests")
		providerID   = flag.String("provider", "", "provider user id")
		providerName = flag.String("provider-name", "", "provider display name")
	)
	flag.Parse()

	if *eventType == "" {
		log.Fatal("-type is required")
	}

	e := ingest.Envelope{
		Type:          ingest.EventType(*eventType),
		RequestID:     *requestID,
		BookingID:     *bookingID,
		ServiceTypeID: *serviceType,
		ServiceID:     *serviceID,
		ProviderID:    *providerID,
		ProviderName:  *providerName,
	}
	if *providerID != "" {
		e.Provider = models.ProviderInfo{UserID: *providerID, Name: *providerName}
	}

	p := ingest.NewProducer(strings.Split(*brokers, ","), *topic)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Publish(ctx, e); err != nil {
		log.Fatalf("publish: %v", err)
	}
	log.Printf("published %s request=%s booking=%s", e.Type, e.RequestID, e.BookingID)
}
