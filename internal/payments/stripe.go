package payments

import (
	"context"
	"os"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// StripeClient settles booking deposit holds: capture on completion,
// release on decline. The hold itself is placed by the external claim
// flow, which records the PaymentIntent ID on the booking row.
type StripeClient struct{}

// NewStripeClient initializes the stripe client with the STRIPE_API_KEY env var.
func NewStripeClient() *StripeClient {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	return &StripeClient{}
}

// CaptureDeposit finalizes a previously-held deposit once the booking
// completes.
func (s *StripeClient) CaptureDeposit(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Capture(paymentIntentID, nil)
	return err
}

// ReleaseDeposit cancels the hold when the booking is declined.
func (s *StripeClient) ReleaseDeposit(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Cancel(paymentIntentID, nil)
	return err
}
