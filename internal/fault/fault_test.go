package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(NotFound, "gone")); got != NotFound {
		t.Fatalf("got %s", got)
	}
	// classification survives wrapping
	wrapped := fmt.Errorf("handler: %w", New(Forbidden, "nope"))
	if got := CodeOf(wrapped); got != Forbidden {
		t.Fatalf("got %s", got)
	}
	// unclassified errors default to OperationFailed
	if got := CodeOf(errors.New("boom")); got != OperationFailed {
		t.Fatalf("got %s", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Wrap(OperationFailed, "delete request", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	if err.Message != "delete request" {
		t.Fatalf("message %q", err.Message)
	}
}
