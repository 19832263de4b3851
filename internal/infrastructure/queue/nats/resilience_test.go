package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/resilience"
)

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		trips     bool
	}{
		{name: "no servers", err: fmt.Errorf("nats publish: %w", nats.ErrNoServers), retryable: true, trips: true},
		{name: "closed", err: nats.ErrConnectionClosed, retryable: true, trips: true},
		{name: "cancelled", err: context.Canceled},
		{name: "bad subject", err: nats.ErrBadSubject},
		{name: "max payload", err: fmt.Errorf("nats publish: %w", nats.ErrMaxPayload)},
		{name: "unknown", err: errors.New("boom"), trips: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := classifyNATSError(tc.err)
			if v.Retryable != tc.retryable || v.Trips != tc.trips {
				t.Fatalf("verdict = %+v", v)
			}
		})
	}
}

func TestPublishFailureIsMarkedTemporary(t *testing.T) {
	err := resilience.MarkTemporary("nats publish", fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed), classifyNATSError)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	err = resilience.MarkTemporary("nats publish", errors.New("payload too large"), classifyNATSError)
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("permanent error marked temporary: %v", err)
	}
}
