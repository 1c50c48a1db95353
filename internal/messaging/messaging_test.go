package messaging

import (
	"errors"
	"testing"
	"time"
)

func TestDelivery_AckSettlesOnce(t *testing.T) {
	acks := 0
	d := NewDelivery("id-1", "connect.events", []byte("payload"), nil,
		func() error { acks++; return nil },
		nil,
	)

	if d.Settled() {
		t.Fatal("new delivery should not be settled")
	}
	if err := d.Ack(); err != nil {
		t.Fatalf("first Ack: unexpected error %v", err)
	}
	if acks != 1 {
		t.Errorf("expected 1 ack callback, got %d", acks)
	}
	if !d.Settled() {
		t.Error("delivery should be settled after Ack")
	}

	if err := d.Ack(); !errors.Is(err, ErrSettled) {
		t.Errorf("second Ack: expected ErrSettled, got %v", err)
	}
	if err := d.Nak(time.Second); !errors.Is(err, ErrSettled) {
		t.Errorf("Nak after Ack: expected ErrSettled, got %v", err)
	}
	if acks != 1 {
		t.Errorf("callbacks ran again after settle: %d acks", acks)
	}
}

func TestDelivery_NakSettlesOnce(t *testing.T) {
	var gotDelay time.Duration
	naks := 0
	d := NewDelivery("id-2", "connect.events", nil, nil,
		nil,
		func(delay time.Duration) error { naks++; gotDelay = delay; return nil },
	)

	if err := d.Nak(5 * time.Second); err != nil {
		t.Fatalf("first Nak: unexpected error %v", err)
	}
	if naks != 1 {
		t.Errorf("expected 1 nak callback, got %d", naks)
	}
	if gotDelay != 5*time.Second {
		t.Errorf("expected delay 5s, got %v", gotDelay)
	}

	if err := d.Nak(time.Second); !errors.Is(err, ErrSettled) {
		t.Errorf("second Nak: expected ErrSettled, got %v", err)
	}
	if err := d.Ack(); !errors.Is(err, ErrSettled) {
		t.Errorf("Ack after Nak: expected ErrSettled, got %v", err)
	}
}

func TestDelivery_NilCallbacks(t *testing.T) {
	// Deliveries constructed without callbacks still settle. Tests rely on
	// this so they can assert pipeline behavior without a broker.
	d := NewDelivery("id-3", "connect.events", nil, nil, nil, nil)

	if err := d.Ack(); err != nil {
		t.Fatalf("Ack with nil callback: unexpected error %v", err)
	}
	if !d.Settled() {
		t.Error("delivery should be settled")
	}
}

func TestDelivery_CallbackErrorStillSettles(t *testing.T) {
	wantErr := errors.New("broker gone")
	d := NewDelivery("id-4", "connect.events", nil, nil,
		func() error { return wantErr },
		nil,
	)

	if err := d.Ack(); !errors.Is(err, wantErr) {
		t.Fatalf("expected broker error, got %v", err)
	}
	// The settle already happened; a retry must not reach the broker twice.
	if err := d.Ack(); !errors.Is(err, ErrSettled) {
		t.Errorf("expected ErrSettled on retry, got %v", err)
	}
}

func TestDelivery_Fields(t *testing.T) {
	meta := map[string]string{"Test-Mode": "true"}
	d := NewDelivery("id-5", "connect.events", []byte("data"), meta, nil, nil)

	if d.ID != "id-5" {
		t.Errorf("expected ID 'id-5', got %q", d.ID)
	}
	if d.Subject != "connect.events" {
		t.Errorf("expected Subject 'connect.events', got %q", d.Subject)
	}
	if string(d.Data) != "data" {
		t.Errorf("expected Data 'data', got %q", string(d.Data))
	}
	if d.Metadata["Test-Mode"] != "true" {
		t.Errorf("expected Test-Mode metadata, got %v", d.Metadata)
	}
	if d.Timestamp.IsZero() {
		t.Error("expected non-zero Timestamp")
	}
}

func TestMessage_ZeroValue(t *testing.T) {
	var msg Message

	if msg.Subject != "" {
		t.Errorf("expected empty Subject, got %q", msg.Subject)
	}
	if msg.Data != nil {
		t.Errorf("expected nil Data, got %v", msg.Data)
	}
	if msg.Metadata != nil {
		t.Errorf("expected nil Metadata, got %v", msg.Metadata)
	}
}
