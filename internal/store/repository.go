/**
 * @description
 * This file defines the `AuditRepository` interface for the cancellation audit
 * trail. The Booking Service stays the source of truth for the ticket itself;
 * the audit trail only records what this service attempted and observed.
 */

package store

import (
	"context"
	"time"
)

// AuditEvent names a step of the cancellation flow.
type AuditEvent string

const (
	EventViewOpened       AuditEvent = "view_opened"
	EventTicketLoadFailed AuditEvent = "ticket_load_failed"
	EventOTPRequested     AuditEvent = "otp_requested"
	EventOTPRequestFailed AuditEvent = "otp_request_failed"
	EventOTPVerified      AuditEvent = "otp_verified"
	EventOTPVerifyFailed  AuditEvent = "otp_verify_failed"
	EventAttemptsExceeded AuditEvent = "attempts_exceeded"
	EventViewClosed       AuditEvent = "view_closed"
	EventViewExpired      AuditEvent = "view_expired"
)

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	ID         int64      `json:"id"`
	ViewID     string     `json:"view_id,omitempty"`
	Subject    string     `json:"-"`
	BookingID  string     `json:"booking_id"`
	Event      AuditEvent `json:"event"`
	State      string     `json:"state,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// AuditRepository stores and lists audit entries.
type AuditRepository interface {
	Record(ctx context.Context, entry AuditEntry) error
	ListByBooking(ctx context.Context, bookingID, subject string, limit int) ([]AuditEntry, error)
}

// NoopRepository is used when no database is configured.
type NoopRepository struct{}

func (NoopRepository) Record(ctx context.Context, entry AuditEntry) error { return nil }

func (NoopRepository) ListByBooking(ctx context.Context, bookingID, subject string, limit int) ([]AuditEntry, error) {
	return []AuditEntry{}, nil
}
