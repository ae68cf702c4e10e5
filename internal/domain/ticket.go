/**
 * @description
 * This file defines the core domain models for the booking-web service.
 * These structs represent the ticket snapshot fetched from the Booking Service,
 * the locally computed cancellation quote, and the server-authoritative
 * cancellation result.
 *
 * @notes
 * - Fares are `decimal.Decimal` in major currency units; the Booking Service
 *   reports them that way and the cancellation charge is rounded to whole units.
 * - A Ticket is an immutable copy for the lifetime of one cancellation view.
 */

package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus is the booking state reported by the Booking Service.
type TicketStatus string

const (
	TicketStatusConfirmed TicketStatus = "CONFIRMED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
	TicketStatusPending   TicketStatus = "PENDING"
	TicketStatusUnknown   TicketStatus = "UNKNOWN"
)

// ParseTicketStatus maps the service's status string onto a TicketStatus.
// Both spellings of cancelled are accepted.
func ParseTicketStatus(raw string) TicketStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CONFIRMED":
		return TicketStatusConfirmed
	case "CANCELLED", "CANCELED":
		return TicketStatusCancelled
	case "PENDING":
		return TicketStatusPending
	default:
		return TicketStatusUnknown
	}
}

// Ticket is the read-only snapshot of a booking used by the cancellation flow.
type Ticket struct {
	TicketID    int64           `json:"ticket_id,omitempty"`
	BookingID   string          `json:"booking_id"`
	BookingDate Date            `json:"booking_date"`
	CustomerID  int64           `json:"customer_id,omitempty"`
	FlightID    int64           `json:"flight_id,omitempty"`
	JourneyDate Date            `json:"journey_date"`
	SeatCount   int             `json:"seat_count,omitempty"`
	Status      TicketStatus    `json:"status"`
	TotalFare   decimal.Decimal `json:"total_fare"`
}

// CancellationQuote is the locally derived, pre-confirmation estimate.
// It is never stored; it is recomputed from the ticket on every render.
type CancellationQuote struct {
	DaysUntilJourney int             `json:"days_until_journey"`
	Rate             decimal.Decimal `json:"rate"`
	Charge           decimal.Decimal `json:"charge"`
	Refund           decimal.Decimal `json:"refund"`
}

// CancellationResult is the final outcome reported by the Cancellation
// service once the OTP has been verified. It supersedes any local quote.
type CancellationResult struct {
	BookingID          string          `json:"booking_id"`
	JourneyDate        Date            `json:"journey_date"`
	TotalFare          decimal.Decimal `json:"total_fare"`
	CancellationCharge decimal.Decimal `json:"cancellation_charge"`
	RefundAmount       decimal.Decimal `json:"refund_amount"`
	RefundStatus       string          `json:"refund_status"`
	Message            string          `json:"message"`
}

// Customer is the profile returned alongside a token at login.
type Customer struct {
	CustomerID  int64  `json:"customer_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
	Verified    bool   `json:"verified"`
}

// CancellationConfirmedEvent is published once a cancellation is finalized.
type CancellationConfirmedEvent struct {
	EventID            string          `json:"event_id"`
	ViewID             string          `json:"view_id"`
	Subject            string          `json:"subject"`
	BookingID          string          `json:"booking_id"`
	CancellationDate   Date            `json:"cancellation_date"`
	CancellationCharge decimal.Decimal `json:"cancellation_charge"`
	RefundAmount       decimal.Decimal `json:"refund_amount"`
	RefundStatus       string          `json:"refund_status"`
	OccurredAt         time.Time       `json:"occurred_at"`
}
