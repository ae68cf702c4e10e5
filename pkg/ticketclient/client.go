/**
 * @description
 * This package provides a client for the Booking/Ticket service. It fetches the
 * ticket snapshot a customer wants to cancel and maps the service's camelCase
 * payload onto the domain model.
 *
 * @dependencies
 * - github.com/shopspring/decimal: fares are decoded without float rounding.
 * - github.com/sirupsen/logrus: logfmt warnings on failed calls.
 */
package ticketclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/skyconnect/booking-web/internal/domain"
	"github.com/skyconnect/booking-web/pkg/apiresult"
)

// Client is a client for the Booking/Ticket service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new ticket service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// TicketResponse is the ticket payload returned by the service.
type TicketResponse struct {
	TicketID    int64           `json:"ticketId"`
	BookingID   string          `json:"bookingId"`
	BookingDate string          `json:"bookingDate"`
	CustomerID  int64           `json:"customerId"`
	FlightID    int64           `json:"flightId"`
	JourneyDate string          `json:"journeyDate"`
	SeatCount   int             `json:"seatCount"`
	Status      string          `json:"status"`
	TotalFare   decimal.Decimal `json:"totalFare"`
}

// GetTicket fetches the ticket for bookingID on behalf of the token holder.
func (c *Client) GetTicket(ctx context.Context, bookingID, token string) (domain.Ticket, error) {
	if c.BaseURL == "" {
		return domain.Ticket{}, fmt.Errorf("ticket service base url is empty")
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return domain.Ticket{}, fmt.Errorf("booking id is empty")
	}

	endpoint := c.BaseURL + "/api/tickets/" + url.PathEscape(bookingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("failed to create ticket request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		logrus.WithFields(logrus.Fields{"component": "ticket_client", "op": "get_ticket", "booking_id": bookingID}).
			WithError(err).Warn("request failed")
		_, err = apiresult.Transport[TicketResponse](err).Unpack()
		return domain.Ticket{}, err
	}
	defer resp.Body.Close()

	payload, err := apiresult.Decode[TicketResponse](resp).Unpack()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"component":  "ticket_client",
			"op":         "get_ticket",
			"booking_id": bookingID,
			"status":     resp.StatusCode,
			"kind":       apiresult.KindOf(err).String(),
		}).Warn(apiresult.MessageOf(err))
		return domain.Ticket{}, err
	}

	ticket, err := payload.toDomain()
	if err != nil {
		_, err = apiresult.Err[domain.Ticket](apiresult.KindMalformed, resp.StatusCode, "invalid ticket payload", err).Unpack()
		return domain.Ticket{}, err
	}
	return ticket, nil
}

func (p TicketResponse) toDomain() (domain.Ticket, error) {
	journey, err := domain.ParseDate(p.JourneyDate)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("journey date: %w", err)
	}
	var booked domain.Date
	if strings.TrimSpace(p.BookingDate) != "" {
		if booked, err = domain.ParseDate(p.BookingDate); err != nil {
			return domain.Ticket{}, fmt.Errorf("booking date: %w", err)
		}
	}
	return domain.Ticket{
		TicketID:    p.TicketID,
		BookingID:   p.BookingID,
		BookingDate: booked,
		CustomerID:  p.CustomerID,
		FlightID:    p.FlightID,
		JourneyDate: journey,
		SeatCount:   p.SeatCount,
		Status:      domain.ParseTicketStatus(p.Status),
		TotalFare:   p.TotalFare,
	}, nil
}
