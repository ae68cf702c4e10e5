/**
 * @description
 * This package provides a client for the Cancellation service. The service
 * emails a one-time password to the customer and, once that code is verified,
 * cancels the booking and reports the authoritative charge and refund.
 */
package cancelclient

import (
	"bytes"
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

// Client is a client for the Cancellation service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new cancellation service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// CancellationResponse is the verify payload returned by the service.
type CancellationResponse struct {
	BookingID          string          `json:"bookingId"`
	JourneyDate        string          `json:"journeyDate"`
	TotalFare          decimal.Decimal `json:"totalFare"`
	CancellationCharge decimal.Decimal `json:"cancellationCharge"`
	RefundAmount       decimal.Decimal `json:"refundAmount"`
	RefundStatus       string          `json:"refundStatus"`
	Message            string          `json:"message"`
}

// RequestCancellationOTP asks the service to email a fresh code to the token
// holder. Any 2xx answer, including a plain text one, counts as sent.
func (c *Client) RequestCancellationOTP(ctx context.Context, token string) error {
	resp, err := c.post(ctx, "/api/ticketCancel/otp/request", nil, token)
	if err != nil {
		logrus.WithFields(logrus.Fields{"component": "cancel_client", "op": "request_otp"}).
			WithError(err).Warn("request failed")
		_, err = apiresult.Transport[apiresult.Ack](err).Unpack()
		return err
	}
	defer resp.Body.Close()

	if _, err := apiresult.DecodeAck(resp).Unpack(); err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "cancel_client",
			"op":        "request_otp",
			"status":    resp.StatusCode,
			"kind":      apiresult.KindOf(err).String(),
		}).Warn(apiresult.MessageOf(err))
		return err
	}
	return nil
}

// VerifyCancellationOTP submits code for bookingID with the given cancellation
// date. On success the booking is cancelled server side.
func (c *Client) VerifyCancellationOTP(ctx context.Context, bookingID, code string, cancellationDate domain.Date, token string) (domain.CancellationResult, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return domain.CancellationResult{}, fmt.Errorf("booking id is empty")
	}

	query := url.Values{}
	query.Set("cancellationDate", cancellationDate.String())
	query.Set("otp", code)
	path := "/api/ticketCancel/otp/" + url.PathEscape(bookingID) + "/verify"

	resp, err := c.post(ctx, path, query, token)
	if err != nil {
		logrus.WithFields(logrus.Fields{"component": "cancel_client", "op": "verify_otp", "booking_id": bookingID}).
			WithError(err).Warn("request failed")
		_, err = apiresult.Transport[CancellationResponse](err).Unpack()
		return domain.CancellationResult{}, err
	}
	defer resp.Body.Close()

	payload, err := apiresult.Decode[CancellationResponse](resp).Unpack()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"component":  "cancel_client",
			"op":         "verify_otp",
			"booking_id": bookingID,
			"status":     resp.StatusCode,
			"kind":       apiresult.KindOf(err).String(),
		}).Warn(apiresult.MessageOf(err))
		return domain.CancellationResult{}, err
	}
	if strings.TrimSpace(payload.RefundStatus) == "" && strings.TrimSpace(payload.Message) == "" {
		logrus.WithFields(logrus.Fields{
			"component":  "cancel_client",
			"op":         "verify_otp",
			"booking_id": bookingID,
			"status":     resp.StatusCode,
		}).Warn("verify response carries no outcome")
		_, err = apiresult.Err[domain.CancellationResult](apiresult.KindMalformed, resp.StatusCode, "verify response carries no outcome", nil).Unpack()
		return domain.CancellationResult{}, err
	}

	result := domain.CancellationResult{
		BookingID:          payload.BookingID,
		TotalFare:          payload.TotalFare,
		CancellationCharge: payload.CancellationCharge,
		RefundAmount:       payload.RefundAmount,
		RefundStatus:       payload.RefundStatus,
		Message:            payload.Message,
	}
	if result.BookingID == "" {
		result.BookingID = bookingID
	}
	if strings.TrimSpace(payload.JourneyDate) != "" {
		journey, err := domain.ParseDate(payload.JourneyDate)
		if err != nil {
			_, err = apiresult.Err[domain.CancellationResult](apiresult.KindMalformed, resp.StatusCode, "invalid journey date", err).Unpack()
			return domain.CancellationResult{}, err
		}
		result.JourneyDate = journey
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, query url.Values, token string) (*http.Response, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("cancellation service base url is empty")
	}
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString("{}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.HTTPClient.Do(req)
}
