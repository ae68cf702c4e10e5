/**
 * @description
 * This file contains the HTTP handlers for the booking web service. Handlers
 * parse the request, call the cancellation service with the caller's identity,
 * and write the rendered page or a JSON error.
 *
 * @dependencies
 * - internal/app: the cancellation orchestrator.
 * - internal/session: the caller's bearer identity.
 * - pkg/apiresult: classification of downstream failures.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/skyconnect/booking-web/internal/app"
	"github.com/skyconnect/booking-web/internal/confirmation"
	"github.com/skyconnect/booking-web/internal/domain"
	"github.com/skyconnect/booking-web/internal/logging"
	"github.com/skyconnect/booking-web/internal/policy"
	"github.com/skyconnect/booking-web/internal/session"
	"github.com/skyconnect/booking-web/internal/store"
	"github.com/skyconnect/booking-web/pkg/apiresult"
)

const (
	messageLoginRequired  = "Please log in to continue."
	messageLoginFailed    = "Invalid email or password."
	messageUnavailable    = "Service temporarily unavailable. Please try again."
	messageViewNotFound   = "This cancellation page has expired. Please reopen it from your bookings."
	messageTooManyTries   = "Too many attempts. Please wait and try again."
	messageAlreadyDone    = "This ticket has already been cancelled."
	messageRequestPending = "Please wait for the current request to finish."
	messageRequestFirst   = "Please request an OTP first."
)

// Authenticator exchanges customer credentials for a bearer token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, domain.Customer, error)
}

// Handlers holds the application service that handlers will use.
type Handlers struct {
	service *app.Service
	auth    Authenticator
	now     func() time.Time
}

// NewHandlers creates a new instance of Handlers. auth may be nil, in which
// case login is reported as unavailable.
func NewHandlers(service *app.Service, auth Authenticator) *Handlers {
	return &Handlers{service: service, auth: auth, now: time.Now}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string          `json:"token"`
	Customer domain.Customer `json:"customer"`
}

type verifyRequest struct {
	OTP string `json:"otp"`
}

type policyResponse struct {
	Today domain.Date   `json:"today"`
	Tiers []policy.Tier `json:"tiers"`
}

type historyResponse struct {
	BookingID string             `json:"booking_id"`
	Entries   []store.AuditEntry `json:"entries"`
}

type errorResponse struct {
	Error  string    `json:"error"`
	Detail string    `json:"detail,omitempty"`
	Page   *app.Page `json:"page,omitempty"`
}

// CancellationPolicyHandler serves the fare policy table shown beside the quote.
func (h *Handlers) CancellationPolicyHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, policyResponse{Today: h.service.Today(), Tiers: policy.Tiers()})
}

// LoginHandler proxies customer login to the auth service.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		h.writeError(w, http.StatusServiceUnavailable, messageUnavailable, "auth service not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "Email and password are required", "")
		return
	}

	token, customer, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		logging.FromContext(r.Context()).WithField("component", "api").WithError(err).Warn("login failed")
		switch apiresult.KindOf(err) {
		case apiresult.KindUnauthorized, apiresult.KindNotFound, apiresult.KindRejected:
			h.writeError(w, http.StatusUnauthorized, messageLoginFailed, apiresult.MessageOf(err))
		default:
			h.writeError(w, http.StatusBadGateway, messageUnavailable, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusOK, loginResponse{Token: token, Customer: customer})
}

// OpenCancellationHandler fetches the ticket and opens a cancellation view.
func (h *Handlers) OpenCancellationHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	page, err := h.service.Open(r.Context(), identity, chi.URLParam(r, "bookingId"))
	if err != nil {
		h.writeServiceError(w, r, nil, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, page)
}

// GetViewHandler renders an open view.
func (h *Handlers) GetViewHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	page, err := h.service.Page(r.Context(), identity, chi.URLParam(r, "viewId"))
	if err != nil {
		h.writeServiceError(w, r, nil, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// CloseViewHandler destroys a view when the customer leaves the page.
func (h *Handlers) CloseViewHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := h.service.Close(r.Context(), identity, chi.URLParam(r, "viewId")); err != nil {
		h.writeServiceError(w, r, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestOTPHandler requests, or resends, the confirmation code.
func (h *Handlers) RequestOTPHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	page, err := h.service.RequestOTP(r.Context(), identity, chi.URLParam(r, "viewId"))
	if err != nil {
		h.writeServiceError(w, r, &page, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// VerifyOTPHandler submits the code and, on success, cancels the booking.
func (h *Handlers) VerifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	page, err := h.service.VerifyOTP(r.Context(), identity, chi.URLParam(r, "viewId"), req.OTP)
	if err != nil {
		h.writeServiceError(w, r, &page, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// CancellationHistoryHandler lists what this service recorded for the caller's booking.
func (h *Handlers) CancellationHistoryHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit", raw)
			return
		}
		limit = parsed
	}

	bookingID := chi.URLParam(r, "bookingId")
	entries, err := h.service.History(r.Context(), identity, bookingID, limit)
	if err != nil {
		h.writeServiceError(w, r, nil, err)
		return
	}
	h.writeJSON(w, http.StatusOK, historyResponse{BookingID: bookingID, Entries: entries})
}

func (h *Handlers) identity(w http.ResponseWriter, r *http.Request) (session.Identity, bool) {
	identity, ok := session.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, messageLoginRequired, "missing identity")
		return session.Identity{}, false
	}
	return identity, true
}

// writeServiceError maps service and downstream errors to a status code. When
// the action failed on an open view the rendered page travels with the error.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, page *app.Page, err error) {
	if page != nil && page.ViewID == "" {
		page = nil
	}
	status, message := statusFor(err)
	downstream := apiresult.KindOf(err) != 0 || status >= http.StatusInternalServerError
	if downstream && page != nil && page.Notice != nil && page.Notice.IsError {
		message = page.Notice.Text
	}

	var exceeded *app.AttemptsExceededError
	if errors.As(err, &exceeded) && exceeded.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(exceeded.RetryAfter.Seconds())))
	}

	detail := apiresult.MessageOf(err)
	if detail == "" {
		detail = err.Error()
	}

	entry := logging.FromContext(r.Context()).WithFields(logrus.Fields{"component": "api", "status": status, "path": r.URL.Path})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.WithError(err).Info("request rejected")
	}

	h.writeJSON(w, status, errorResponse{Error: message, Detail: detail, Page: page})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrMissingBookingID):
		return http.StatusBadRequest, "Booking id is required."
	case errors.Is(err, confirmation.ErrEmptyCode):
		return http.StatusBadRequest, confirmation.MessageEmptyCode
	case errors.Is(err, confirmation.ErrOTPNotRequested):
		return http.StatusConflict, messageRequestFirst
	case errors.Is(err, confirmation.ErrAlreadyVerified), errors.Is(err, app.ErrTicketNotCancellable):
		return http.StatusConflict, messageAlreadyDone
	case errors.Is(err, confirmation.ErrRequestInFlight):
		return http.StatusConflict, messageRequestPending
	case errors.Is(err, app.ErrAttemptsExceeded):
		return http.StatusTooManyRequests, messageTooManyTries
	case errors.Is(err, app.ErrViewNotFound):
		return http.StatusNotFound, messageViewNotFound
	case errors.Is(err, app.ErrTicketLoad):
		switch apiresult.KindOf(err) {
		case apiresult.KindNotFound:
			return http.StatusNotFound, app.MessageTicketLoadFailed
		case apiresult.KindUnauthorized:
			return http.StatusUnauthorized, messageLoginRequired
		default:
			return http.StatusBadGateway, app.MessageTicketLoadFailed
		}
	}

	switch apiresult.KindOf(err) {
	case apiresult.KindUnauthorized:
		return http.StatusUnauthorized, messageLoginRequired
	case apiresult.KindRejected:
		return http.StatusUnprocessableEntity, messageUnavailable
	case 0:
		return http.StatusInternalServerError, messageUnavailable
	default:
		return http.StatusBadGateway, messageUnavailable
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *Handlers) writeError(w http.ResponseWriter, status int, message, detail string) {
	h.writeJSON(w, status, errorResponse{Error: message, Detail: detail})
}
