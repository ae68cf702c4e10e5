/**
 * @description
 * This file contains the ticket cancellation orchestrator. The `Service` opens
 * a cancellation view for a booking, renders it with a freshly computed quote,
 * and drives the view's OTP confirmation session against the Cancellation
 * service using the caller's own bearer token.
 *
 * Key features:
 * - A view only exists once its ticket has been fetched.
 * - The quote is derived on every render and never stored.
 * - Once verified, the server's figures replace the local quote.
 * - Audit rows, metrics and the confirmed-cancellation event are best effort.
 *
 * @dependencies
 * - internal/confirmation, internal/policy: state machine and fare policy.
 * - internal/store, pkg/rabbitmq: audit trail and event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/skyconnect/booking-web/internal/confirmation"
	"github.com/skyconnect/booking-web/internal/domain"
	"github.com/skyconnect/booking-web/internal/logging"
	"github.com/skyconnect/booking-web/internal/metrics"
	"github.com/skyconnect/booking-web/internal/policy"
	"github.com/skyconnect/booking-web/internal/session"
	"github.com/skyconnect/booking-web/internal/store"
	"github.com/skyconnect/booking-web/pkg/apiresult"
)

// MessageTicketLoadFailed is shown when the page cannot be opened.
const MessageTicketLoadFailed = "Failed to load ticket details. Please try again."

const (
	scopeOTPRequest = "otp_request"
	scopeOTPVerify  = "otp_verify"
	attemptWindow   = time.Hour
	sideEffectLimit = 5 * time.Second
)

var (
	ErrMissingBookingID     = errors.New("booking id is required")
	ErrTicketLoad           = errors.New("ticket could not be loaded")
	ErrViewNotFound         = errors.New("cancellation view not found")
	ErrTicketNotCancellable = errors.New("ticket is already cancelled")
	ErrAttemptsExceeded     = errors.New("too many attempts")
)

// AttemptsExceededError carries the retry hint of a rejected attempt.
type AttemptsExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *AttemptsExceededError) Error() string {
	return fmt.Sprintf("too many %s attempts; retry after %s", e.Scope, e.RetryAfter)
}

func (e *AttemptsExceededError) Is(target error) bool {
	return target == ErrAttemptsExceeded
}

// TicketFetcher reads ticket snapshots from the Booking Service.
type TicketFetcher interface {
	GetTicket(ctx context.Context, bookingID, token string) (domain.Ticket, error)
}

// CancellationAPI is the Cancellation service.
type CancellationAPI interface {
	RequestCancellationOTP(ctx context.Context, token string) error
	VerifyCancellationOTP(ctx context.Context, bookingID, code string, cancellationDate domain.Date, token string) (domain.CancellationResult, error)
}

// EventPublisher publishes confirmed cancellations.
type EventPublisher interface {
	PublishCancellationConfirmed(ctx context.Context, event domain.CancellationConfirmedEvent) error
}

// Options tune the Service. Zero values select the defaults.
type Options struct {
	Location        *time.Location
	ViewTTL         time.Duration
	OTPRequestLimit int
	OTPVerifyLimit  int
	Now             func() time.Time
	AttemptLimiter  AttemptLimiter
	Audit           store.AuditRepository
	EventPublisher  EventPublisher
}

// Service orchestrates the ticket cancellation flow.
type Service struct {
	tickets      TicketFetcher
	cancellation CancellationAPI
	views        *ViewStore

	location     *time.Location
	viewTTL      time.Duration
	requestLimit int
	verifyLimit  int
	now          func() time.Time
	limiter      AttemptLimiter
	audit        store.AuditRepository
	events       EventPublisher
}

// NewService creates a new cancellation service instance.
func NewService(tickets TicketFetcher, cancellation CancellationAPI, opts Options) *Service {
	s := &Service{
		tickets:      tickets,
		cancellation: cancellation,
		views:        NewViewStore(),
		location:     opts.Location,
		viewTTL:      opts.ViewTTL,
		requestLimit: opts.OTPRequestLimit,
		verifyLimit:  opts.OTPVerifyLimit,
		now:          opts.Now,
		limiter:      opts.AttemptLimiter,
		audit:        opts.Audit,
		events:       opts.EventPublisher,
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.viewTTL <= 0 {
		s.viewTTL = 30 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.audit == nil {
		s.audit = store.NoopRepository{}
	}
	return s
}

// Action is something the page lets the customer do next.
type Action string

const (
	ActionRequestOTP Action = "request_otp"
	ActionResendOTP  Action = "resend_otp"
	ActionVerifyOTP  Action = "verify_otp"
	ActionReturn     Action = "return"
)

// Page is the rendered cancellation view.
type Page struct {
	ViewID           string                     `json:"view_id"`
	Ticket           domain.Ticket              `json:"ticket"`
	CancellationDate domain.Date                `json:"cancellation_date"`
	State            confirmation.State         `json:"state"`
	Quote            *domain.CancellationQuote  `json:"quote,omitempty"`
	Result           *domain.CancellationResult `json:"result,omitempty"`
	Notice           *confirmation.Notice       `json:"notice,omitempty"`
	InFlight         bool                       `json:"in_flight"`
	Actions          []Action                   `json:"actions"`
}

// Today is the current calendar date in the configured zone.
func (s *Service) Today() domain.Date {
	return domain.DateIn(s.now(), s.location)
}

// Open fetches the ticket and creates a view for it. Without a ticket there
// is no view and nothing further can be done until the page is reloaded.
func (s *Service) Open(ctx context.Context, identity session.Identity, bookingID string) (Page, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return Page{}, ErrMissingBookingID
	}
	logger := logging.FromContext(ctx).WithFields(logrus.Fields{"component": "app", "booking_id": bookingID})

	start := time.Now()
	ticket, err := s.tickets.GetTicket(ctx, bookingID, identity.Token)
	metrics.ObserveDownstream("get_ticket", start)
	if err != nil {
		metrics.TicketFetchFailures.WithLabelValues(kindLabel(err)).Inc()
		logger.WithError(err).Warn("ticket fetch failed")
		s.record(ctx, store.AuditEntry{Subject: identity.Subject, BookingID: bookingID, Event: store.EventTicketLoadFailed, Detail: err.Error()})
		return Page{}, fmt.Errorf("%w: %w", ErrTicketLoad, err)
	}
	if ticket.BookingID == "" {
		ticket.BookingID = bookingID
	}

	v := s.views.create(identity.Subject, ticket, s.now())
	metrics.ViewsOpened.Inc()
	metrics.ViewsActive.Set(float64(s.views.Len()))
	logger.WithField("view_id", v.id).Info("cancellation view opened")
	s.record(ctx, store.AuditEntry{ViewID: v.id, Subject: identity.Subject, BookingID: ticket.BookingID, Event: store.EventViewOpened, State: confirmation.StateIdle.String()})

	return s.render(v, v.session.Snapshot()), nil
}

// Page re-renders an open view.
func (s *Service) Page(ctx context.Context, identity session.Identity, viewID string) (Page, error) {
	v, ok := s.views.get(viewID, identity.Subject, s.now())
	if !ok {
		return Page{}, ErrViewNotFound
	}
	return s.render(v, v.session.Snapshot()), nil
}

// RequestOTP sends, or resends, the confirmation code for the view's booking.
func (s *Service) RequestOTP(ctx context.Context, identity session.Identity, viewID string) (Page, error) {
	v, ok := s.views.get(viewID, identity.Subject, s.now())
	if !ok {
		return Page{}, ErrViewNotFound
	}
	current := v.session.Snapshot()
	if v.ticket.Status == domain.TicketStatusCancelled && current.State != confirmation.StateVerified {
		return s.render(v, current), ErrTicketNotCancellable
	}
	logger := logging.FromContext(ctx).WithFields(logrus.Fields{"component": "app", "view_id": v.id, "booking_id": v.ticket.BookingID})

	if current.State != confirmation.StateVerified && !current.InFlight {
		if err := s.consumeAttempt(ctx, logger, scopeOTPRequest, identity.Subject, s.requestLimit); err != nil {
			metrics.OTPRequests.WithLabelValues(metrics.OutcomeLimited).Inc()
			s.record(ctx, store.AuditEntry{ViewID: v.id, Subject: identity.Subject, BookingID: v.ticket.BookingID, Event: store.EventAttemptsExceeded, State: current.State.String(), Detail: scopeOTPRequest})
			return s.render(v, current), err
		}
	}

	gateway := s.gateway(v, identity, s.Today())
	snap, err := v.session.RequestOTP(ctx, gateway)
	switch {
	case err == nil:
		metrics.OTPRequests.WithLabelValues(metrics.OutcomeSuccess).Inc()
		logger.WithField("requests", snap.Requests).Info("otp sent")
		s.record(ctx, store.AuditEntry{ViewID: v.id, Subject: identity.Subject, BookingID: v.ticket.BookingID, Event: store.EventOTPRequested, State: snap.State.String()})
	case isPrecondition(err):
		metrics.OTPRequests.WithLabelValues(metrics.OutcomeRejected).Inc()
	default:
		metrics.OTPRequests.WithLabelValues(metrics.OutcomeFailure).Inc()
		logger.WithError(err).Warn("otp request failed")
		s.record(ctx, store.AuditEntry{ViewID: v.id, Subject: identity.Subject, BookingID: v.ticket.BookingID, Event: store.EventOTPRequestFailed, State: snap.State.String(), Detail: err.Error()})
	}
	return s.render(v, snap), err
}

// VerifyOTP submits the customer's code. On success the booking is cancelled
// server side and the page switches to the server's figures.
func (s *Service) VerifyOTP(ctx context.Context, identity session.Identity, viewID, code string) (Page, error) {
	v, ok := s.views.get(viewID, identity.Subject, s.now())
	if !ok {
		return Page{}, ErrViewNotFound
	}
	logger := logging.FromContext(ctx).WithFields(logrus.Fields{"component": "app", "view_id": v.id, "booking_id": v.ticket.BookingID})

	current := v.session.Snapshot()
	if current.State == confirmation.StateOTPRequested && !current.InFlight && strings.TrimSpace(code) != "" {
		if err := s.consumeAttempt(ctx, logger, scopeOTPVerify, identity.Subject, s.verifyLimit); err != nil {
			metrics.OTPVerifications.WithLabelValues(metrics.OutcomeLimited).Inc()
			s.record(ctx, store.AuditEntry{ViewID: v.id, Subject: identity.Subject, BookingID: v.ticket.BookingID, Event: store.EventAttemptsExceeded, State: current.State.String(), Detail: scopeOTPVerify})
			return s.render(v, current), err
		}
	}

	today := s.Today()
	snap, err := v.session.VerifyOTP(ctx, s.gateway(v, identity, today), code)
	switch {
	case err == nil:
		metrics.OTPVerifications.WithLabelValues(metrics.OutcomeSuccess).Inc()
		logger.WithField("refund_status", snap.Result.RefundStatus).Info("cancellation verified")
		s.record(ctx, store.AuditEntry{ViewID: v.id, Subject: identity.Subject, BookingID: v.ticket.BookingID, Event: store.EventOTPVerified, State: snap.State.String(), Detail: snap.Result.RefundStatus})
		s.publishConfirmed(ctx, logger, v, identity, today, *snap.Result)
	case isPrecondition(err):
		metrics.OTPVerifications.WithLabelValues(metrics.OutcomeRejected).Inc()
	default:
		metrics.OTPVerifications.WithLabelValues(metrics.OutcomeFailure).Inc()
		logger.WithError(err).Warn("otp verification failed")
		s.record(ctx, store.AuditEntry{ViewID: v.id, Subject: identity.Subject, BookingID: v.ticket.BookingID, Event: store.EventOTPVerifyFailed, State: snap.State.String(), Detail: err.Error()})
	}
	return s.render(v, snap), err
}

// Close destroys the view; the customer left the page.
func (s *Service) Close(ctx context.Context, identity session.Identity, viewID string) error {
	v, ok := s.views.remove(viewID, identity.Subject)
	if !ok {
		return ErrViewNotFound
	}
	metrics.ViewsActive.Set(float64(s.views.Len()))
	s.record(ctx, store.AuditEntry{ViewID: v.id, Subject: identity.Subject, BookingID: v.ticket.BookingID, Event: store.EventViewClosed, State: v.session.Snapshot().State.String()})
	return nil
}

// History lists the audit trail the caller produced for bookingID.
func (s *Service) History(ctx context.Context, identity session.Identity, bookingID string, limit int) ([]store.AuditEntry, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, ErrMissingBookingID
	}
	return s.audit.ListByBooking(ctx, bookingID, identity.Subject, limit)
}

// SweepExpired drops views idle for longer than the view TTL.
func (s *Service) SweepExpired(ctx context.Context) int {
	expired := s.views.expire(s.now(), s.viewTTL)
	for _, v := range expired {
		s.record(ctx, store.AuditEntry{ViewID: v.id, Subject: v.subject, BookingID: v.ticket.BookingID, Event: store.EventViewExpired, State: v.session.Snapshot().State.String()})
	}
	metrics.ViewsExpired.Add(float64(len(expired)))
	metrics.ViewsActive.Set(float64(s.views.Len()))
	return len(expired)
}

func (s *Service) render(v *view, snap confirmation.Snapshot) Page {
	today := s.Today()
	page := Page{
		ViewID:           v.id,
		Ticket:           v.ticket,
		CancellationDate: today,
		State:            snap.State,
		InFlight:         snap.InFlight,
	}
	if snap.Notice.Text != "" {
		notice := snap.Notice
		page.Notice = &notice
	}

	if snap.State == confirmation.StateVerified && snap.Result != nil {
		page.Result = snap.Result
		page.Actions = []Action{ActionReturn}
		return page
	}

	quote := policy.QuoteTicket(v.ticket, today)
	page.Quote = &quote

	switch {
	case snap.InFlight, v.ticket.Status == domain.TicketStatusCancelled:
		page.Actions = []Action{ActionReturn}
	case snap.State == confirmation.StateOTPRequested:
		page.Actions = []Action{ActionVerifyOTP, ActionResendOTP, ActionReturn}
	default:
		page.Actions = []Action{ActionRequestOTP, ActionReturn}
	}
	return page
}

func (s *Service) gateway(v *view, identity session.Identity, today domain.Date) confirmation.Gateway {
	return &cancellationGateway{
		api:       s.cancellation,
		bookingID: v.ticket.BookingID,
		token:     identity.Token,
		date:      today,
	}
}

func (s *Service) consumeAttempt(ctx context.Context, logger *logrus.Entry, scope, subject string, limit int) error {
	if s.limiter == nil || limit <= 0 {
		return nil
	}
	count, retryAfter, err := s.limiter.ConsumeAttempt(ctx, scope, subject, limit, attemptWindow)
	if err != nil {
		// fail open: a limiter outage never blocks a cancellation
		logger.WithError(err).WithField("scope", scope).Warn("attempt limiter unavailable; allowing")
		return nil
	}
	if count > limit {
		return &AttemptsExceededError{Scope: scope, RetryAfter: time.Duration(retryAfter) * time.Second}
	}
	return nil
}

func (s *Service) record(ctx context.Context, entry store.AuditEntry) {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now()
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectLimit)
	defer cancel()
	if err := s.audit.Record(auditCtx, entry); err != nil {
		logrus.WithFields(logrus.Fields{"component": "app", "event": entry.Event, "booking_id": entry.BookingID}).
			WithError(err).Warn("audit record failed")
	}
}

func (s *Service) publishConfirmed(ctx context.Context, logger *logrus.Entry, v *view, identity session.Identity, today domain.Date, result domain.CancellationResult) {
	if s.events == nil {
		return
	}
	event := domain.CancellationConfirmedEvent{
		EventID:            uuid.NewString(),
		ViewID:             v.id,
		Subject:            identity.Subject,
		BookingID:          v.ticket.BookingID,
		CancellationDate:   today,
		CancellationCharge: result.CancellationCharge,
		RefundAmount:       result.RefundAmount,
		RefundStatus:       result.RefundStatus,
		OccurredAt:         s.now().UTC(),
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectLimit)
	defer cancel()
	if err := s.events.PublishCancellationConfirmed(pubCtx, event); err != nil {
		logger.WithError(err).Warn("cancellation event publish failed")
	}
}

func isPrecondition(err error) bool {
	return errors.Is(err, confirmation.ErrEmptyCode) ||
		errors.Is(err, confirmation.ErrOTPNotRequested) ||
		errors.Is(err, confirmation.ErrAlreadyVerified) ||
		errors.Is(err, confirmation.ErrRequestInFlight)
}

func kindLabel(err error) string {
	if kind := apiresult.KindOf(err); kind != 0 {
		return kind.String()
	}
	return "unknown"
}

// cancellationGateway binds the Cancellation service to one view and one request.
type cancellationGateway struct {
	api       CancellationAPI
	bookingID string
	token     string
	date      domain.Date
}

func (g *cancellationGateway) RequestOTP(ctx context.Context) error {
	defer metrics.ObserveDownstream("request_otp", time.Now())
	return g.api.RequestCancellationOTP(ctx, g.token)
}

func (g *cancellationGateway) VerifyOTP(ctx context.Context, code string) (domain.CancellationResult, error) {
	defer metrics.ObserveDownstream("verify_otp", time.Now())
	return g.api.VerifyCancellationOTP(ctx, g.bookingID, code, g.date, g.token)
}
