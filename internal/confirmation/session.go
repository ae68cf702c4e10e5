/**
 * @description
 * This package holds the OTP confirmation state machine for one cancellation
 * view. A Session starts IDLE, moves to OTP_REQUESTED once a code has been
 * sent and to VERIFIED once the Cancellation service accepts the code. FAILED
 * marks a first request that did not go through; it can be retried.
 *
 * @notes
 * - A Session allows one outstanding action at a time. A second action while
 *   the first is on the wire fails with ErrRequestInFlight.
 * - The lock is released for the duration of every gateway call.
 */

package confirmation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/skyconnect/booking-web/internal/domain"
)

// User facing messages.
const (
	MessageOTPSent       = "OTP sent successfully. Please check your registered email."
	MessageRequestFailed = "Failed to send OTP. Please try again."
	MessageEmptyCode     = "Please enter a valid OTP"
	MessageVerifyFailed  = "OTP verification failed. Please check the OTP and try again."
	MessageCancelled     = "Ticket cancelled successfully."
)

var (
	ErrEmptyCode       = errors.New("otp code is empty")
	ErrOTPNotRequested = errors.New("otp has not been requested")
	ErrAlreadyVerified = errors.New("cancellation already verified")
	ErrRequestInFlight = errors.New("another request is in progress")
)

// State is the confirmation progress of a Session.
type State int

const (
	StateIdle State = iota
	StateOTPRequested
	StateVerified
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOTPRequested:
		return "OTP_REQUESTED"
	case StateVerified:
		return "VERIFIED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Gateway performs the two backend calls of the flow. Implementations are
// bound to one booking, one bearer token and one cancellation date.
type Gateway interface {
	RequestOTP(ctx context.Context) error
	VerifyOTP(ctx context.Context, code string) (domain.CancellationResult, error)
}

// Notice is the message the page shows after the last action.
type Notice struct {
	Text    string `json:"text"`
	IsError bool   `json:"is_error"`
}

// Snapshot is a consistent copy of a Session's observable state.
type Snapshot struct {
	State    State
	Notice   Notice
	Result   *domain.CancellationResult
	InFlight bool
	// Requests counts successful OTP deliveries, resends included.
	Requests int
}

// Session is the confirmation state for one cancellation view.
type Session struct {
	mu       sync.Mutex
	state    State
	notice   Notice
	result   *domain.CancellationResult
	inFlight bool
	requests int
}

// NewSession returns a Session in the IDLE state.
func NewSession() *Session {
	return &Session{state: StateIdle}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:    s.state,
		Notice:   s.notice,
		InFlight: s.inFlight,
		Requests: s.requests,
	}
	if s.result != nil {
		result := *s.result
		snap.Result = &result
	}
	return snap
}

// RequestOTP asks the gateway to send a code. It is also the resend action.
// A failed resend keeps OTP_REQUESTED so a code that did arrive can still be
// used; a failed first request moves the session to FAILED.
func (s *Session) RequestOTP(ctx context.Context, gateway Gateway) (Snapshot, error) {
	s.mu.Lock()
	if err := s.beginLocked(); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	s.mu.Unlock()

	err := gateway.RequestOTP(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err != nil {
		if s.state != StateOTPRequested {
			s.state = StateFailed
		}
		s.notice = Notice{Text: MessageRequestFailed, IsError: true}
		return s.snapshotLocked(), fmt.Errorf("request otp: %w", err)
	}
	s.state = StateOTPRequested
	s.requests++
	s.notice = Notice{Text: MessageOTPSent}
	return s.snapshotLocked(), nil
}

// VerifyOTP submits code. An empty code is rejected before any call is made.
func (s *Session) VerifyOTP(ctx context.Context, gateway Gateway, code string) (Snapshot, error) {
	code = strings.TrimSpace(code)

	s.mu.Lock()
	if err := s.beginLocked(); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	if code == "" {
		s.inFlight = false
		s.notice = Notice{Text: MessageEmptyCode, IsError: true}
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrEmptyCode
	}
	if s.state != StateOTPRequested {
		s.inFlight = false
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrOTPNotRequested
	}
	s.mu.Unlock()

	result, err := gateway.VerifyOTP(ctx, code)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err != nil {
		s.notice = Notice{Text: MessageVerifyFailed, IsError: true}
		return s.snapshotLocked(), fmt.Errorf("verify otp: %w", err)
	}
	s.state = StateVerified
	s.result = &result
	message := strings.TrimSpace(result.Message)
	if message == "" {
		message = MessageCancelled
	}
	s.notice = Notice{Text: message}
	return s.snapshotLocked(), nil
}

// beginLocked claims the single action slot.
func (s *Session) beginLocked() error {
	if s.state == StateVerified {
		return ErrAlreadyVerified
	}
	if s.inFlight {
		return ErrRequestInFlight
	}
	s.inFlight = true
	return nil
}
