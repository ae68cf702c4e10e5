package confirmation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyconnect/booking-web/internal/domain"
)

type gatewayStub struct {
	requestErr   error
	verifyErr    error
	result       domain.CancellationResult
	requestCalls int
	verifyCalls  int
	lastCode     string
	block        chan struct{}
	started      chan struct{}
}

func (g *gatewayStub) RequestOTP(ctx context.Context) error {
	g.requestCalls++
	if g.block != nil {
		close(g.started)
		<-g.block
	}
	return g.requestErr
}

func (g *gatewayStub) VerifyOTP(ctx context.Context, code string) (domain.CancellationResult, error) {
	g.verifyCalls++
	g.lastCode = code
	if g.verifyErr != nil {
		return domain.CancellationResult{}, g.verifyErr
	}
	return g.result, nil
}

func TestRequestAndVerifySucceeds(t *testing.T) {
	session := NewSession()
	gateway := &gatewayStub{result: domain.CancellationResult{
		BookingID:          "BK-1",
		CancellationCharge: decimal.NewFromInt(700),
		RefundAmount:       decimal.NewFromInt(6300),
		RefundStatus:       "INITIATED",
		Message:            "Ticket cancelled, refund initiated",
	}}

	snap, err := session.RequestOTP(context.Background(), gateway)
	require.NoError(t, err)
	assert.Equal(t, StateOTPRequested, snap.State)
	assert.Equal(t, Notice{Text: MessageOTPSent}, snap.Notice)

	snap, err = session.VerifyOTP(context.Background(), gateway, " 123456 ")
	require.NoError(t, err)
	assert.Equal(t, StateVerified, snap.State)
	assert.Equal(t, "123456", gateway.lastCode)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "INITIATED", snap.Result.RefundStatus)
	assert.Equal(t, Notice{Text: "Ticket cancelled, refund initiated"}, snap.Notice)
}

func TestRequestFailureMovesToFailed(t *testing.T) {
	session := NewSession()
	downstream := errors.New("connection refused")
	gateway := &gatewayStub{requestErr: downstream}

	snap, err := session.RequestOTP(context.Background(), gateway)
	require.Error(t, err)
	assert.ErrorIs(t, err, downstream)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, Notice{Text: MessageRequestFailed, IsError: true}, snap.Notice)

	_, err = session.VerifyOTP(context.Background(), gateway, "123456")
	assert.ErrorIs(t, err, ErrOTPNotRequested)
	assert.Zero(t, gateway.verifyCalls)

	gateway.requestErr = nil
	snap, err = session.RequestOTP(context.Background(), gateway)
	require.NoError(t, err)
	assert.Equal(t, StateOTPRequested, snap.State)
}

func TestFailedResendKeepsRequestedState(t *testing.T) {
	session := NewSession()
	gateway := &gatewayStub{}

	_, err := session.RequestOTP(context.Background(), gateway)
	require.NoError(t, err)

	gateway.requestErr = errors.New("timeout")
	snap, err := session.RequestOTP(context.Background(), gateway)
	require.Error(t, err)
	assert.Equal(t, StateOTPRequested, snap.State)
	assert.True(t, snap.Notice.IsError)
	assert.Equal(t, 1, snap.Requests)

	_, err = session.VerifyOTP(context.Background(), gateway, "123456")
	assert.NoError(t, err)
}

func TestVerifyRejectsEmptyCodeWithoutCalling(t *testing.T) {
	session := NewSession()
	gateway := &gatewayStub{}
	_, err := session.RequestOTP(context.Background(), gateway)
	require.NoError(t, err)

	for _, code := range []string{"", "   "} {
		snap, err := session.VerifyOTP(context.Background(), gateway, code)
		assert.ErrorIs(t, err, ErrEmptyCode)
		assert.Equal(t, StateOTPRequested, snap.State)
		assert.Equal(t, Notice{Text: MessageEmptyCode, IsError: true}, snap.Notice)
		assert.False(t, snap.InFlight)
	}
	assert.Zero(t, gateway.verifyCalls)
}

func TestVerifyBeforeRequestIsRejected(t *testing.T) {
	session := NewSession()
	gateway := &gatewayStub{}

	snap, err := session.VerifyOTP(context.Background(), gateway, "123456")
	assert.ErrorIs(t, err, ErrOTPNotRequested)
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.InFlight)
	assert.Zero(t, gateway.verifyCalls)
}

func TestVerifyFailureStaysRequested(t *testing.T) {
	session := NewSession()
	gateway := &gatewayStub{verifyErr: errors.New("Invalid OTP")}
	_, err := session.RequestOTP(context.Background(), gateway)
	require.NoError(t, err)

	snap, err := session.VerifyOTP(context.Background(), gateway, "000000")
	require.Error(t, err)
	assert.Equal(t, StateOTPRequested, snap.State)
	assert.Equal(t, Notice{Text: MessageVerifyFailed, IsError: true}, snap.Notice)
	assert.Nil(t, snap.Result)

	gateway.verifyErr = nil
	snap, err = session.VerifyOTP(context.Background(), gateway, "111111")
	require.NoError(t, err)
	assert.Equal(t, StateVerified, snap.State)
	assert.Equal(t, Notice{Text: MessageCancelled}, snap.Notice)
}

func TestVerifiedIsTerminal(t *testing.T) {
	session := NewSession()
	gateway := &gatewayStub{}
	_, err := session.RequestOTP(context.Background(), gateway)
	require.NoError(t, err)
	_, err = session.VerifyOTP(context.Background(), gateway, "123456")
	require.NoError(t, err)

	_, err = session.RequestOTP(context.Background(), gateway)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
	_, err = session.VerifyOTP(context.Background(), gateway, "123456")
	assert.ErrorIs(t, err, ErrAlreadyVerified)
	assert.Equal(t, 1, gateway.requestCalls)
	assert.Equal(t, 1, gateway.verifyCalls)
}

func TestSecondActionWhileInFlightIsRejected(t *testing.T) {
	session := NewSession()
	gateway := &gatewayStub{block: make(chan struct{}), started: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := session.RequestOTP(context.Background(), gateway)
		done <- err
	}()

	select {
	case <-gateway.started:
	case <-time.After(time.Second):
		t.Fatal("gateway was not called")
	}

	assert.True(t, session.Snapshot().InFlight)
	_, err := session.RequestOTP(context.Background(), gateway)
	assert.ErrorIs(t, err, ErrRequestInFlight)
	_, err = session.VerifyOTP(context.Background(), gateway, "123456")
	assert.ErrorIs(t, err, ErrRequestInFlight)

	close(gateway.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, gateway.requestCalls)
	assert.False(t, session.Snapshot().InFlight)
}

func TestSnapshotResultIsACopy(t *testing.T) {
	session := NewSession()
	gateway := &gatewayStub{result: domain.CancellationResult{RefundStatus: "INITIATED"}}
	_, _ = session.RequestOTP(context.Background(), gateway)
	snap, err := session.VerifyOTP(context.Background(), gateway, "1")
	require.NoError(t, err)

	snap.Result.RefundStatus = "changed"
	assert.Equal(t, "INITIATED", session.Snapshot().Result.RefundStatus)
}

func TestStateText(t *testing.T) {
	text, err := StateOTPRequested.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "OTP_REQUESTED", string(text))
	assert.Equal(t, "FAILED", StateFailed.String())
}
