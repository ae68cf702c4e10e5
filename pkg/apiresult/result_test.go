package apiresult

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ticketPayload struct {
	BookingID string `json:"bookingId"`
	TotalFare int64  `json:"totalFare"`
}

func response(status int, contentType, body string) *http.Response {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestDecodeClassifiesResponses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantKind    Kind
		wantMessage string
	}{
		{
			name:        "structured backend error on 400",
			status:      http.StatusBadRequest,
			contentType: "application/json",
			body:        `{"timestamp":"2025-01-01T00:00:00","message":"Invalid OTP","details":"uri=/verify","httpCodeMessage":"BAD_REQUEST"}`,
			wantKind:    KindRejected,
			wantMessage: "Invalid OTP",
		},
		{
			name:        "error field on 500",
			status:      http.StatusInternalServerError,
			contentType: "application/json; charset=utf-8",
			body:        `{"error":"database down"}`,
			wantKind:    KindRejected,
			wantMessage: "database down",
		},
		{
			name:        "plain text failure",
			status:      http.StatusBadGateway,
			contentType: "text/plain",
			body:        "upstream timeout\n",
			wantKind:    KindRejected,
			wantMessage: "upstream timeout",
		},
		{
			name:        "unauthorized",
			status:      http.StatusUnauthorized,
			contentType: "",
			body:        "",
			wantKind:    KindUnauthorized,
			wantMessage: "Unauthorized",
		},
		{
			name:        "forbidden counts as unauthorized",
			status:      http.StatusForbidden,
			contentType: "application/json",
			body:        `{"error":"token expired"}`,
			wantKind:    KindUnauthorized,
			wantMessage: "token expired",
		},
		{
			name:        "not found",
			status:      http.StatusNotFound,
			contentType: "application/json",
			body:        `{"timestamp":"t","message":"Ticket not found","details":"d","httpCodeMessage":"NOT_FOUND"}`,
			wantKind:    KindNotFound,
			wantMessage: "Ticket not found",
		},
		{
			name:        "plain text success is malformed",
			status:      http.StatusOK,
			contentType: "text/plain",
			body:        "Invalid OTP",
			wantKind:    KindMalformed,
			wantMessage: "Invalid OTP",
		},
		{
			name:        "error envelope inside a 200",
			status:      http.StatusOK,
			contentType: "application/json",
			body:        `{"error":"booking already cancelled"}`,
			wantKind:    KindRejected,
			wantMessage: "booking already cancelled",
		},
		{
			name:        "json of the wrong shape",
			status:      http.StatusOK,
			contentType: "application/json",
			body:        `["not","an","object"]`,
			wantKind:    KindMalformed,
			wantMessage: "unexpected response shape",
		},
		{
			name:        "json null",
			status:      http.StatusOK,
			contentType: "application/json",
			body:        " null\n",
			wantKind:    KindMalformed,
			wantMessage: "empty response body",
		},
		{
			name:        "empty json body",
			status:      http.StatusOK,
			contentType: "application/json",
			body:        "",
			wantKind:    KindMalformed,
			wantMessage: "empty response body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Decode[ticketPayload](response(tt.status, tt.contentType, tt.body))
			require.False(t, result.IsOk())

			_, err := result.Unpack()
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Equal(t, tt.wantMessage, MessageOf(err))
		})
	}
}

func TestDecodeSuccess(t *testing.T) {
	result := Decode[ticketPayload](response(http.StatusOK, "application/json", `{"bookingId":"BK1","totalFare":7000}`))
	require.True(t, result.IsOk())

	value, err := result.Unpack()
	require.NoError(t, err)
	assert.Equal(t, ticketPayload{BookingID: "BK1", TotalFare: 7000}, value)
}

func TestDecodeSuccessWithMessageIsNotAnError(t *testing.T) {
	type cancelled struct {
		Message string `json:"message"`
	}
	value, err := Decode[cancelled](response(http.StatusOK, "application/json", `{"message":"Ticket cancelled"}`)).Unpack()
	require.NoError(t, err)
	assert.Equal(t, "Ticket cancelled", value.Message)
}

func TestDecodeAck(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantErr     Kind
		wantMessage string
	}{
		{name: "plain text", status: http.StatusOK, contentType: "text/plain", body: "OTP sent to your email", wantMessage: "OTP sent to your email"},
		{name: "empty body", status: http.StatusNoContent, contentType: "", body: "", wantMessage: ""},
		{name: "json message", status: http.StatusOK, contentType: "application/json", body: `{"message":"sent"}`, wantMessage: "sent"},
		{name: "json string", status: http.StatusOK, contentType: "application/json", body: `"sent"`, wantMessage: `"sent"`},
		{name: "error envelope", status: http.StatusOK, contentType: "application/json", body: `{"error":"no email on file"}`, wantErr: KindRejected, wantMessage: "no email on file"},
		{name: "server error", status: http.StatusServiceUnavailable, contentType: "text/html", body: "<h1>down</h1>", wantErr: KindRejected, wantMessage: "<h1>down</h1>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, err := DecodeAck(response(tt.status, tt.contentType, tt.body)).Unpack()
			if tt.wantErr != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, KindOf(err))
				assert.Equal(t, tt.wantMessage, MessageOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMessage, ack.Message)
		})
	}
}

func TestTransportKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	_, err := Transport[ticketPayload](cause).Unpack()

	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("get ticket: %w", err)
	assert.Equal(t, KindTransport, KindOf(wrapped))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("boom")))
	assert.Equal(t, "", MessageOf(errors.New("boom")))
}
