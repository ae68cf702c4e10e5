/**
 * @description
 * This package classifies responses from the booking backends into an explicit
 * tagged result: either a decoded value or an error with a Kind. Callers
 * branch on the Kind instead of probing payload fields.
 *
 * The backends answer with JSON on success, a JSON error envelope on most
 * failures, and occasionally plain text in either case. Plain text and
 * undecodable bodies are never treated as success.
 */
package apiresult

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Kind discriminates the ways a backend call can fail.
type Kind int

const (
	// KindTransport means the request never produced a response.
	KindTransport Kind = iota + 1
	// KindUnauthorized means the bearer token was missing, expired or refused.
	KindUnauthorized
	// KindNotFound means the addressed resource does not exist.
	KindNotFound
	// KindRejected means the backend understood the call and refused it.
	KindRejected
	// KindMalformed means the response did not have the expected shape.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindRejected:
		return "rejected"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is the failure side of a Result.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// MessageOf returns the backend supplied message carried by err, if any.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// Result is either a value or an *Error, never both.
type Result[T any] struct {
	value T
	err   *Error
}

// Ok wraps a successful value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err wraps a failure.
func Err[T any](kind Kind, status int, message string, cause error) Result[T] {
	return Result[T]{err: &Error{Kind: kind, Status: status, Message: message, Err: cause}}
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Unpack converts the result into Go's usual value, error pair.
func (r Result[T]) Unpack() (T, error) {
	if r.err != nil {
		var zero T
		return zero, r.err
	}
	return r.value, nil
}

// BackendError is the error envelope the booking backends send.
type BackendError struct {
	Timestamp       string `json:"timestamp"`
	Message         string `json:"message"`
	Details         string `json:"details"`
	HTTPCodeMessage string `json:"httpCodeMessage"`
	Error           string `json:"error"`
}

// describes reports whether the envelope actually carries an error.
func (b BackendError) describes() bool {
	if strings.TrimSpace(b.Error) != "" {
		return true
	}
	return b.HTTPCodeMessage != "" && b.Message != "" && b.Timestamp != "" && b.Details != ""
}

func (b BackendError) text() string {
	for _, candidate := range []string{b.Error, b.Message, b.Details, b.HTTPCodeMessage} {
		if strings.TrimSpace(candidate) != "" {
			return strings.TrimSpace(candidate)
		}
	}
	return ""
}

const maxTextMessage = 512

// Transport wraps an error returned by http.Client.Do.
func Transport[T any](err error) Result[T] {
	return Err[T](KindTransport, 0, "backend unreachable", err)
}

// Decode reads and classifies resp. The body is consumed but not closed.
func Decode[T any](resp *http.Response) Result[T] {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Err[T](KindTransport, resp.StatusCode, "failed to read response body", err)
	}
	return DecodeBody[T](resp.StatusCode, resp.Header.Get("Content-Type"), body)
}

// DecodeBody classifies an already read response.
func DecodeBody[T any](status int, contentType string, body []byte) Result[T] {
	isJSON := isJSONContent(contentType)
	success := status >= 200 && status < 300

	if !success {
		message := ""
		if isJSON {
			var envelope BackendError
			if err := json.Unmarshal(body, &envelope); err == nil {
				message = envelope.text()
			}
		} else {
			message = plainText(body)
		}
		if message == "" {
			message = http.StatusText(status)
		}
		return Err[T](kindForStatus(status), status, message, nil)
	}

	if !isJSON {
		return Err[T](KindMalformed, status, plainText(body), nil)
	}

	var envelope BackendError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.describes() {
		return Err[T](KindRejected, status, envelope.text(), nil)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Err[T](KindMalformed, status, "empty response body", nil)
	}

	var value T
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return Err[T](KindMalformed, status, "unexpected response shape", err)
	}
	return Ok(value)
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindRejected
	}
}

func isJSONContent(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func plainText(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxTextMessage {
		text = text[:maxTextMessage]
	}
	return text
}

// Ack is the acknowledgement of a command that returns no resource.
type Ack struct {
	Message string
}

// DecodeAck classifies a command response. Unlike Decode, a 2xx plain text
// body is an acknowledgement; the text becomes the message.
func DecodeAck(resp *http.Response) Result[Ack] {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Err[Ack](KindTransport, resp.StatusCode, "failed to read response body", err)
	}

	status := resp.StatusCode
	contentType := resp.Header.Get("Content-Type")
	if status < 200 || status >= 300 {
		return DecodeBody[Ack](status, contentType, body)
	}
	if !isJSONContent(contentType) || len(strings.TrimSpace(string(body))) == 0 {
		return Ok(Ack{Message: plainText(body)})
	}

	var envelope BackendError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.describes() {
		return Err[Ack](KindRejected, status, envelope.text(), nil)
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		// A JSON string or array still acknowledges the command.
		return Ok(Ack{Message: plainText(body)})
	}
	return Ok(Ack{Message: payload.Message})
}
