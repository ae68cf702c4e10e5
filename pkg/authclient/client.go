/**
 * @description
 * This package provides a client for the customer auth endpoint. The auth
 * service issues the bearer token that every cancellation call forwards.
 */
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skyconnect/booking-web/internal/domain"
	"github.com/skyconnect/booking-web/pkg/apiresult"
)

// Client is a client for the auth service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new auth service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LoginRequest is the credential payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the customer profile with the issued token inlined.
type LoginResponse struct {
	Token       string `json:"token"`
	CustomerID  int64  `json:"customerId"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
	Verified    bool   `json:"verified"`
}

// Login exchanges customer credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, domain.Customer, error) {
	if c.baseURL == "" {
		return "", domain.Customer{}, fmt.Errorf("auth service base url is empty")
	}

	body, err := json.Marshal(LoginRequest{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		return "", domain.Customer{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/customers/login", bytes.NewBuffer(body))
	if err != nil {
		return "", domain.Customer{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logrus.WithFields(logrus.Fields{"component": "auth_client", "op": "login"}).WithError(err).Warn("request failed")
		_, err = apiresult.Transport[LoginResponse](err).Unpack()
		return "", domain.Customer{}, err
	}
	defer resp.Body.Close()

	payload, err := apiresult.Decode[LoginResponse](resp).Unpack()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "auth_client",
			"op":        "login",
			"status":    resp.StatusCode,
			"kind":      apiresult.KindOf(err).String(),
		}).Warn(apiresult.MessageOf(err))
		return "", domain.Customer{}, err
	}
	if strings.TrimSpace(payload.Token) == "" {
		_, err = apiresult.Err[LoginResponse](apiresult.KindMalformed, resp.StatusCode, "login response carried no token", nil).Unpack()
		return "", domain.Customer{}, err
	}

	return payload.Token, domain.Customer{
		CustomerID:  payload.CustomerID,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		Email:       payload.Email,
		PhoneNumber: payload.PhoneNumber,
		Role:        payload.Role,
		Active:      payload.Active,
		Verified:    payload.Verified,
	}, nil
}
