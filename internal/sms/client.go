// Package sms sends text messages through a Twilio-compatible REST API.
package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Result is the outcome of a single send attempt
type Result struct {
	Success   bool
	MessageID string
	Error     string
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Client is an SMS provider client. A client without credentials is
// disabled and reports every send as failed.
type Client struct {
	http       *resty.Client
	accountSID string
	from       string
	enabled    bool
	logger     *zap.Logger
}

// NewClient creates an SMS client
func NewClient(baseURL, accountSID, authToken, from string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	enabled := accountSID != "" && authToken != "" && from != ""
	if !enabled {
		logger.Info("SMS client disabled: Twilio credentials not configured")
	}

	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetBasicAuth(accountSID, authToken).
		SetHeader("Accept", "application/json")

	return &Client{
		http:       rc,
		accountSID: accountSID,
		from:       from,
		enabled:    enabled,
		logger:     logger,
	}
}

// Enabled reports whether the client has credentials
func (c *Client) Enabled() bool {
	return c.enabled
}

// SendSMS makes one delivery attempt. Retries belong to the caller.
func (c *Client) SendSMS(ctx context.Context, to, body string) Result {
	if !c.enabled {
		return Result{Error: "sms disabled"}
	}

	var ok messageResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": c.from,
			"Body": body,
		}).
		SetResult(&ok).
		SetError(&apiErr).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", c.accountSID))

	if err != nil {
		c.logger.Warn("SMS provider call failed", zap.String("to", to), zap.Error(err))
		return Result{Error: err.Error()}
	}
	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = resp.Status()
		}
		c.logger.Warn("SMS provider rejected message",
			zap.String("to", to),
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("provider_code", apiErr.Code),
			zap.String("message", msg),
		)
		return Result{Error: msg}
	}

	return Result{Success: true, MessageID: ok.SID}
}
