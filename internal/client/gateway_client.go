package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/sony/gobreaker"
)

type Status int

const (
	StatusSent Status = iota + 1
	// StatusDisabled means sending is switched off for this deployment. It is
	// neither a success nor a failure.
	StatusDisabled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusDisabled:
		return "disabled"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Result is the gateway's answer to one send. Transport problems are
// reported as errors instead.
type Result struct {
	Status Status
	Detail string
}

type GatewayConfig struct {
	BaseURL       string
	Token         string
	SendEnabled   bool
	Timeout       time.Duration
	DefaultRegion string
}

type GatewayClient struct {
	baseURL       string
	token         string
	sendEnabled   bool
	defaultRegion string
	client        *http.Client
	breaker       *gobreaker.CircuitBreaker
}

func NewGatewayClient(cfg GatewayConfig) *GatewayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	region := cfg.DefaultRegion
	if region == "" {
		region = "US"
	}

	return &GatewayClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		token:         cfg.Token,
		sendEnabled:   cfg.SendEnabled,
		defaultRegion: region,
		client: &http.Client{
			Timeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "sms-gateway",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// errServer marks 5xx answers so the breaker counts them; callers still get
// a failed Result.
var errServer = errors.New("gateway server error")

func (c *GatewayClient) Send(ctx context.Context, to, text string) (Result, error) {
	if !c.sendEnabled {
		return Result{Status: StatusDisabled, Detail: "SMS sending is disabled"}, nil
	}

	number, err := NormalizeNumber(to, c.defaultRegion)
	if err != nil {
		return Result{Status: StatusFailed, Detail: err.Error()}, nil
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, number, text)
	})
	if res, ok := out.(Result); ok && errors.Is(err, errServer) {
		return res, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("send sms: %w", err)
	}
	return out.(Result), nil
}

func (c *GatewayClient) post(ctx context.Context, to, text string) (Result, error) {
	reqBody, err := json.Marshal(sendRequest{To: to, Text: text})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sms", bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Status: StatusSent}, nil
	}

	res := Result{
		Status: StatusFailed,
		Detail: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
	}
	if resp.StatusCode >= 500 {
		return res, errServer
	}
	return res, nil
}

// NormalizeNumber formats a stored phone number as E.164, reading national
// numbers in the given region.
func NormalizeNumber(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("invalid phone number %q: %w", raw, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("invalid phone number %q", raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
