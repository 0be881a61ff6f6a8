package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func newTestClient(url string, enabled bool) *GatewayClient {
	return NewGatewayClient(GatewayConfig{
		BaseURL:       url,
		Token:         "secret",
		SendEnabled:   enabled,
		Timeout:       time.Second,
		DefaultRegion: "US",
	})
}

func TestGatewayClient_Send_Success(t *testing.T) {
	t.Parallel()

	type gotReq struct {
		Method        string
		Path          string
		ContentType   string
		Authorization string
		Body          []byte
	}

	var captured gotReq

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.ContentType = r.Header.Get("Content-Type")
		captured.Authorization = r.Header.Get("Authorization")

		b, _ := io.ReadAll(r.Body)
		captured.Body = b

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"abc-123"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL+"/", true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := c.Send(ctx, "(202) 456-1111", "hello")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if res.Status != StatusSent {
		t.Fatalf("expected sent, got %s (%s)", res.Status, res.Detail)
	}

	if captured.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %q", captured.Method)
	}
	if captured.Path != "/sms" {
		t.Fatalf("expected path /sms, got %q", captured.Path)
	}
	if captured.ContentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", captured.ContentType)
	}
	if captured.Authorization != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", captured.Authorization)
	}

	var req sendRequest
	if err := json.Unmarshal(captured.Body, &req); err != nil {
		t.Fatalf("failed to decode request json: %v body=%q", err, string(captured.Body))
	}
	if req.To != "+12024561111" {
		t.Fatalf("expected E.164 recipient, got %q", req.To)
	}
	if req.Text != "hello" {
		t.Fatalf("expected text %q, got %q", "hello", req.Text)
	}
}

func TestGatewayClient_Send_Non2xx_IsFailedResultWithBody(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusBadRequest, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte("number blocked"))
		}))

		res, err := newTestClient(srv.URL, true).Send(context.Background(), "+12024561111", "hi")
		srv.Close()

		if err != nil {
			t.Fatalf("code %d: expected no error, got %v", code, err)
		}
		if res.Status != StatusFailed {
			t.Fatalf("code %d: expected failed, got %s", code, res.Status)
		}
		if !strings.HasPrefix(res.Detail, "HTTP ") || !strings.Contains(res.Detail, "number blocked") {
			t.Fatalf("code %d: expected detail with status and body, got %q", code, res.Detail)
		}
	}
}

func TestGatewayClient_Send_DisabledSkipsGateway(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, false).Send(context.Background(), "+12024561111", "hi")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if res.Status != StatusDisabled {
		t.Fatalf("expected disabled, got %s", res.Status)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no gateway call, got %d", calls.Load())
	}
}

func TestGatewayClient_Send_InvalidNumber(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, true).Send(context.Background(), "not a number", "hi")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if res.Status != StatusFailed || !strings.Contains(res.Detail, "invalid phone number") {
		t.Fatalf("expected invalid number failure, got %+v", res)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no gateway call, got %d", calls.Load())
	}
}

func TestGatewayClient_Send_TransportErrorIsReturned(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, true).Send(context.Background(), "+12024561111", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestGatewayClient_Send_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv.URL, true).Send(ctx, "+12024561111", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) &&
		!strings.Contains(strings.ToLower(err.Error()), "deadline") {
		t.Fatalf("expected deadline error, got: %v", err)
	}
}

func TestGatewayClient_BreakerOpensOnServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, true)
	for i := 0; i < 5; i++ {
		res, err := c.Send(context.Background(), "+12024561111", "hi")
		if err != nil || res.Status != StatusFailed {
			t.Fatalf("call %d: expected failed result, got %+v err=%v", i, res, err)
		}
	}

	_, err := c.Send(context.Background(), "+12024561111", "hi")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls.Load() != 5 {
		t.Fatalf("expected 5 gateway calls, got %d", calls.Load())
	}
}

func TestNormalizeNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "2024561111", want: "+12024561111"},
		{raw: "(202) 456-1111", want: "+12024561111"},
		{raw: "+1 202 456 1111", want: "+12024561111"},
		{raw: "", wantErr: true},
		{raw: "12", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeNumber(tt.raw, "US")
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %q", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %q, got %q", tt.raw, tt.want, got)
		}
	}
}
