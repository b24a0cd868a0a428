package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/item-processor/internal/observability"
)

func TestHTTPServerServesMetricsAndRequestID(t *testing.T) {
	t.Parallel()

	server := NewHTTPServer(ServerConfig{Name: "test"}, observability.NewMetrics(), nil)
	server.Router().Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	resp, err := server.App().Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get(fiber.HeaderXRequestID) == "" {
		t.Fatal("expected request id header")
	}

	resp, err = server.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "item_processor_http_requests_total") {
		t.Fatalf("metrics body missing http request counter: %s", string(body))
	}
}

func TestHTTPServerRecoversPanics(t *testing.T) {
	t.Parallel()

	server := NewHTTPServer(ServerConfig{}, nil, nil)
	server.Router().Get("/panic", func(c *fiber.Ctx) error {
		panic("boom")
	})

	resp, err := server.App().Test(httptest.NewRequest(http.MethodGet, "/panic", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestHTTPServerServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}

	server := NewHTTPServer(ServerConfig{ShutdownTimeout: time.Second}, nil, nil)
	server.Router().Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()

	url := "http://" + listener.Addr().String() + "/ping"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /ping error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
