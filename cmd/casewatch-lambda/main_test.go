package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/user/casewatch/internal/app"
	"github.com/user/casewatch/internal/config"
	"github.com/user/casewatch/internal/gateway"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Telegram.WebhookSecret = "s3cret"
	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return &Handler{app: a}
}

func request(method, path, body string) events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{RawPath: path, Body: body}
	req.RequestContext.HTTP.Method = method
	return req
}

func decode(t *testing.T, resp events.APIGatewayV2HTTPResponse) gateway.Response {
	t.Helper()
	var out gateway.Response
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatalf("decode %q: %v", resp.Body, err)
	}
	return out
}

func TestWriteThenGet(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	body := `{"cases":[{"id":"c1","clientName":"王小明","status":"New","history":[],"itinerary":[],"attachments":[]}]}`
	req := request(http.MethodPost, "/api", base64.StdEncoding.EncodeToString([]byte(body)))
	req.IsBase64Encoded = true
	resp, err := h.handle(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if got := decode(t, resp); got.Status != gateway.StatusSuccess {
		t.Fatalf("write: %+v", got)
	}

	resp, _ = h.handle(ctx, request(http.MethodGet, "/api", ""))
	got := decode(t, resp)
	if got.Status != gateway.StatusSuccess || got.Data == nil || len(got.Data.Cases) != 1 {
		t.Fatalf("get: %+v", got)
	}
	if got.Data.Cases[0].ClientName != "王小明" {
		t.Errorf("client = %q", got.Data.Cases[0].ClientName)
	}
}

func TestInvalidWriteStays200(t *testing.T) {
	h := newTestHandler(t)
	resp, _ := h.handle(context.Background(), request(http.MethodPost, "/api", `{"cases":[{"status":"New"}]}`))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := decode(t, resp); got.Status != gateway.StatusError {
		t.Errorf("expected error status, got %+v", got)
	}
}

func TestTelegramSecret(t *testing.T) {
	h := newTestHandler(t)
	update := `{"update_id":1,"message":{"message_id":5,"date":0,"text":"/start","chat":{"id":9,"type":"private"}}}`

	resp, _ := h.handle(context.Background(), request(http.MethodPost, "/telegram", update))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("missing secret: status = %d", resp.StatusCode)
	}

	req := request(http.MethodPost, "/telegram", update)
	req.Headers = map[string]string{"x-telegram-bot-api-secret-token": "s3cret"}
	resp, _ = h.handle(context.Background(), req)
	if resp.StatusCode != http.StatusOK || resp.Body != "ok" {
		t.Fatalf("status = %d body = %q", resp.StatusCode, resp.Body)
	}
}

func TestDispatchScheduledEvent(t *testing.T) {
	h := newTestHandler(t)
	raw := json.RawMessage(`{"source":"aws.events","detail-type":"Scheduled Event","detail":{}}`)
	out, err := h.dispatch(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Errorf("scheduled event returned %v", out)
	}

	raw = json.RawMessage(`{"rawPath":"/health","requestContext":{"http":{"method":"GET"}}}`)
	out, err = h.dispatch(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}
	resp, ok := out.(events.APIGatewayV2HTTPResponse)
	if !ok || resp.StatusCode != http.StatusOK {
		t.Errorf("health: %+v", out)
	}
}
