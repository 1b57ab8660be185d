// Package main serves the client API and the Telegram webhook from AWS
// Lambda behind an API Gateway HTTP API. Scheduled ticks arrive as
// EventBridge events.
package main

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/user/casewatch/internal/app"
	"github.com/user/casewatch/internal/config"
	"github.com/user/casewatch/internal/gateway"
	"github.com/user/casewatch/internal/httpx"
	"github.com/user/casewatch/internal/telegram"
)

// Handler holds the wired app for the lifetime of the execution environment.
type Handler struct {
	app *app.App
}

func main() {
	path := os.Getenv("CASEWATCH_CONFIG")
	if path == "" {
		path = "/var/task/config.json"
	}
	// The deployment package is read-only; never write defaults into it.
	cfg, err := config.LoadReadOnly(path)
	if err != nil {
		log.Fatal(err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	h := &Handler{app: a}
	lambda.Start(h.dispatch)
}

// dispatch routes a raw invocation to the HTTP handler or, for
// EventBridge schedule events, to a scheduler job.
func (h *Handler) dispatch(ctx context.Context, raw json.RawMessage) (any, error) {
	var probe struct {
		Source     string `json:"source"`
		DetailType string `json:"detail-type"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Source != "" && probe.DetailType != "" {
		var ev events.CloudWatchEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, err
		}
		return nil, h.scheduled(ctx, ev)
	}
	var req events.APIGatewayV2HTTPRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return h.handle(ctx, req)
}

// scheduled runs the weekly digest when the rule's detail says so and a
// tick otherwise.
func (h *Handler) scheduled(ctx context.Context, ev events.CloudWatchEvent) error {
	var detail struct {
		Job string `json:"job"`
	}
	_ = json.Unmarshal(ev.Detail, &detail)
	engine := h.app.Engine
	if detail.Job == "digest" {
		sent, err := engine.SendDigest(ctx, "", engine.Now())
		slog.Info("weekly digest", "sent", sent, "error", err)
		return err
	}
	res, err := engine.Tick(ctx, engine.Now())
	if err != nil {
		return err
	}
	slog.Info("tick", "stages", len(res.Stages), "reminders", res.Reminders, "advanced", len(res.Advanced))
	return nil
}

func (h *Handler) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := req.RequestContext.HTTP.Method
	path := strings.TrimSuffix(req.RawPath, "/")

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return httpx.Error(http.StatusBadRequest, "invalid body encoding")
		}
		body = decoded
	}

	switch {
	case path == "/health":
		return httpx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	case path == "/telegram" && method == http.MethodPost:
		return h.telegram(ctx, req.Headers, body)
	case method == http.MethodOptions:
		return httpx.NoContent()
	case method == http.MethodGet || method == http.MethodPost:
		query := url.Values{}
		for k, v := range req.QueryStringParameters {
			query.Set(k, v)
		}
		if method == http.MethodGet {
			body = nil
		}
		resp := h.app.Gateway.Handle(ctx, gateway.APIRequest(method, query, body))
		return httpx.JSON(http.StatusOK, resp)
	default:
		return httpx.Error(http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) telegram(ctx context.Context, headers map[string]string, body []byte) (events.APIGatewayV2HTTPResponse, error) {
	if secret := h.app.Config.Telegram.WebhookSecret; secret != "" {
		got := httpx.Header(headers, telegram.SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return httpx.Error(http.StatusForbidden, "forbidden")
		}
	}
	ev, err := telegram.ParseUpdate(body)
	if err != nil {
		slog.Warn("undecodable telegram update", "error", err)
		return httpx.Error(http.StatusBadRequest, "invalid update")
	}
	if ev == nil {
		return httpx.Text(http.StatusOK, "ok")
	}
	resp := h.app.Gateway.Handle(ctx, gateway.ChatRequest(ev))
	if resp.Retry {
		return httpx.Error(http.StatusInternalServerError, resp.Message)
	}
	return httpx.Text(http.StatusOK, "ok")
}
