package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/user/casewatch/internal/gateway"
	"github.com/user/casewatch/internal/telegram"
	"github.com/user/casewatch/internal/types"
	"github.com/user/casewatch/internal/upload"
)

type mockGateway struct {
	mu       sync.Mutex
	requests []*gateway.Request
	response *gateway.Response
}

func (m *mockGateway) Handle(_ context.Context, req *gateway.Request) *gateway.Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.response != nil {
		return m.response
	}
	return &gateway.Response{Status: gateway.StatusSuccess}
}

func (m *mockGateway) last(t *testing.T) *gateway.Request {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		t.Fatal("gateway was not called")
	}
	return m.requests[len(m.requests)-1]
}

func serve(srv http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(&mockGateway{}, Options{})
	w := serve(srv, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestAPIRoutes(t *testing.T) {
	mock := &mockGateway{response: &gateway.Response{
		Status: gateway.StatusSuccess,
		Data:   &types.Snapshot{Cases: []*types.Case{{ID: "C1"}}, Reminders: []*types.Reminder{}, Settings: &types.Settings{}},
	}}
	srv := NewServer(mock, Options{})

	w := serve(srv, http.MethodGet, "/api?action=get", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if got := mock.last(t).Intent; got != gateway.IntentGet {
		t.Errorf("intent = %s", got)
	}
	var body struct {
		Status string `json:"status"`
		Data   struct {
			Cases []map[string]any `json:"cases"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "success" || len(body.Data.Cases) != 1 || body.Data.Cases[0]["id"] != "C1" {
		t.Errorf("body = %+v", body)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	serve(srv, http.MethodPost, "/api", `{"cases":[]}`, map[string]string{"Content-Type": "text/plain;charset=utf-8"})
	req := mock.last(t)
	if req.Intent != gateway.IntentWrite || string(req.Body) != `{"cases":[]}` {
		t.Errorf("write not forwarded: %+v", req)
	}

	serve(srv, http.MethodGet, "/api?action=login&u=amy&p=pw", "", nil)
	req = mock.last(t)
	if req.Intent != gateway.IntentLogin || req.Username != "amy" || req.Password != "pw" {
		t.Errorf("login not forwarded: %+v", req)
	}
}

func TestAPIErrorKeepsHTTP200(t *testing.T) {
	mock := &mockGateway{response: &gateway.Response{Status: gateway.StatusError, Message: "invalid payload"}}
	srv := NewServer(mock, Options{})
	w := serve(srv, http.MethodPost, "/api", `{"cases":{}}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"error"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

const messageUpdate = `{"update_id":1,"message":{"message_id":55,"date":0,"text":"/today",
	"chat":{"id":-100,"type":"group"},"from":{"id":9,"is_bot":false,"first_name":"A","username":"amy"}}}`

func TestTelegramWebhookSecret(t *testing.T) {
	mock := &mockGateway{}
	srv := NewServer(mock, Options{WebhookSecret: "s3cret"})

	w := serve(srv, http.MethodPost, "/telegram", messageUpdate, map[string]string{telegram.SecretHeader: "wrong"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if len(mock.requests) != 0 {
		t.Fatal("gateway called despite bad secret")
	}

	w = serve(srv, http.MethodPost, "/telegram", messageUpdate, map[string]string{telegram.SecretHeader: "s3cret"})
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("status %d body %q", w.Code, w.Body.String())
	}
	req := mock.last(t)
	if req.Intent != gateway.IntentChat || req.Chat.InboundID() != "msg_55" || req.Chat.ChatID != "-100" {
		t.Errorf("chat request = %+v / %+v", req, req.Chat)
	}
}

func TestTelegramWebhookIgnoresOtherUpdates(t *testing.T) {
	mock := &mockGateway{}
	srv := NewServer(mock, Options{})
	w := serve(srv, http.MethodPost, "/telegram", `{"update_id":2,"edited_message":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`, nil)
	if w.Code != http.StatusOK || len(mock.requests) != 0 {
		t.Errorf("status %d, calls %d", w.Code, len(mock.requests))
	}

	w = serve(srv, http.MethodPost, "/telegram", `not json`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for garbage, got %d", w.Code)
	}
}

func TestTelegramWebhookFailureRequestsRedelivery(t *testing.T) {
	mock := &mockGateway{response: &gateway.Response{Status: gateway.StatusError, Message: "ledger offline", Retry: true}}
	srv := NewServer(mock, Options{})
	w := serve(srv, http.MethodPost, "/telegram", messageUpdate, nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestTelegramWebhookRecordedFailureIsAcknowledged(t *testing.T) {
	mock := &mockGateway{response: &gateway.Response{Status: gateway.StatusError, Message: "store offline"}}
	srv := NewServer(mock, Options{})
	w := serve(srv, http.MethodPost, "/telegram", messageUpdate, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestFilesEndpoint(t *testing.T) {
	files := upload.NewFSBlobStore(t.TempDir(), "http://example.test/files")
	url, err := files.Put(context.Background(), "01HX/report.pdf", "application/pdf", []byte("%PDF"))
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://example.test/files/01HX/report.pdf" {
		t.Fatalf("url = %s", url)
	}
	srv := NewServer(&mockGateway{}, Options{Files: files})

	w := serve(srv, http.MethodGet, "/files/01HX/report.pdf", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "%PDF" {
		t.Errorf("status %d body %q", w.Code, w.Body.String())
	}
	if w := serve(srv, http.MethodGet, "/files/01HX/missing.pdf", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing file: %d", w.Code)
	}
	if w := serve(srv, http.MethodGet, "/files/01HX", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("directory listing: %d", w.Code)
	}

	noFiles := NewServer(&mockGateway{}, Options{})
	if w := serve(noFiles, http.MethodGet, "/files/01HX/report.pdf", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("files served without fs store: %d", w.Code)
	}
}
