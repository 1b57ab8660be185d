package gateway

import (
	"net/http"
	"net/url"
	"time"

	"github.com/user/casewatch/internal/types"
)

// Intent is what an inbound request asks the gateway to do.
type Intent string

const (
	IntentGet   Intent = "get"
	IntentLogin Intent = "login"
	IntentWrite Intent = "write"
	IntentChat  Intent = "chat"
)

// Request is a single inbound call: a chat delivery or a client API call.
type Request struct {
	ID         string
	Intent     Intent
	Chat       *types.ChatEvent
	Username   string
	Password   string
	Body       []byte
	ReceivedAt time.Time
}

func newRequest(intent Intent) *Request {
	return &Request{
		ID:         types.NewRequestID(),
		Intent:     intent,
		ReceivedAt: time.Now(),
	}
}

// ChatRequest wraps an inbound chat event.
func ChatRequest(ev *types.ChatEvent) *Request {
	r := newRequest(IntentChat)
	r.Chat = ev
	return r
}

// GetRequest asks for the full working copy.
func GetRequest() *Request {
	return newRequest(IntentGet)
}

// LoginRequest checks a credential pair.
func LoginRequest(username, password string) *Request {
	r := newRequest(IntentLogin)
	r.Username = username
	r.Password = password
	return r
}

// WriteRequest submits a client snapshot.
func WriteRequest(body []byte) *Request {
	r := newRequest(IntentWrite)
	r.Body = body
	return r
}

// APIRequest maps a client API call onto a Request. The action query
// parameter wins; otherwise reads are GETs and writes are POSTs.
func APIRequest(method string, query url.Values, body []byte) *Request {
	switch query.Get("action") {
	case string(IntentLogin):
		return LoginRequest(query.Get("u"), query.Get("p"))
	case string(IntentGet):
		return GetRequest()
	}
	if method != http.MethodPost || len(body) == 0 {
		return GetRequest()
	}
	return WriteRequest(body)
}

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusOK      = "ok"
)

// Response is the structured result of Handle.
type Response struct {
	Status        string             `json:"status"`
	Message       string             `json:"message,omitempty"`
	Data          *types.Snapshot    `json:"data,omitempty"`
	UploadedLinks map[string]*string `json:"uploadedLinks,omitempty"`

	// Retry is set when the request was rejected before any processing
	// and the sender may deliver it again.
	Retry bool `json:"-"`
}

func errorResponse(msg string) *Response {
	return &Response{Status: StatusError, Message: msg}
}
