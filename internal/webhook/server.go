// internal/webhook/server.go
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/user/casewatch/internal/gateway"
	"github.com/user/casewatch/internal/telegram"
	"github.com/user/casewatch/internal/upload"
)

// MaxBodyBytes caps request bodies. Writes carry base64 attachments.
const MaxBodyBytes = 32 << 20

// Handler processes gateway requests.
type Handler interface {
	Handle(ctx context.Context, req *gateway.Request) *gateway.Response
}

// Options configures a Server. Files may be nil when blobs are not kept on
// local disk.
type Options struct {
	WebhookSecret string
	Files         *upload.FSBlobStore
}

// Server is the HTTP front of the gateway.
type Server struct {
	gw     Handler
	secret string
	files  *upload.FSBlobStore
	mux    *http.ServeMux
}

// NewServer creates a Server routing to gw.
func NewServer(gw Handler, opts Options) *Server {
	s := &Server{
		gw:     gw,
		secret: opts.WebhookSecret,
		files:  opts.Files,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api", s.handleAPI)
	s.mux.HandleFunc("POST /api", s.handleAPI)
	s.mux.HandleFunc("OPTIONS /api", s.handlePreflight)
	s.mux.HandleFunc("POST /telegram", s.handleTelegram)
	s.mux.HandleFunc("GET /files/{key...}", s.handleFile)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allowCORS lets the browser client call the API from any origin. The
// client posts text/plain bodies, so preflights are rare.
func allowCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	allowCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleAPI serves the client API. Business failures are reported in the
// body with status "error" and HTTP 200, which is what the client expects.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	allowCORS(w)
	var body []byte
	if r.Method == http.MethodPost {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, gateway.Response{Status: gateway.StatusError, Message: "request body too large"})
			return
		}
	}
	resp := s.gw.Handle(r.Context(), gateway.APIRequest(r.Method, r.URL.Query(), body))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTelegram(w http.ResponseWriter, r *http.Request) {
	if s.secret != "" {
		got := r.Header.Get(telegram.SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
			return
		}
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	ev, err := telegram.ParseUpdate(data)
	if err != nil {
		slog.Warn("undecodable telegram update", "error", err)
		http.Error(w, `{"error":"invalid update"}`, http.StatusBadRequest)
		return
	}
	if ev == nil {
		w.Write([]byte("ok"))
		return
	}

	// Only a delivery rejected before it reached the ledger is worth a
	// redelivery; once recorded, a resend would be dropped as a duplicate.
	resp := s.gw.Handle(r.Context(), gateway.ChatRequest(ev))
	if resp.Retry {
		http.Error(w, resp.Message, http.StatusInternalServerError)
		return
	}
	w.Write([]byte("ok"))
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if s.files == nil {
		http.NotFound(w, r)
		return
	}
	path, err := s.files.Path(r.PathValue("key"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || strings.HasSuffix(path, ".tmp") {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("stat blob failed", "path", path, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
