// Package gateway is the single entry point for chat deliveries and client
// API calls.
package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/casewatch/internal/syncer"
	"github.com/user/casewatch/internal/types"
	"github.com/user/casewatch/internal/validate"
)

// ErrLedger marks a chat delivery whose dedup record could not be written.
// Nothing has been processed, so the delivery is safe to retry.
var ErrLedger = errors.New("dedup ledger unavailable")

// Writer applies client snapshots.
type Writer interface {
	Apply(ctx context.Context, p *syncer.Payload) (*syncer.Ack, error)
}

// Queries answers the read-only chat commands.
type Queries interface {
	Now() time.Time
	SendToday(ctx context.Context, chatID string, now time.Time) error
	SendPendingReminders(ctx context.Context, chatID string) error
	SendDigest(ctx context.Context, chatID string, now time.Time) (bool, error)
}

// Deps are the collaborators of a Gateway. DebugLog may be nil.
type Deps struct {
	Store      types.DocumentStore
	Ledger     types.DedupLedger
	Locker     types.Locker
	Dispatcher types.Dispatcher
	Writer     Writer
	Queries    Queries
	DebugLog   types.DebugLog
}

// Gateway serializes inbound requests behind a bounded-wait lock and
// rejects repeated chat deliveries through the dedup ledger.
type Gateway struct {
	store       types.DocumentStore
	ledger      types.DedupLedger
	locker      types.Locker
	dispatcher  types.Dispatcher
	writer      Writer
	queries     Queries
	debug       types.DebugLog
	lockTimeout time.Duration
}

func New(deps Deps, lockTimeout time.Duration) *Gateway {
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Second
	}
	return &Gateway{
		store:       deps.Store,
		ledger:      deps.Ledger,
		locker:      deps.Locker,
		dispatcher:  deps.Dispatcher,
		writer:      deps.Writer,
		queries:     deps.Queries,
		debug:       deps.DebugLog,
		lockTimeout: lockTimeout,
	}
}

// Handle processes one request and always produces a response. The lock
// is held for the whole call and released on every path, panics included.
func (g *Gateway) Handle(ctx context.Context, req *Request) (resp *Response) {
	release := g.acquire(ctx, req)
	defer release()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("request panicked", "request_id", req.ID, "intent", req.Intent, "panic", r)
			resp = errorResponse(fmt.Sprintf("internal error: %v", r))
		}
	}()

	var err error
	switch req.Intent {
	case IntentChat:
		resp, err = g.handleChat(ctx, req.Chat)
	case IntentGet:
		resp, err = g.read(ctx)
	case IntentLogin:
		resp, err = g.login(ctx, req.Username, req.Password)
	case IntentWrite:
		resp, err = g.write(ctx, req.Body)
	default:
		err = fmt.Errorf("%w: unknown intent %q", types.ErrInvalidPayload, req.Intent)
	}
	if err != nil {
		if errors.Is(err, types.ErrInvalidPayload) {
			slog.Warn("request rejected", "request_id", req.ID, "intent", req.Intent, "error", err)
		} else {
			slog.Error("request failed", "request_id", req.ID, "intent", req.Intent, "error", err)
		}
		resp = errorResponse(err.Error())
		resp.Retry = errors.Is(err, ErrLedger)
		return resp
	}
	return resp
}

// acquire takes the store lock. When the wait runs out the request
// proceeds without exclusivity; the dedup ledger still guards chat events.
func (g *Gateway) acquire(ctx context.Context, req *Request) func() {
	if g.locker == nil {
		return func() {}
	}
	release, err := g.locker.Acquire(ctx, g.lockTimeout)
	if err != nil {
		slog.Warn("proceeding without lock", "request_id", req.ID, "intent", req.Intent, "error", err)
		return func() {}
	}
	return release
}

func (g *Gateway) read(ctx context.Context) (*Response, error) {
	cases, err := g.store.LoadCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	reminders, err := g.store.LoadReminders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reminders: %w", err)
	}
	settings, err := g.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if cases == nil {
		cases = []*types.Case{}
	}
	if reminders == nil {
		reminders = []*types.Reminder{}
	}
	if settings == nil {
		settings = &types.Settings{}
	}
	return &Response{
		Status: StatusSuccess,
		Data:   &types.Snapshot{Cases: cases, Reminders: reminders, Settings: settings},
	}, nil
}

// Default credentials accepted while the user list is empty.
const (
	defaultUser     = "admin"
	defaultPassword = "admin"
)

func (g *Gateway) login(ctx context.Context, username, password string) (*Response, error) {
	if err := validate.Login(username, password); err != nil {
		return nil, err
	}
	settings, err := g.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if settings == nil || len(settings.Users) == 0 {
		if equal(username, defaultUser) && equal(password, defaultPassword) {
			return &Response{Status: StatusSuccess, Message: "Default Admin"}, nil
		}
		return errorResponse("No users defined (Default: admin/admin)"), nil
	}
	for _, u := range settings.Users {
		if equal(username, u.Username) && equal(password, u.Password) {
			return &Response{Status: StatusSuccess}, nil
		}
	}
	return errorResponse("Invalid credentials"), nil
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (g *Gateway) write(ctx context.Context, body []byte) (*Response, error) {
	payload, err := syncer.DecodePayload(body)
	if err != nil {
		return nil, err
	}
	ack, err := g.writer.Apply(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("apply write: %w", err)
	}
	return &Response{Status: StatusSuccess, UploadedLinks: ack.UploadedLinks}, nil
}
