package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/casewatch/internal/config"
	"github.com/user/casewatch/internal/types"
)

// AutoAdvanceDays is the accident age at which a waiting case moves to
// Processing.
const AutoAdvanceDays = 30

// DefaultMorningHour is the local hour of the morning stage when Options
// leaves it unset. Midnight is not a valid morning hour.
const DefaultMorningHour = 8

// Options tunes an Engine. Zero values fall back to defaults: time.Local,
// DefaultMorningHour, a 30s lock wait and time.Now.
type Options struct {
	Location    *time.Location
	MorningHour int
	LockTimeout time.Duration
	Now         func() time.Time
}

// OptionsFromConfig derives engine options from the loaded config.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Location:    loc,
		MorningHour: cfg.Scheduler.MorningHour,
		LockTimeout: cfg.LockTimeout(),
	}, nil
}

// Engine evaluates time triggers against the stored cases and reminders.
type Engine struct {
	store       types.DocumentStore
	dispatcher  types.Dispatcher
	locker      types.Locker
	loc         *time.Location
	morningHour int
	lockTimeout time.Duration
	now         func() time.Time
}

func NewEngine(store types.DocumentStore, dispatcher types.Dispatcher, locker types.Locker, opts Options) *Engine {
	e := &Engine{
		store:       store,
		dispatcher:  dispatcher,
		locker:      locker,
		loc:         opts.Location,
		morningHour: opts.MorningHour,
		lockTimeout: opts.LockTimeout,
		now:         opts.Now,
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.morningHour < 1 || e.morningHour > 23 {
		e.morningHour = DefaultMorningHour
	}
	if e.lockTimeout <= 0 {
		e.lockTimeout = 30 * time.Second
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time { return e.now() }

// Location is the zone local-time triggers are evaluated in.
func (e *Engine) Location() *time.Location { return e.loc }

// StageFired records one itinerary notification sent by a tick.
type StageFired struct {
	CaseID string
	Event  string
	Stage  types.Stage
}

// TickResult summarises what one tick changed.
type TickResult struct {
	Stages    []StageFired
	Reminders int
	Advanced  []string
}

// Changed reports whether the tick mutated anything.
func (r *TickResult) Changed() bool {
	return len(r.Stages) > 0 || r.Reminders > 0 || len(r.Advanced) > 0
}

// Tick runs one evaluation pass at now under the shared lock. Every
// mutation is persisted before Tick returns.
func (e *Engine) Tick(ctx context.Context, now time.Time) (*TickResult, error) {
	release := e.lock(ctx, "tick")
	defer release()

	reminders, err := e.store.LoadReminders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reminders: %w", err)
	}
	cases, err := e.store.LoadCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}

	res := &TickResult{}
	for _, r := range reminders {
		if e.fireReminder(ctx, r, now) {
			res.Reminders++
		}
	}

	var inbox []*types.Notification
	for _, c := range cases {
		if c == nil {
			continue
		}
		for _, item := range c.Itinerary {
			if stage, ok := e.fireStage(ctx, c, item, now); ok {
				res.Stages = append(res.Stages, StageFired{CaseID: c.ID, Event: item.Event, Stage: stage})
			}
		}
		if n := e.advance(ctx, c, now); n != nil {
			res.Advanced = append(res.Advanced, c.ID)
			inbox = append(inbox, n)
		}
	}

	if res.Reminders > 0 {
		if err := e.store.SaveReminders(ctx, reminders); err != nil {
			return res, fmt.Errorf("save reminders: %w", err)
		}
	}
	if len(res.Stages) > 0 || len(res.Advanced) > 0 {
		if err := e.store.SaveCases(ctx, cases); err != nil {
			return res, fmt.Errorf("save cases: %w", err)
		}
	}
	if len(inbox) > 0 {
		if err := e.pushInbox(ctx, inbox); err != nil {
			return res, err
		}
	}

	if res.Changed() {
		slog.Info("scheduler tick", "stages", len(res.Stages), "reminders", res.Reminders, "advanced", len(res.Advanced))
	}
	return res, nil
}

func (e *Engine) fireReminder(ctx context.Context, r *types.Reminder, now time.Time) bool {
	if r == nil || r.Notified {
		return false
	}
	at, ok := types.ParseTime(r.Time, e.loc)
	if !ok || at.After(now) {
		return false
	}
	e.notify(ctx, ReminderMessage(r, at, e.loc))
	r.Notified = true
	return true
}

func (e *Engine) fireStage(ctx context.Context, c *types.Case, item *types.ItineraryItem, now time.Time) (types.Stage, bool) {
	if item == nil {
		return "", false
	}
	at, ok := types.ParseTime(item.Time, e.loc)
	if !ok {
		return "", false
	}
	stage, ok := DueStage(item.Notified, at, now, e.loc, e.morningHour)
	if !ok {
		return "", false
	}
	e.notify(ctx, StageMessage(c, item, stage, at, e.loc))
	item.Notified.Add(stage)
	slog.Debug("itinerary stage fired", "case_id", c.ID, "stage", stage)
	return stage, true
}

// DueStage returns the first stage, in evaluation order, whose window
// contains now and which has not fired yet.
func DueStage(fired types.StageSet, at, now time.Time, loc *time.Location, morningHour int) (types.Stage, bool) {
	until := at.Sub(now)
	hours := until.Hours()
	days := hours / 24
	for _, stage := range types.Stages {
		if fired.Has(stage) {
			continue
		}
		var due bool
		switch stage {
		case types.StageThreeDays:
			due = days > 2.9 && days <= 3
		case types.StageOneDay:
			due = days > 0.9 && days <= 1
		case types.StageMorning:
			due = days <= 0.5 && now.In(loc).Hour() == morningHour && types.SameDay(now, at, loc)
		case types.StageFourHours:
			due = hours > 3.9 && hours <= 4
		}
		if due {
			return stage, true
		}
	}
	return "", false
}

// advance moves a case that has waited AutoAdvanceDays to Processing and
// returns the inbox entry describing it, or nil when nothing changed.
func (e *Engine) advance(ctx context.Context, c *types.Case, now time.Time) *types.Notification {
	if !c.Status.AwaitingProcessing() {
		return nil
	}
	accident, ok := types.ParseTime(c.Date, e.loc)
	if !ok {
		return nil
	}
	if int(now.Sub(accident).Hours()/24) < AutoAdvanceDays {
		return nil
	}
	old := c.Status
	c.Status = types.StatusProcessing
	c.PrependHistory(types.HistoryEntry{
		Date:    types.FormatTime(now, e.loc),
		Content: AdvanceHistory(old),
		Type:    types.HistorySystem,
	})
	e.notify(ctx, AdvanceMessage(c))
	slog.Info("case auto-advanced", "case_id", c.ID, "from", old)
	return &types.Notification{
		ID:        types.NewNotificationID(),
		Title:     advanceTitle,
		Message:   fmt.Sprintf("%s (%s) 狀態已自動轉為「%s」", c.DisplayName(), c.DisplayPlate(), types.StatusProcessing.Label()),
		CaseID:    c.ID,
		Timestamp: now.Format(time.RFC3339),
	}
}

func (e *Engine) pushInbox(ctx context.Context, entries []*types.Notification) error {
	settings, err := e.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if settings == nil {
		settings = &types.Settings{}
	}
	for _, n := range entries {
		settings.PushNotification(n)
	}
	if err := e.store.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// notify sends one message. A panicking dispatcher is contained so the
// remaining items of a tick are still evaluated.
func (e *Engine) notify(ctx context.Context, text string) {
	e.send(ctx, "", text)
}

func (e *Engine) send(ctx context.Context, chatID, text string) {
	if e.dispatcher == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch panicked", "panic", r)
		}
	}()
	e.dispatcher.Send(ctx, types.OutboundMessage{ChatID: chatID, Text: text, QuickReplies: true})
}

func (e *Engine) lock(ctx context.Context, op string) func() {
	if e.locker == nil {
		return func() {}
	}
	release, err := e.locker.Acquire(ctx, e.lockTimeout)
	if err != nil {
		slog.Warn("proceeding without lock", "op", op, "error", err)
		return func() {}
	}
	return release
}
