package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/user/casewatch/internal/types"
)

// Event is an itinerary item flattened with its case for listings.
type Event struct {
	At       time.Time
	CaseID   string
	Client   string
	Event    string
	Location string
}

// Digest is the weekly summary: cases in progress and the events of the
// current Monday to Sunday window.
type Digest struct {
	Start      time.Time
	End        time.Time
	Processing []*types.Case
	Events     []Event
}

// Empty reports whether the digest has nothing to say.
func (d *Digest) Empty() bool {
	return len(d.Processing) == 0 && len(d.Events) == 0
}

// WeekBounds returns Monday 00:00 and the following Monday 00:00 of the
// week containing now.
func WeekBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	day := types.StartOfDay(now, loc)
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 7)
}

// eventsBetween lists itinerary items with start <= time < end, sorted.
func (e *Engine) eventsBetween(cases []*types.Case, start, end time.Time) []Event {
	var events []Event
	for _, c := range cases {
		if c == nil {
			continue
		}
		for _, item := range c.Itinerary {
			if item == nil {
				continue
			}
			at, ok := types.ParseTime(item.Time, e.loc)
			if !ok || at.Before(start) || !at.Before(end) {
				continue
			}
			events = append(events, Event{
				At:       at,
				CaseID:   c.ID,
				Client:   c.DisplayName(),
				Event:    item.Event,
				Location: item.Location,
			})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })
	return events
}

// Today lists the itinerary events on now's calendar day.
func (e *Engine) Today(ctx context.Context, now time.Time) ([]Event, error) {
	cases, err := e.store.LoadCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	start := types.StartOfDay(now, e.loc)
	return e.eventsBetween(cases, start, start.AddDate(0, 0, 1)), nil
}

// PendingReminders lists reminders that have not fired yet.
func (e *Engine) PendingReminders(ctx context.Context) ([]*types.Reminder, error) {
	reminders, err := e.store.LoadReminders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reminders: %w", err)
	}
	var pending []*types.Reminder
	for _, r := range reminders {
		if r != nil && !r.Notified {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// WeeklyDigest builds the digest for the week containing now. It never
// mutates stored state.
func (e *Engine) WeeklyDigest(ctx context.Context, now time.Time) (*Digest, error) {
	cases, err := e.store.LoadCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	start, end := WeekBounds(now, e.loc)
	d := &Digest{Start: start, End: end}
	for _, c := range cases {
		if c != nil && c.Status == types.StatusProcessing {
			d.Processing = append(d.Processing, c)
		}
	}
	d.Events = e.eventsBetween(cases, start, end)
	return d, nil
}

// SendDigest sends the weekly digest to chatID, or the default chat when
// empty. It reports false when the digest was empty and nothing was sent.
func (e *Engine) SendDigest(ctx context.Context, chatID string, now time.Time) (bool, error) {
	d, err := e.WeeklyDigest(ctx, now)
	if err != nil {
		return false, err
	}
	if d.Empty() {
		return false, nil
	}
	e.send(ctx, chatID, DigestMessage(d, e.loc))
	return true, nil
}

// SendToday sends today's itinerary to chatID.
func (e *Engine) SendToday(ctx context.Context, chatID string, now time.Time) error {
	events, err := e.Today(ctx, now)
	if err != nil {
		return err
	}
	e.send(ctx, chatID, TodayMessage(events, e.loc))
	return nil
}

// SendPendingReminders sends the list of pending reminders to chatID.
func (e *Engine) SendPendingReminders(ctx context.Context, chatID string) error {
	pending, err := e.PendingReminders(ctx)
	if err != nil {
		return err
	}
	e.send(ctx, chatID, PendingRemindersMessage(pending, e.loc))
	return nil
}
