// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/user/casewatch/internal/state"
	"github.com/user/casewatch/internal/types"
)

func TestSchedulerFiresTick(t *testing.T) {
	store := state.NewFileStore(t.TempDir())
	if err := store.SaveReminders(context.Background(), []*types.Reminder{
		{CaseTitle: "overdue", Time: "2020-01-01T00:00"},
	}); err != nil {
		t.Fatal(err)
	}
	disp := &recordingDispatcher{}
	engine := NewEngine(store, disp, state.NewSemaphoreLocker(), Options{Location: taipei})

	sched := New(engine, "* * * * * *", "")
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	// Wait up to 2.5 seconds for at least one fire
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("tick did not fire within 2.5s, messages=%d", len(disp.Texts()))
		case <-ticker.C:
			if len(disp.Texts()) > 0 {
				return
			}
		}
	}
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	engine := NewEngine(state.NewFileStore(t.TempDir()), &recordingDispatcher{}, nil, Options{})
	sched := New(engine, "every now and then", "")
	if err := sched.Start(); err == nil {
		sched.Stop()
		t.Fatal("expected error for invalid schedule")
	}
	if err := ValidateSpec("0 9 * * MON"); err != nil {
		t.Errorf("digest default should parse: %v", err)
	}
	if err := ValidateSpec("*/5 * * * * *"); err != nil {
		t.Errorf("seconds field should parse: %v", err)
	}
}

func TestWeekBounds(t *testing.T) {
	tests := []struct {
		now  string
		want string
	}{
		{"2024-03-13T15:00", "2024-03-11"}, // Wednesday
		{"2024-03-11T00:00", "2024-03-11"}, // Monday midnight
		{"2024-03-17T23:59", "2024-03-11"}, // Sunday
	}
	for _, tt := range tests {
		start, end := WeekBounds(at(tt.now), taipei)
		if got := start.Format("2006-01-02"); got != tt.want {
			t.Errorf("WeekBounds(%s) start = %s, want %s", tt.now, got, tt.want)
		}
		if end.Sub(start) != 7*24*time.Hour {
			t.Errorf("WeekBounds(%s) spans %v", tt.now, end.Sub(start))
		}
	}
}

func TestWeeklyDigest(t *testing.T) {
	engine, store, disp := newTestEngine(t)
	ctx := context.Background()
	now := at("2024-03-17T09:00") // Sunday

	sent, err := engine.SendDigest(ctx, "", now)
	if err != nil {
		t.Fatal(err)
	}
	if sent || len(disp.Texts()) != 0 {
		t.Fatal("empty digest should not be sent")
	}

	saveCasesJSON(t, store, `[
		{"id":"C1","clientName":"甲","plate":"P-1","status":"Processing",
		 "itinerary":[{"time":"2024-03-16T10:00","event":"會勘"},{"time":"2024-03-18T10:00","event":"下週"}]},
		{"id":"C2","clientName":"乙","status":"Mediation",
		 "itinerary":[{"time":"2024-03-11T09:30","event":"調解"},{"time":"2024-03-10T09:30","event":"上週"}]}
	]`)

	d, err := engine.WeeklyDigest(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Processing) != 1 || d.Processing[0].ID != "C1" {
		t.Errorf("processing = %+v", d.Processing)
	}
	if len(d.Events) != 2 || d.Events[0].Event != "調解" || d.Events[1].Event != "會勘" {
		t.Fatalf("events = %+v", d.Events)
	}

	sent, err = engine.SendDigest(ctx, "-100", now)
	if err != nil || !sent {
		t.Fatalf("sent=%v err=%v", sent, err)
	}
	msg := disp.messages[0]
	if msg.ChatID != "-100" {
		t.Errorf("chat id = %q", msg.ChatID)
	}
	for _, want := range []string{"1. 甲 (P-1)", "03/11 (一) 09:30 - 乙：調解", "03/16 (六) 10:00 - 甲：會勘"} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("digest missing %q:\n%s", want, msg.Text)
		}
	}

	for _, c := range loadCases(t, store) {
		for _, item := range c.Itinerary {
			if len(item.Notified) != 0 {
				t.Errorf("digest mutated stage state of %s", c.ID)
			}
		}
	}
}

func TestTodayAndPendingReminders(t *testing.T) {
	engine, store, disp := newTestEngine(t)
	ctx := context.Background()
	now := at("2024-03-15T07:00")

	if err := engine.SendToday(ctx, "1", now); err != nil {
		t.Fatal(err)
	}
	if err := engine.SendPendingReminders(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	if texts := disp.Texts(); texts[0] != "☕ 今日尚無安排行程。" || texts[1] != "✨ 目前沒有尚未通知的提醒。" {
		t.Fatalf("unexpected empty replies: %q", texts)
	}

	saveCasesJSON(t, store, `[{"id":"C1","clientName":"A&B","itinerary":[
		{"time":"2024-03-15T16:00","event":"second"},
		{"time":"2024-03-15T09:00","event":"first"},
		{"time":"2024-03-16T09:00","event":"tomorrow"}]}]`)
	if err := store.SaveReminders(ctx, []*types.Reminder{
		{CaseTitle: "open", Time: "2024-03-20T10:00"},
		{CaseTitle: "closed", Time: "2024-03-01T10:00", Notified: true},
	}); err != nil {
		t.Fatal(err)
	}

	events, err := engine.Today(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Event != "first" || events[1].Event != "second" {
		t.Fatalf("today = %+v", events)
	}
	if msg := TodayMessage(events, taipei); !strings.Contains(msg, "• 09:00 - A&amp;B：first") {
		t.Errorf("today message not escaped or ordered:\n%s", msg)
	}

	pending, err := engine.PendingReminders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].CaseTitle != "open" {
		t.Errorf("pending = %+v", pending)
	}
	if msg := PendingRemindersMessage(pending, taipei); !strings.Contains(msg, "1. open\n   時間: 2024/03/20 10:00") {
		t.Errorf("pending message:\n%s", msg)
	}
}
