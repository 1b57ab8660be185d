// internal/types/models_test.go
package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestCasePreservesUnknownFields(t *testing.T) {
	in := `{"id":"c1","date":"2024-01-01","clientName":"王","plate":"ABC-1","status":"New",
		"history":[],"itinerary":[{"time":"2024-02-01T10:00","event":"調解","notified":["3d"],"room":"B2"}],
		"attachments":[{"id":"a1","tempId":"t1","name":"x.pdf","size":12}],
		"claims":{"medical":1000},"insurer":"富邦","tags":["x"]}`

	var c Case
	if err := json.Unmarshal([]byte(in), &c); err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusNew {
		t.Errorf("expected New, got %s", c.Status)
	}
	if string(c.Extra["insurer"]) != `"富邦"` {
		t.Errorf("expected insurer extra, got %s", c.Extra["insurer"])
	}
	if !c.Itinerary[0].Notified.Has(StageThreeDays) {
		t.Error("expected 3d tag")
	}

	c.Status = StatusProcessing
	out, err := json.Marshal(&c)
	if err != nil {
		t.Fatal(err)
	}

	var generic map[string]any
	if err := json.Unmarshal(out, &generic); err != nil {
		t.Fatal(err)
	}
	if generic["insurer"] != "富邦" {
		t.Errorf("insurer lost: %s", out)
	}
	if generic["status"] != "Processing" {
		t.Errorf("expected status Processing, got %v", generic["status"])
	}
	claims := generic["claims"].(map[string]any)
	if claims["medical"] != float64(1000) {
		t.Errorf("claims changed: %v", claims)
	}
	item := generic["itinerary"].([]any)[0].(map[string]any)
	if item["room"] != "B2" {
		t.Errorf("itinerary extra lost: %v", item)
	}
	att := generic["attachments"].([]any)[0].(map[string]any)
	if att["size"] != float64(12) {
		t.Errorf("attachment extra lost: %v", att)
	}
}

func TestItineraryNotifiedNeverNull(t *testing.T) {
	out, err := json.Marshal(&ItineraryItem{Time: "2024-01-01", Event: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"notified":[]`) {
		t.Errorf("expected empty notified array, got %s", out)
	}
}

func TestStageSetAdd(t *testing.T) {
	var s StageSet
	if !s.Add(StageOneDay) {
		t.Error("expected first add to succeed")
	}
	if s.Add(StageOneDay) {
		t.Error("expected duplicate add to be rejected")
	}
	if len(s) != 1 {
		t.Errorf("expected 1 stage, got %d", len(s))
	}
}

func TestPushNotificationBounded(t *testing.T) {
	s := &Settings{}
	for i := 0; i < MaxInbox+5; i++ {
		s.PushNotification(&Notification{ID: string(rune('a' + i%26)), Title: "n"})
	}
	if len(s.Notifications) != MaxInbox {
		t.Fatalf("expected %d notifications, got %d", MaxInbox, len(s.Notifications))
	}

	latest := &Notification{ID: "latest"}
	s.PushNotification(latest)
	if s.Notifications[0] != latest {
		t.Error("expected newest first")
	}
}

func TestSettingsPreservesUnknownFields(t *testing.T) {
	in := `{"telegramToken":"tok","telegramChatId":"-100","users":[{"u":"a","p":"b"}],"theme":"dark"}`
	var s Settings
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(&s)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"theme":"dark"`) {
		t.Errorf("theme lost: %s", out)
	}
	if s.Users[0].Username != "a" || s.Users[0].Password != "b" {
		t.Errorf("unexpected users: %+v", s.Users)
	}
}

func TestParseTime(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	tests := []struct {
		in   string
		ok   bool
		hour int
	}{
		{"2024-03-01T09:30", true, 9},
		{"2024-03-01 09:30", true, 9},
		{"2024-03-01T09:30:15", true, 9},
		{"2024-03-01", true, 0},
		{"2024-03-01T01:30:00Z", true, 9},
		{"not a date", false, 0},
		{"", false, 0},
	}
	for _, tt := range tests {
		got, ok := ParseTime(tt.in, loc)
		if ok != tt.ok {
			t.Errorf("ParseTime(%q) ok=%v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got.In(loc).Hour() != tt.hour {
			t.Errorf("ParseTime(%q) hour=%d, want %d", tt.in, got.In(loc).Hour(), tt.hour)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	if StatusLitigation.Label() != "訴訟中" {
		t.Errorf("unexpected label %s", StatusLitigation.Label())
	}
	if Status("Custom").Label() != "Custom" {
		t.Error("unknown status should echo")
	}
	if !StatusWaiting.AwaitingProcessing() || StatusSettled.AwaitingProcessing() {
		t.Error("unexpected AwaitingProcessing result")
	}
}
