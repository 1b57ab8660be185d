package telegram

import (
	"testing"
)

func TestParseUpdateMessage(t *testing.T) {
	body := `{"update_id":1,"message":{"message_id":42,"date":0,"text":" /today ",
		"chat":{"id":-100,"type":"supergroup"},"from":{"id":7,"is_bot":false,"first_name":"A","username":"alice"}}}`
	event, err := ParseUpdate([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if event.InboundID() != "msg_42" {
		t.Errorf("unexpected id %s", event.InboundID())
	}
	if event.Text != "/today" || event.ChatID != "-100" || event.ChatType != "supergroup" {
		t.Errorf("unexpected event %+v", event)
	}
	if event.IsInteraction() {
		t.Error("message is not an interaction")
	}
}

func TestParseUpdateCallback(t *testing.T) {
	body := `{"update_id":2,"callback_query":{"id":"abc","data":"/summary","chat_instance":"x",
		"from":{"id":7,"is_bot":false,"first_name":"A"},
		"message":{"message_id":9,"date":0,"chat":{"id":55,"type":"private"}}}}`
	event, err := ParseUpdate([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if event.InboundID() != "cb_abc" || !event.IsInteraction() {
		t.Errorf("unexpected event %+v", event)
	}
	if event.Text != "/summary" || event.ChatID != "55" {
		t.Errorf("unexpected event %+v", event)
	}
}

func TestParseUpdateIgnoredKinds(t *testing.T) {
	event, err := ParseUpdate([]byte(`{"update_id":3,"edited_message":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if event != nil {
		t.Errorf("expected nil event, got %+v", event)
	}
	if _, err := ParseUpdate([]byte("{")); err == nil {
		t.Error("expected decode error")
	}
}
