// internal/types/ids_test.go
package types

import (
	"testing"
)

func TestInboundIDs(t *testing.T) {
	if got := MessageInboundID(42); got != "msg_42" {
		t.Errorf("expected msg_42, got %s", got)
	}
	if got := CallbackInboundID("abc"); got != "cb_abc" {
		t.Errorf("expected cb_abc, got %s", got)
	}
}

func TestNewNotificationID(t *testing.T) {
	id := NewNotificationID()
	if len(id) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
	if id == NewNotificationID() {
		t.Error("expected distinct ids")
	}
}
