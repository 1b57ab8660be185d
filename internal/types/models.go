// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Case is one accident-claim case as held by the client. The server only
// ever touches Status, History and the Notified sets of the itinerary;
// every other field, known or not, is carried through unchanged.
type Case struct {
	ID          string           `json:"id"`
	Date        string           `json:"date"`
	ClientName  string           `json:"clientName"`
	Plate       string           `json:"plate"`
	Status      Status           `json:"status"`
	History     []HistoryEntry   `json:"history"`
	Itinerary   []*ItineraryItem `json:"itinerary"`
	Attachments []*Attachment    `json:"attachments"`
	Claims      json.RawMessage  `json:"claims,omitempty"`

	Extra Extra `json:"-"`
}

// DisplayName returns the client name, or a placeholder when the case has none.
func (c *Case) DisplayName() string {
	if c.ClientName == "" {
		return "未命名"
	}
	return c.ClientName
}

// DisplayPlate returns the licence plate, or a placeholder.
func (c *Case) DisplayPlate() string {
	if c.Plate == "" {
		return "無"
	}
	return c.Plate
}

// PrependHistory adds entry at the head of the history log.
func (c *Case) PrependHistory(entry HistoryEntry) {
	c.History = append([]HistoryEntry{entry}, c.History...)
}

func (c *Case) UnmarshalJSON(data []byte) error {
	type plain Case
	if err := json.Unmarshal(data, (*plain)(c)); err != nil {
		return err
	}
	extra, err := extractExtra(data, c)
	if err != nil {
		return err
	}
	c.Extra = extra
	return nil
}

func (c Case) MarshalJSON() ([]byte, error) {
	type plain Case
	return marshalWithExtra(plain(c), c.Extra)
}

// HistoryEntry kinds.
const (
	HistorySystem = "system"
	HistoryManual = "manual"
)

// HistoryEntry is one line of a case's history log.
type HistoryEntry struct {
	Date    string `json:"date"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// ItineraryItem is a scheduled event on a case, such as a mediation hearing.
type ItineraryItem struct {
	Time     string   `json:"time"`
	Event    string   `json:"event"`
	Location string   `json:"location,omitempty"`
	Note     string   `json:"note,omitempty"`
	Notified StageSet `json:"notified"`

	Extra Extra `json:"-"`
}

func (it *ItineraryItem) UnmarshalJSON(data []byte) error {
	type plain ItineraryItem
	if err := json.Unmarshal(data, (*plain)(it)); err != nil {
		return err
	}
	extra, err := extractExtra(data, it)
	if err != nil {
		return err
	}
	it.Extra = extra
	return nil
}

func (it ItineraryItem) MarshalJSON() ([]byte, error) {
	type plain ItineraryItem
	if it.Notified == nil {
		it.Notified = StageSet{}
	}
	return marshalWithExtra(plain(it), it.Extra)
}

// Attachment references a file attached to a case. While an upload is
// pending the client sets TempID and a null URL; once the blob store
// returns a URL the TempID is cleared.
type Attachment struct {
	Name   string  `json:"name,omitempty"`
	Type   string  `json:"type,omitempty"`
	TempID string  `json:"tempId,omitempty"`
	URL    *string `json:"url"`

	Extra Extra `json:"-"`
}

func (a *Attachment) UnmarshalJSON(data []byte) error {
	type plain Attachment
	if err := json.Unmarshal(data, (*plain)(a)); err != nil {
		return err
	}
	extra, err := extractExtra(data, a)
	if err != nil {
		return err
	}
	a.Extra = extra
	return nil
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	type plain Attachment
	return marshalWithExtra(plain(a), a.Extra)
}

// Reminder is a standalone or case-linked follow-up. Notified only ever
// moves from false to true.
type Reminder struct {
	Type      string `json:"type,omitempty"`
	CaseTitle string `json:"caseTitle"`
	Note      string `json:"note"`
	Time      string `json:"time"`
	Notified  bool   `json:"notified"`
	CaseID    string `json:"caseId,omitempty"`

	Extra Extra `json:"-"`
}

// Title returns the reminder title, or a placeholder.
func (r *Reminder) Title() string {
	if r.CaseTitle == "" {
		return "無標題"
	}
	return r.CaseTitle
}

func (r *Reminder) UnmarshalJSON(data []byte) error {
	type plain Reminder
	if err := json.Unmarshal(data, (*plain)(r)); err != nil {
		return err
	}
	extra, err := extractExtra(data, r)
	if err != nil {
		return err
	}
	r.Extra = extra
	return nil
}

func (r Reminder) MarshalJSON() ([]byte, error) {
	type plain Reminder
	return marshalWithExtra(plain(r), r.Extra)
}

// MaxInbox is the number of notifications kept in the settings inbox.
const MaxInbox = 50

// Settings is the single settings document shared by all clients.
type Settings struct {
	TelegramToken  string          `json:"telegramToken,omitempty"`
	TelegramChatID string          `json:"telegramChatId,omitempty"`
	Users          []User          `json:"users,omitempty"`
	Notifications  []*Notification `json:"notifications,omitempty"`

	Extra Extra `json:"-"`
}

// User is one entry of the login list.
type User struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

// Notification is an inbox entry shown by the client.
type Notification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message,omitempty"`
	CaseID    string `json:"caseId,omitempty"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`

	Extra Extra `json:"-"`
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	if err := json.Unmarshal(data, (*plain)(n)); err != nil {
		return err
	}
	extra, err := extractExtra(data, n)
	if err != nil {
		return err
	}
	n.Extra = extra
	return nil
}

func (n Notification) MarshalJSON() ([]byte, error) {
	type plain Notification
	return marshalWithExtra(plain(n), n.Extra)
}

// PushNotification adds n at the head of the inbox and evicts the oldest
// entries beyond MaxInbox.
func (s *Settings) PushNotification(n *Notification) {
	s.Notifications = append([]*Notification{n}, s.Notifications...)
	if len(s.Notifications) > MaxInbox {
		s.Notifications = s.Notifications[:MaxInbox]
	}
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	type plain Settings
	if err := json.Unmarshal(data, (*plain)(s)); err != nil {
		return err
	}
	extra, err := extractExtra(data, s)
	if err != nil {
		return err
	}
	s.Extra = extra
	return nil
}

func (s Settings) MarshalJSON() ([]byte, error) {
	type plain Settings
	return marshalWithExtra(plain(s), s.Extra)
}

// Snapshot is the full working copy exchanged with clients.
type Snapshot struct {
	Cases     []*Case     `json:"cases"`
	Reminders []*Reminder `json:"reminders"`
	Settings  *Settings   `json:"settings"`
}

// OutboundMessage is one chat notification. An empty ChatID means the
// configured default chat.
type OutboundMessage struct {
	ChatID       string
	Text         string
	QuickReplies bool
}

// DebugEntry is one line of the inbound debug log.
type DebugEntry struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	ChatID string    `json:"chat_id,omitempty"`
	Text   string    `json:"text"`
}

// ChatEvent is an inbound chat delivery: a plain message or the press of
// an inline button. Exactly one of MessageID and CallbackID is set.
type ChatEvent struct {
	MessageID  int
	CallbackID string
	ChatID     string
	ChatType   string
	From       string
	Text       string
}

// InboundID returns the dedup key of the event.
func (e *ChatEvent) InboundID() InboundID {
	if e.CallbackID != "" {
		return CallbackInboundID(e.CallbackID)
	}
	return MessageInboundID(e.MessageID)
}

// IsInteraction reports whether the event came from an inline button.
func (e *ChatEvent) IsInteraction() bool {
	return e.CallbackID != ""
}

// UploadItem is one attachment binary sent with a write. The result of
// the upload is keyed by TempID, or by ID when TempID is empty.
type UploadItem struct {
	ID       string `json:"id,omitempty"`
	TempID   string `json:"tempId,omitempty"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType,omitempty"`
	Base64   string `json:"base64"`
}

// Key returns the identifier the upload result is reported under.
func (u *UploadItem) Key() string {
	if u.TempID != "" {
		return u.TempID
	}
	return u.ID
}
