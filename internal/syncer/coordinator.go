// Package syncer reconciles client snapshots with the document store.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/user/casewatch/internal/types"
	"github.com/user/casewatch/internal/validate"
)

// Uploader stores a batch of attachment binaries.
type Uploader interface {
	Upload(ctx context.Context, items []types.UploadItem) map[string]*string
}

// Payload is a client write. A nil collection was absent from the request
// and leaves the stored one untouched.
type Payload struct {
	Cases     []*types.Case      `json:"cases"`
	Reminders []*types.Reminder  `json:"reminders"`
	Settings  *types.Settings    `json:"settings"`
	Uploads   []types.UploadItem `json:"uploads"`
}

// DecodePayload validates and decodes a raw write body.
func DecodePayload(data []byte) (*Payload, error) {
	if err := validate.WritePayload(data); err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidPayload, err)
	}
	return &p, nil
}

// uploadOnly reports whether the payload only carries attachments. Clients
// send an empty case list alongside uploads, which must not wipe the store.
func (p *Payload) uploadOnly() bool {
	return len(p.Uploads) > 0 && p.Cases != nil && len(p.Cases) == 0
}

// Ack is the result of Apply.
type Ack struct {
	UploadedLinks map[string]*string
	StatusChanges int
}

// Options configures a Coordinator.
type Options struct {
	Strategy MergeStrategy
	Location *time.Location
	Now      func() time.Time
}

// Coordinator applies client writes.
type Coordinator struct {
	store      types.DocumentStore
	dispatcher types.Dispatcher
	uploader   Uploader
	strategy   MergeStrategy
	loc        *time.Location
	now        func() time.Time
}

func NewCoordinator(store types.DocumentStore, dispatcher types.Dispatcher, uploader Uploader, opts Options) *Coordinator {
	c := &Coordinator{
		store:      store,
		dispatcher: dispatcher,
		uploader:   uploader,
		strategy:   opts.Strategy,
		loc:        opts.Location,
		now:        opts.Now,
	}
	if c.strategy == nil {
		c.strategy = ReplaceStrategy{}
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Apply writes every collection present in p. Status changes between the
// stored and submitted cases are announced before the cases are replaced.
// The caller is expected to hold the store lock.
func (c *Coordinator) Apply(ctx context.Context, p *Payload) (*Ack, error) {
	ack := &Ack{}

	if p.Cases != nil && !p.uploadOnly() {
		stored, err := c.store.LoadCases(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cases: %w", err)
		}
		ack.StatusChanges = c.announceStatusChanges(ctx, stored, p.Cases)
		if err := c.store.SaveCases(ctx, c.strategy.MergeCases(stored, p.Cases)); err != nil {
			return nil, fmt.Errorf("save cases: %w", err)
		}
	}

	if p.Settings != nil {
		stored, err := c.store.LoadSettings(ctx)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		if err := c.store.SaveSettings(ctx, c.strategy.MergeSettings(stored, p.Settings)); err != nil {
			return nil, fmt.Errorf("save settings: %w", err)
		}
	}

	if len(p.Uploads) > 0 {
		if c.uploader == nil {
			ack.UploadedLinks = make(map[string]*string, len(p.Uploads))
			for _, item := range p.Uploads {
				ack.UploadedLinks[item.Key()] = nil
			}
		} else {
			ack.UploadedLinks = c.uploader.Upload(ctx, p.Uploads)
		}
	}

	if p.Reminders != nil {
		stored, err := c.store.LoadReminders(ctx)
		if err != nil {
			return nil, fmt.Errorf("load reminders: %w", err)
		}
		if err := c.store.SaveReminders(ctx, c.strategy.MergeReminders(stored, p.Reminders)); err != nil {
			return nil, fmt.Errorf("save reminders: %w", err)
		}
	}

	return ack, nil
}

// StatusChange is a case whose status differs between two snapshots.
type StatusChange struct {
	Case *types.Case
	From types.Status
	To   types.Status
}

// StatusChanges lists cases present in both snapshots whose status differs,
// in submission order.
func StatusChanges(stored, submitted []*types.Case) []StatusChange {
	previous := make(map[string]*types.Case, len(stored))
	for _, sc := range stored {
		if sc == nil {
			continue
		}
		if _, dup := previous[sc.ID]; !dup {
			previous[sc.ID] = sc
		}
	}
	var changes []StatusChange
	for _, nc := range submitted {
		if nc == nil {
			continue
		}
		old, ok := previous[nc.ID]
		if !ok || old.Status == nc.Status {
			continue
		}
		changes = append(changes, StatusChange{Case: nc, From: old.Status, To: nc.Status})
	}
	return changes
}

func (c *Coordinator) announceStatusChanges(ctx context.Context, stored, submitted []*types.Case) int {
	changes := StatusChanges(stored, submitted)
	now := c.now()
	for _, ch := range changes {
		slog.Info("case status changed", "case_id", ch.Case.ID, "from", ch.From, "to", ch.To)
		if c.dispatcher != nil {
			c.dispatcher.Send(ctx, types.OutboundMessage{
				Text:         StatusChangeMessage(ch.Case, ch.From, ch.To, now, c.loc),
				QuickReplies: true,
			})
		}
	}
	return len(changes)
}

// StatusChangeMessage is the notification for a status change.
func StatusChangeMessage(cs *types.Case, from, to types.Status, now time.Time, loc *time.Location) string {
	return "<b>🔄 案件進度異動通知</b>\n\n" +
		"案件: " + html.EscapeString(cs.DisplayName()) + " (" + html.EscapeString(cs.DisplayPlate()) + ")\n" +
		"狀態更新: <code>" + html.EscapeString(from.Label()) + "</code> ➡️ <b>" + html.EscapeString(to.Label()) + "</b>\n" +
		"更新時間: " + types.FormatTime(now, loc)
}

// ApplyUploadedLinks reconciles attachments with an upload result: every
// attachment whose temp id resolved to a URL gets that URL and loses its
// temp id. It returns the number of attachments updated.
func ApplyUploadedLinks(cases []*types.Case, links map[string]*string) int {
	updated := 0
	for _, cs := range cases {
		if cs == nil {
			continue
		}
		for _, att := range cs.Attachments {
			if att == nil || att.TempID == "" {
				continue
			}
			url := links[att.TempID]
			if url == nil || *url == "" {
				continue
			}
			u := *url
			att.URL = &u
			att.TempID = ""
			updated++
		}
	}
	return updated
}
