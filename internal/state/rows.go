// internal/state/rows.go
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/casewatch/internal/types"
)

// CaseRow is the persisted form of a case: a few index columns for
// humans and queries, plus the full serialized case.
type CaseRow struct {
	ID        string          `json:"id"`
	Date      string          `json:"date"`
	Name      string          `json:"name"`
	Plate     string          `json:"plate"`
	Status    string          `json:"status"`
	JSON      json.RawMessage `json:"json"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func encodeCaseRows(cases []*types.Case, now time.Time) ([]CaseRow, error) {
	rows := make([]CaseRow, 0, len(cases))
	for _, c := range cases {
		if c == nil {
			continue
		}
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal case %s: %w", c.ID, err)
		}
		status := string(c.Status)
		if status == "" {
			status = string(types.StatusWaiting)
		}
		rows = append(rows, CaseRow{
			ID:        c.ID,
			Date:      c.Date,
			Name:      c.ClientName,
			Plate:     c.Plate,
			Status:    status,
			JSON:      data,
			UpdatedAt: now,
		})
	}
	return rows, nil
}

// decodeCaseRows skips rows whose payload no longer parses.
func decodeCaseRows(rows []CaseRow) []*types.Case {
	cases := make([]*types.Case, 0, len(rows))
	for _, row := range rows {
		var c types.Case
		if err := json.Unmarshal(row.JSON, &c); err != nil {
			slog.Warn("skipping corrupt case row", "case_id", row.ID, "error", err)
			continue
		}
		cases = append(cases, &c)
	}
	return cases
}

// decodeReminders treats a corrupt blob as an empty list.
func decodeReminders(data []byte) []*types.Reminder {
	if len(data) == 0 {
		return []*types.Reminder{}
	}
	var reminders []*types.Reminder
	if err := json.Unmarshal(data, &reminders); err != nil {
		slog.Warn("reminders blob is corrupt, treating as empty", "error", err)
		return []*types.Reminder{}
	}
	if reminders == nil {
		reminders = []*types.Reminder{}
	}
	return reminders
}

// decodeSettings treats a corrupt blob as empty settings.
func decodeSettings(data []byte) *types.Settings {
	settings := &types.Settings{}
	if len(data) == 0 {
		return settings
	}
	if err := json.Unmarshal(data, settings); err != nil {
		slog.Warn("settings blob is corrupt, treating as empty", "error", err)
		return &types.Settings{}
	}
	return settings
}
