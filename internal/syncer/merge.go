package syncer

import "github.com/user/casewatch/internal/types"

// MergeStrategy combines a stored collection with a client submission.
// It is only consulted for collections present in the submission.
type MergeStrategy interface {
	MergeCases(stored, submitted []*types.Case) []*types.Case
	MergeReminders(stored, submitted []*types.Reminder) []*types.Reminder
	MergeSettings(stored, submitted *types.Settings) *types.Settings
}

// ReplaceStrategy keeps the submission and drops what was stored. The last
// writer wins per collection.
type ReplaceStrategy struct{}

func (ReplaceStrategy) MergeCases(_, submitted []*types.Case) []*types.Case {
	return submitted
}

func (ReplaceStrategy) MergeReminders(_, submitted []*types.Reminder) []*types.Reminder {
	return submitted
}

func (ReplaceStrategy) MergeSettings(_, submitted *types.Settings) *types.Settings {
	return submitted
}
