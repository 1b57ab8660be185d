package types

// Status is the lifecycle state of a case.
type Status string

const (
	StatusNew        Status = "New"
	StatusWaiting    Status = "Waiting"
	StatusProcessing Status = "Processing"
	StatusLitigation Status = "Litigation"
	StatusMediation  Status = "Mediation"
	StatusSettled    Status = "Settled"
	StatusJudgement  Status = "Judgement"
	StatusCompleted  Status = "Completed"
)

var statusLabels = map[Status]string{
	StatusNew:        "新案",
	StatusWaiting:    "等待中",
	StatusProcessing: "處理中",
	StatusLitigation: "訴訟中",
	StatusMediation:  "調解中",
	StatusSettled:    "已和解",
	StatusJudgement:  "已判決",
	StatusCompleted:  "已結案",
}

// Label returns the human-readable name of the status. Unknown values are
// returned as-is.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// AwaitingProcessing reports whether a case in this status is still
// waiting for the 30-day automatic move to Processing.
func (s Status) AwaitingProcessing() bool {
	return s == StatusNew || s == StatusWaiting
}

// Stage is a time-relative itinerary notification.
type Stage string

const (
	StageThreeDays Stage = "3d"
	StageOneDay    Stage = "1d"
	StageMorning   Stage = "morning"
	StageFourHours Stage = "4h"
)

// Stages lists every stage in evaluation order.
var Stages = []Stage{StageThreeDays, StageOneDay, StageMorning, StageFourHours}

var stageLabels = map[Stage]string{
	StageThreeDays: "三天前提醒",
	StageOneDay:    "一天前提醒",
	StageMorning:   "今日行程提醒",
	StageFourHours: "四小時後即將開始",
}

// Label returns the human-readable name of the stage.
func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

// StageSet records the stages already fired for an itinerary item. It only
// grows.
type StageSet []Stage

// Has reports whether stage has fired.
func (s StageSet) Has(stage Stage) bool {
	for _, v := range s {
		if v == stage {
			return true
		}
	}
	return false
}

// Add records stage and reports whether it was newly added.
func (s *StageSet) Add(stage Stage) bool {
	if s.Has(stage) {
		return false
	}
	*s = append(*s, stage)
	return true
}
