package scheduler

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/user/casewatch/internal/types"
)

const advanceTitle = "事故滿 30 日提醒"

var weekdayLabels = [...]string{"日", "一", "二", "三", "四", "五", "六"}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// reminderTime renders a reminder timestamp, falling back to the raw value.
func reminderTime(r *types.Reminder, loc *time.Location) string {
	if at, ok := types.ParseTime(r.Time, loc); ok {
		return types.FormatTime(at, loc)
	}
	return r.Time
}

// StageMessage is the notification for one itinerary stage.
func StageMessage(c *types.Case, item *types.ItineraryItem, stage types.Stage, at time.Time, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🗓️ 行程階段通知 [%s]</b>\n\n", stage.Label())
	fmt.Fprintf(&b, "案件: %s\n", html.EscapeString(c.DisplayName()))
	fmt.Fprintf(&b, "事件: <b>%s</b>\n", html.EscapeString(item.Event))
	fmt.Fprintf(&b, "時間: %s\n", types.FormatTime(at, loc))
	fmt.Fprintf(&b, "地點: %s\n", html.EscapeString(orDefault(item.Location, "未註明")))
	fmt.Fprintf(&b, "備註: %s", html.EscapeString(orDefault(item.Note, "無")))
	return b.String()
}

// ReminderMessage is the notification for a due reminder.
func ReminderMessage(r *types.Reminder, at time.Time, loc *time.Location) string {
	return "<b>🔔 自定義提醒</b>\n\n" +
		"詳情: " + html.EscapeString(r.Title()) + "\n" +
		"時間: " + types.FormatTime(at, loc) + "\n" +
		"內容: " + html.EscapeString(orDefault(r.Note, "無"))
}

// AdvanceHistory is the system history line written on auto-advance.
func AdvanceHistory(old types.Status) string {
	return fmt.Sprintf("系統自動通知：事故已滿 %d 日，已可申請初步分析研判表，狀態由「%s」自動轉為「%s」。",
		AutoAdvanceDays, old.Label(), types.StatusProcessing.Label())
}

// AdvanceMessage is the notification for a case that reached 30 days.
func AdvanceMessage(c *types.Case) string {
	return "<b>⚠️ " + advanceTitle + "</b>\n\n" +
		"案件: " + html.EscapeString(c.DisplayName()) + " (" + html.EscapeString(c.DisplayPlate()) + ")\n" +
		"詳情: 事故發生已滿 30 日，請申請初判表並更新案件。"
}

// TodayMessage lists today's events.
func TodayMessage(events []Event, loc *time.Location) string {
	if len(events) == 0 {
		return "☕ 今日尚無安排行程。"
	}
	var b strings.Builder
	b.WriteString("<b>📅 今日行程清單</b>\n\n")
	for _, ev := range events {
		fmt.Fprintf(&b, "• %s - %s：%s\n", ev.At.In(loc).Format("15:04"), html.EscapeString(ev.Client), html.EscapeString(ev.Event))
	}
	return b.String()
}

// PendingRemindersMessage lists reminders that have not fired.
func PendingRemindersMessage(pending []*types.Reminder, loc *time.Location) string {
	if len(pending) == 0 {
		return "✨ 目前沒有尚未通知的提醒。"
	}
	var b strings.Builder
	b.WriteString("<b>📝 待辦提醒清單</b>\n\n")
	for i, r := range pending {
		fmt.Fprintf(&b, "%d. %s\n", i+1, html.EscapeString(r.Title()))
		fmt.Fprintf(&b, "   時間: %s\n", html.EscapeString(reminderTime(r, loc)))
	}
	return b.String()
}

// DigestMessage renders the weekly digest.
func DigestMessage(d *Digest, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("<b>🗓️ 本週案件進度與行程匯總</b>\n\n")
	if len(d.Processing) > 0 {
		b.WriteString("<b>案件進度 (處理中)：</b>\n")
		for i, c := range d.Processing {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, html.EscapeString(c.DisplayName()), html.EscapeString(c.DisplayPlate()))
		}
		b.WriteString("\n")
	}
	if len(d.Events) > 0 {
		b.WriteString("<b>本週重要行程：</b>\n")
		for _, ev := range d.Events {
			at := ev.At.In(loc)
			fmt.Fprintf(&b, "• %s (%s) %s - %s：%s\n", at.Format("01/02"), weekdayLabels[at.Weekday()], at.Format("15:04"),
				html.EscapeString(ev.Client), html.EscapeString(ev.Event))
		}
		b.WriteString("\n")
	}
	b.WriteString("祝您本週工作順利！")
	return b.String()
}
