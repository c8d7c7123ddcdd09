// Package stats derives dashboard figures from a task collection. Everything here is a
// pure function of its inputs; nothing is cached or patched incrementally.
package stats

import (
	"time"

	"github.com/matt-steen/task-dashboard/pkg/model"
)

// DateLayout is the calendar date format used for progress buckets.
const DateLayout = "2006-01-02"

// WeekDays is the number of buckets in the rolling progress window.
const WeekDays = 7

// DayProgress is one bucket of the rolling weekly window.
type DayProgress struct {
	Date      string `json:"date"`
	Completed int    `json:"completed"`
	Created   int    `json:"created"`
}

// Dashboard is the aggregate shown on the dashboard.
type Dashboard struct {
	TotalTasks     int           `json:"totalTasks"`
	CompletedTasks int           `json:"completedTasks"`
	PendingTasks   int           `json:"pendingTasks"`
	OverdueTasks   int           `json:"overdueTasks"`
	CompletionRate float64       `json:"completionRate"`
	WeeklyProgress []DayProgress `json:"weeklyProgress"`
}

// Compute derives the dashboard for tasks as of now. Calendar dates are taken in
// now's location, and task timestamps are converted into it before bucketing.
func Compute(tasks []model.Task, now time.Time) Dashboard {
	dash := Dashboard{TotalTasks: len(tasks)}

	loc := now.Location()
	completedOn := make(map[string]int, WeekDays)
	createdOn := make(map[string]int, WeekDays)

	for _, task := range tasks {
		if task.Completed() {
			dash.CompletedTasks++
			completedOn[task.UpdatedAt.In(loc).Format(DateLayout)]++
		} else {
			dash.PendingTasks++

			if task.Overdue(now) {
				dash.OverdueTasks++
			}
		}

		createdOn[task.CreatedAt.In(loc).Format(DateLayout)]++
	}

	if dash.TotalTasks > 0 {
		dash.CompletionRate = float64(dash.CompletedTasks) / float64(dash.TotalTasks) * 100
	}

	dash.WeeklyProgress = make([]DayProgress, 0, WeekDays)

	for _, day := range Window(now) {
		key := day.Format(DateLayout)
		dash.WeeklyProgress = append(dash.WeeklyProgress, DayProgress{
			Date:      key,
			Completed: completedOn[key],
			Created:   createdOn[key],
		})
	}

	return dash
}

// Window returns midnight of each of the last WeekDays calendar days ending today,
// oldest first, in now's location.
func Window(now time.Time) []time.Time {
	year, month, day := now.Date()
	days := make([]time.Time, 0, WeekDays)

	for offset := WeekDays - 1; offset >= 0; offset-- {
		days = append(days, time.Date(year, month, day-offset, 0, 0, 0, 0, now.Location()))
	}

	return days
}
