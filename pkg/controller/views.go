package controller

import (
	"time"

	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/matt-steen/task-dashboard/pkg/stats"
)

// view is one way of listing the collection. Views sort on read and never change the
// store's order.
type view struct {
	name  string
	key   rune
	tasks func(tasks []model.Task, now time.Time) []model.Task
}

func views() []view {
	return []view{
		{name: "All", key: 'A', tasks: func(tasks []model.Task, _ time.Time) []model.Task {
			return stats.Recent(tasks, -1)
		}},
		{name: "Pending", key: 'P', tasks: byStatus(model.StatusPending)},
		{name: "In Progress", key: 'I', tasks: byStatus(model.StatusInProgress)},
		{name: "Upcoming", key: 'U', tasks: func(tasks []model.Task, now time.Time) []model.Task {
			return stats.Upcoming(tasks, now, -1)
		}},
		{name: "Important", key: 'M', tasks: important},
		{name: "Archive", key: 'C', tasks: archive},
	}
}

func byStatus(status model.Status) func([]model.Task, time.Time) []model.Task {
	return func(tasks []model.Task, _ time.Time) []model.Task {
		var out []model.Task

		for _, task := range stats.Recent(tasks, -1) {
			if task.Status == status {
				out = append(out, task)
			}
		}

		return out
	}
}

func important(tasks []model.Task, now time.Time) []model.Task {
	groups := stats.Important(tasks, now)

	out := make([]model.Task, 0, len(groups.Overdue)+len(groups.Urgent)+len(groups.High))
	out = append(out, groups.Overdue...)
	out = append(out, groups.Urgent...)
	out = append(out, groups.High...)

	return out
}

func archive(tasks []model.Task, now time.Time) []model.Task {
	var out []model.Task

	for _, group := range stats.Archive(tasks, stats.ArchiveQuery{SortBy: stats.SortByDate, Location: now.Location()}) {
		out = append(out, group.Tasks...)
	}

	return out
}
