package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/matt-steen/task-dashboard/pkg/model"
)

// Upcoming returns up to n unfinished tasks due after now, soonest first.
func Upcoming(tasks []model.Task, now time.Time, n int) []model.Task {
	upcoming := filter(tasks, func(t model.Task) bool {
		return !t.Completed() && t.DueDate.After(now)
	})

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].DueDate.Before(upcoming[j].DueDate)
	})

	return limit(upcoming, n)
}

// Recent returns up to n tasks, newest first.
func Recent(tasks []model.Task, n int) []model.Task {
	recent := filter(tasks, func(model.Task) bool { return true })

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})

	return limit(recent, n)
}

// CategoryProgress is the completion share within one category.
type CategoryProgress struct {
	Category   model.Category `json:"category"`
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	Percentage float64        `json:"percentage"`
}

// ByCategory reports progress for every category, including empty ones.
func ByCategory(tasks []model.Task) []CategoryProgress {
	index := map[model.Category]int{}
	progress := make([]CategoryProgress, 0, len(model.Categories()))

	for i, category := range model.Categories() {
		index[category] = i
		progress = append(progress, CategoryProgress{Category: category})
	}

	for _, task := range tasks {
		i, ok := index[task.Category]
		if !ok {
			continue
		}

		progress[i].Total++

		if task.Completed() {
			progress[i].Completed++
		}
	}

	for i := range progress {
		if progress[i].Total > 0 {
			progress[i].Percentage = float64(progress[i].Completed) / float64(progress[i].Total) * 100
		}
	}

	return progress
}

// PriorityBreakdown counts tasks for one priority.
type PriorityBreakdown struct {
	Priority  model.Priority `json:"priority"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
}

// ByPriority reports counts for every priority, most important first.
func ByPriority(tasks []model.Task) []PriorityBreakdown {
	breakdown := make([]PriorityBreakdown, 0, len(model.Priorities()))

	for _, priority := range model.Priorities() {
		b := PriorityBreakdown{Priority: priority}

		for _, task := range tasks {
			if task.Priority != priority {
				continue
			}

			b.Total++

			if task.Completed() {
				b.Completed++
			}
		}

		breakdown = append(breakdown, b)
	}

	return breakdown
}

// ImportantTasks splits unfinished high and urgent tasks into disjoint groups.
// A task that is overdue is only listed under Overdue.
type ImportantTasks struct {
	Overdue []model.Task
	Urgent  []model.Task
	High    []model.Task
}

// Important groups the unfinished high-priority work.
func Important(tasks []model.Task, now time.Time) ImportantTasks {
	var important ImportantTasks

	for _, task := range tasks {
		if task.Completed() {
			continue
		}

		switch {
		case task.Priority != model.PriorityUrgent && task.Priority != model.PriorityHigh:
			continue
		case task.Overdue(now):
			important.Overdue = append(important.Overdue, task.Clone())
		case task.Priority == model.PriorityUrgent:
			important.Urgent = append(important.Urgent, task.Clone())
		default:
			important.High = append(important.High, task.Clone())
		}
	}

	return important
}

// ArchiveSort selects the ordering of archived tasks.
type ArchiveSort string

// These constants refer to the supported archive orderings.
const (
	SortByDate     ArchiveSort = "date"
	SortByCategory ArchiveSort = "category"
	SortByPriority ArchiveSort = "priority"
)

// ArchiveQuery filters and orders completed tasks. Zero values match everything.
type ArchiveQuery struct {
	Search   string
	Category model.Category
	SortBy   ArchiveSort
	Location *time.Location
}

// ArchiveGroup holds the archived tasks completed on one calendar date.
type ArchiveGroup struct {
	Date  string
	Tasks []model.Task
}

// Archive returns completed tasks matching q, grouped by completion date, newest date first.
func Archive(tasks []model.Task, q ArchiveQuery) []ArchiveGroup {
	loc := q.Location
	if loc == nil {
		loc = time.Local
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))

	archived := filter(tasks, func(t model.Task) bool {
		if !t.Completed() {
			return false
		}

		if q.Category != "" && t.Category != q.Category {
			return false
		}

		return search == "" ||
			strings.Contains(strings.ToLower(t.Title), search) ||
			strings.Contains(strings.ToLower(t.Description), search)
	})

	sort.SliceStable(archived, func(i, j int) bool {
		a, b := archived[i], archived[j]

		switch q.SortBy {
		case SortByCategory:
			return a.Category < b.Category
		case SortByPriority:
			return a.Priority.Rank() > b.Priority.Rank()
		default:
			return a.UpdatedAt.After(b.UpdatedAt)
		}
	})

	byDate := map[string]int{}
	groups := []ArchiveGroup{}

	for _, task := range archived {
		date := task.UpdatedAt.In(loc).Format(DateLayout)

		i, ok := byDate[date]
		if !ok {
			i = len(groups)
			byDate[date] = i
			groups = append(groups, ArchiveGroup{Date: date})
		}

		groups[i].Tasks = append(groups[i].Tasks, task)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Date > groups[j].Date
	})

	return groups
}

// OnDate returns the tasks due on day's calendar date in day's location.
func OnDate(tasks []model.Task, day time.Time) []model.Task {
	key := day.Format(DateLayout)

	return filter(tasks, func(t model.Task) bool {
		return !t.DueDate.IsZero() && t.DueDate.In(day.Location()).Format(DateLayout) == key
	})
}

// CountByStatus counts tasks per status; every status is present in the result.
func CountByStatus(tasks []model.Task) map[model.Status]int {
	counts := make(map[model.Status]int, len(model.Statuses()))

	for _, status := range model.Statuses() {
		counts[status] = 0
	}

	for _, task := range tasks {
		counts[task.Status]++
	}

	return counts
}

func filter(tasks []model.Task, keep func(model.Task) bool) []model.Task {
	kept := []model.Task{}

	for _, task := range tasks {
		if keep(task) {
			kept = append(kept, task.Clone())
		}
	}

	return kept
}

func limit(tasks []model.Task, n int) []model.Task {
	if n >= 0 && len(tasks) > n {
		return tasks[:n]
	}

	return tasks
}
