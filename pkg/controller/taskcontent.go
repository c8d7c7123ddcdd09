package controller

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/rivo/tview"
)

const (
	titleRatio = 3
	dueLayout  = "2006-01-02 15:04"
)

// tagColors is a list of colors for tags to alternate through so that tasks with common tags are easier to spot.
func tagColors() []string {
	return []string{
		"#FF0000",
		"#00FF00",
		"#5F87FF",
		"#FFFF00",
		"#FF00FF",
		"#00FFFF",
		"#AA0000",
		"#00AA00",
		"#AAAA00",
		"#AA00AA",
		"#00AAAA",
	}
}

func priorityColor(p model.Priority) tcell.Color {
	switch p {
	case model.PriorityUrgent:
		return tcell.ColorRed
	case model.PriorityHigh:
		return tcell.ColorOrange
	case model.PriorityMedium:
		return tcell.ColorYellow
	default:
		return tcell.ColorGreen
	}
}

// tagColor picks a stable color for a tag.
func tagColor(tag string) string {
	colors := tagColors()

	sum := 0
	for _, r := range tag {
		sum += int(r)
	}

	return colors[sum%len(colors)]
}

var columns = []struct {
	name      string
	expansion int
}{
	{"title", titleRatio},
	{"category", 1},
	{"priority", 1},
	{"status", 1},
	{"due", 2},
	{"tags", 2},
}

// TaskContent implements tview.TableContent over one view of the task collection.
type TaskContent struct {
	tview.TableContentReadOnly
	tasks []model.Task
	now   time.Time
}

// NewTaskContent creates the content for tasks as of now.
func NewTaskContent(tasks []model.Task, now time.Time) *TaskContent {
	return &TaskContent{tasks: tasks, now: now}
}

// TaskAt returns the task shown on the given table row.
func (t *TaskContent) TaskAt(row int) (model.Task, bool) {
	// adjust for the header row
	if idx := row - 1; idx >= 0 && idx < len(t.tasks) {
		return t.tasks[idx], true
	}

	return model.Task{}, false
}

// RowOf returns the table row showing the task with the given id, or -1.
func (t *TaskContent) RowOf(id string) int {
	for i, task := range t.tasks {
		if task.ID == id {
			return i + 1
		}
	}

	return -1
}

// GetCell returns the cell at the given position or nil if no cell.
func (t *TaskContent) GetCell(row, col int) *tview.TableCell {
	if col < 0 || col >= len(columns) {
		return nil
	}

	if row == 0 {
		return tview.NewTableCell(columns[col].name).SetExpansion(columns[col].expansion).
			SetTextColor(tcell.ColorYellow).SetSelectable(false)
	}

	task, ok := t.TaskAt(row)
	if !ok {
		return nil
	}

	cell := tview.NewTableCell("").SetExpansion(columns[col].expansion)

	switch col {
	case 0:
		cell.SetText(task.Title).SetReference(task.ID)
	case 1:
		cell.SetText(string(task.Category))
	case 2:
		cell.SetText(string(task.Priority)).SetTextColor(priorityColor(task.Priority))
	case 3:
		cell.SetText(string(task.Status))

		if task.Completed() {
			cell.SetTextColor(tcell.ColorGray)
		}
	case 4:
		cell.SetText(formatDue(task, t.now))

		if task.Overdue(t.now) && !task.Completed() {
			cell.SetTextColor(tcell.ColorRed)
		}
	case 5:
		cell.SetText(formatTags(task.Tags))
	}

	return cell
}

// GetRowCount returns the number of rows in the table.
func (t *TaskContent) GetRowCount() int {
	return len(t.tasks) + 1
}

// GetColumnCount returns the number of columns in the table.
func (t *TaskContent) GetColumnCount() int {
	return len(columns)
}

func formatDue(task model.Task, now time.Time) string {
	if task.DueDate.IsZero() {
		return "-"
	}

	return task.DueDate.In(now.Location()).Format(dueLayout)
}

func formatTags(tags []string) string {
	parts := make([]string, 0, len(tags))

	for _, tag := range tags {
		parts = append(parts, fmt.Sprintf("[%s]%s", tagColor(tag), tag))
	}

	return strings.Join(parts, "[white], ")
}
