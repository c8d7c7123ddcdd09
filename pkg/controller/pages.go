package controller

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/task-dashboard/pkg/stats"
	"github.com/matt-steen/task-dashboard/pkg/store"
	"github.com/rivo/tview"
)

func (c *Controller) getTasksGrid() *tview.Grid {
	c.header = tview.NewTextView().SetDynamicColors(true)
	c.header.SetScrollable(false)

	c.shortcuts = c.getShortcutsTable()

	c.table = tview.NewTable().SetBorders(false)
	c.table.SetContent(c.content)
	c.table.SetSelectable(true, false).SetFixed(1, 0)
	c.table.SetSelectionChangedFunc(c.setCurrentRow)

	c.statusLine = tview.NewTextView().SetDynamicColors(true)

	grid := tview.NewGrid().SetBorders(true).SetRows(4, 0, 0, 1)

	grid.AddItem(c.header, 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.shortcuts, 1, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.table, 2, 0, 1, 1, 0, 0, true)
	grid.AddItem(c.statusLine, 3, 0, 1, 1, 0, 0, false)

	return grid
}

// getShortcutsTable lists the keyboard shortcuts in 3 columns: misc shortcuts, "Show <view>"
// shortcuts, and "Mark <status>" shortcuts. All three columns are sorted alphabetically.
func (c *Controller) getShortcutsTable() *tview.Table {
	table := tview.NewTable().SetBorders(false).SetSelectable(false, false)

	columns := shortcutColumns(c.events)

	for col, texts := range columns {
		for row, text := range texts {
			table.SetCell(row, col, tview.NewTableCell(text).SetExpansion(1))
		}
	}

	return table
}

func shortcutColumns(events map[rune]KeyEvent) [3][]string {
	var columns [3][]string

	for key, event := range events {
		text := fmt.Sprintf("[orange]<%c>[white] %s", key, event.Description)

		switch {
		case strings.HasPrefix(event.Description, "Show"):
			columns[1] = append(columns[1], text)
		case strings.HasPrefix(event.Description, "Mark"):
			columns[2] = append(columns[2], text)
		default:
			columns[0] = append(columns[0], text)
		}
	}

	for col := range columns {
		sort.Strings(columns[col])
	}

	return columns
}

// formatHeader summarizes the snapshot: counts, the weekly progress and per-category completion.
func formatHeader(snapshot store.Snapshot, viewName string, now time.Time) string {
	if snapshot.UserID == "" {
		return "[yellow]not signed in"
	}

	d := snapshot.Stats

	var b strings.Builder

	fmt.Fprintf(&b, "[yellow]%s", viewName)

	if snapshot.Loading {
		b.WriteString(" [gray](loading...)")
	}

	fmt.Fprintf(&b, "\n[white]total [green]%d[white]  completed [green]%d[white]  pending [green]%d[white]  overdue [red]%d[white]  rate [green]%.0f%%",
		d.TotalTasks, d.CompletedTasks, d.PendingTasks, d.OverdueTasks, d.CompletionRate)

	b.WriteString("\n[white]week ")
	b.WriteString(formatWeekly(d.WeeklyProgress, now))

	b.WriteString("\n[white]")

	categories := stats.ByCategory(snapshot.Tasks)

	parts := make([]string, 0, len(categories))
	for _, cp := range categories {
		parts = append(parts, fmt.Sprintf("%s %d/%d", cp.Category, cp.Completed, cp.Total))
	}

	b.WriteString(strings.Join(parts, "  "))

	return b.String()
}

// formatWeekly renders one "weekday done/created" entry per bucket; today is highlighted.
func formatWeekly(days []stats.DayProgress, now time.Time) string {
	today := now.Format(stats.DateLayout)
	parts := make([]string, 0, len(days))

	for _, day := range days {
		label := day.Date

		if t, err := time.ParseInLocation(stats.DateLayout, day.Date, now.Location()); err == nil {
			label = t.Weekday().String()[:3]
		}

		color := "white"
		if day.Date == today {
			color = "yellow"
		}

		parts = append(parts, fmt.Sprintf("[%s]%s %d/%d", color, label, day.Completed, day.Created))
	}

	return strings.Join(parts, " ")
}

func (c *Controller) formHeader(title string) *tview.Table {
	table := tview.NewTable().SetBorders(false).SetSelectable(false, false)
	table.SetCell(0, 0, tview.NewTableCell(fmt.Sprintf("[yellow]%s", title)))
	table.SetCell(1, 0, tview.NewTableCell(fmt.Sprintf("[orange]<%s>[white] Back", tcell.KeyNames[tcell.KeyEscape])))

	return table
}
