package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTask is wrapped by every task validation failure.
var ErrInvalidTask = errors.New("invalid task")

// Category groups tasks by area of life.
type Category string

// These constants refer to the categories supported by the app.
const (
	CategoryWork     Category = "work"
	CategoryStudy    Category = "study"
	CategoryPersonal Category = "personal"
	CategoryProject  Category = "project"
)

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{CategoryWork, CategoryStudy, CategoryPersonal, CategoryProject}
}

// Valid reports whether c is one of the supported categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}

	return false
}

// Priority orders tasks by importance.
type Priority string

// These constants refer to the priorities supported by the app.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities returns every priority from most to least important.
func Priorities() []Priority {
	return []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}
}

// Rank returns 1 for low up to 4 for urgent, and 0 for unknown values.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}

	return 0
}

// Valid reports whether p is one of the supported priorities.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Status is the lifecycle state of a task.
type Status string

// These constants refer to the statuses supported by the app.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted}
}

// Valid reports whether s is one of the supported statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusCompleted
}

// reminderLayout is the time-of-day format used by reminders.
const reminderLayout = "15:04"

// Reminder configures how and when the owner is reminded about a task.
type Reminder struct {
	Email bool   `json:"email"`
	SMS   bool   `json:"sms"`
	Time  string `json:"time"`
}

// Validate checks that the reminder time is a valid HH:MM time of day.
func (r Reminder) Validate() error {
	if _, err := time.Parse(reminderLayout, r.Time); err != nil {
		return fmt.Errorf("%w: reminder time %q is not HH:MM", ErrInvalidTask, r.Time)
	}

	return nil
}

// Task is a single unit of trackable work owned by one user.
type Task struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	DueDate     time.Time `json:"dueDate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	// Tags has set semantics; insertion order is kept for display.
	Tags      []string  `json:"tags,omitempty"`
	Reminders *Reminder `json:"reminders,omitempty"`
}

// Completed reports whether the task is done.
func (t Task) Completed() bool {
	return t.Status == StatusCompleted
}

// Overdue reports whether the task is not completed and its due date has passed.
func (t Task) Overdue(now time.Time) bool {
	return !t.Completed() && !t.DueDate.IsZero() && t.DueDate.Before(now)
}

// Clone returns a deep copy so callers can't mutate shared tag slices or reminders.
func (t Task) Clone() Task {
	clone := t

	if t.Tags != nil {
		clone.Tags = append([]string(nil), t.Tags...)
	}

	if t.Reminders != nil {
		reminder := *t.Reminders
		clone.Reminders = &reminder
	}

	return clone
}

// NormalizeTags trims tags, drops empties and duplicates, and keeps first-seen order.
func NormalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	normalized := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		if _, ok := seen[tag]; ok {
			continue
		}

		seen[tag] = struct{}{}
		normalized = append(normalized, tag)
	}

	return normalized
}

// TaskInput is the payload for creating a task. The id, owner and timestamps are
// assigned by the server.
type TaskInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status,omitempty"`
	DueDate     time.Time `json:"dueDate"`
	Tags        []string  `json:"tags,omitempty"`
	Reminders   *Reminder `json:"reminders,omitempty"`
}

// Validate checks the input, defaulting an empty status to pending.
func (in *TaskInput) Validate() error {
	if in.Status == "" {
		in.Status = StatusPending
	}

	if err := validateTitle(in.Title); err != nil {
		return err
	}

	if err := validateEnums(in.Category, in.Priority, in.Status); err != nil {
		return err
	}

	if in.DueDate.IsZero() {
		return fmt.Errorf("%w: due date is required", ErrInvalidTask)
	}

	if in.Reminders != nil {
		return in.Reminders.Validate()
	}

	return nil
}

// NewTask builds the task that the input describes for the given owner.
func (in TaskInput) NewTask(id, userID string, now time.Time) Task {
	task := Task{
		ID:          id,
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    in.Category,
		Priority:    in.Priority,
		Status:      in.Status,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tags:        NormalizeTags(in.Tags),
	}

	if in.Reminders != nil {
		reminder := *in.Reminders
		task.Reminders = &reminder
	}

	return task
}

// TaskPatch is a partial update; nil fields are left unchanged.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Category    *Category  `json:"category,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	Reminders   *Reminder  `json:"reminders,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.Priority == nil &&
		p.Status == nil && p.DueDate == nil && p.Tags == nil && p.Reminders == nil
}

// Validate checks every field that is present.
func (p TaskPatch) Validate() error {
	if p.Empty() {
		return fmt.Errorf("%w: nothing to update", ErrInvalidTask)
	}

	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}

	if p.Category != nil && !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidTask, *p.Category)
	}

	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, *p.Priority)
	}

	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, *p.Status)
	}

	if p.DueDate != nil && p.DueDate.IsZero() {
		return fmt.Errorf("%w: due date is required", ErrInvalidTask)
	}

	if p.Reminders != nil {
		return p.Reminders.Validate()
	}

	return nil
}

// Apply returns a copy of task with the patch applied and UpdatedAt set to now.
func (p TaskPatch) Apply(task Task, now time.Time) Task {
	updated := task.Clone()

	if p.Title != nil {
		updated.Title = strings.TrimSpace(*p.Title)
	}

	if p.Description != nil {
		updated.Description = *p.Description
	}

	if p.Category != nil {
		updated.Category = *p.Category
	}

	if p.Priority != nil {
		updated.Priority = *p.Priority
	}

	if p.Status != nil {
		updated.Status = *p.Status
	}

	if p.DueDate != nil {
		updated.DueDate = *p.DueDate
	}

	if p.Tags != nil {
		updated.Tags = NormalizeTags(*p.Tags)
	}

	if p.Reminders != nil {
		reminder := *p.Reminders
		updated.Reminders = &reminder
	}

	updated.UpdatedAt = now

	return updated
}

// StatusPatch is shorthand for a patch that only changes the status.
func StatusPatch(status Status) TaskPatch {
	return TaskPatch{Status: &status}
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}

	return nil
}

func validateEnums(category Category, priority Priority, status Status) error {
	if !category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidTask, category)
	}

	if !priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, priority)
	}

	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, status)
	}

	return nil
}
