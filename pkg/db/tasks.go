package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/matt-steen/task-dashboard/pkg/model"
)

const taskColumns = `id, user_id, title, description, category, priority, status, due_datetime,
	reminder_email, reminder_sms, reminder_time, created_datetime, updated_datetime`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (model.Task, error) {
	var (
		task                  model.Task
		due, created, updated string
		remEmail, remSMS      sql.NullBool
		remTime               sql.NullString
	)

	err := row.Scan(&task.ID, &task.UserID, &task.Title, &task.Description, &task.Category, &task.Priority,
		&task.Status, &due, &remEmail, &remSMS, &remTime, &created, &updated)
	if err != nil {
		return model.Task{}, err
	}

	if task.DueDate, err = parseTime(due); err != nil {
		return model.Task{}, err
	}

	if task.CreatedAt, err = parseTime(created); err != nil {
		return model.Task{}, err
	}

	if task.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Task{}, err
	}

	if remTime.Valid {
		task.Reminders = &model.Reminder{Email: remEmail.Bool, SMS: remSMS.Bool, Time: remTime.String}
	}

	return task, nil
}

// ListTasks loads every task owned by the user, oldest first, with their tags.
func (d *Database) ListTasks(ctx context.Context, userID string) ([]model.Task, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM task WHERE user_id = $1 ORDER BY created_datetime, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	index := map[string]int{}

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning task: %w", err)
		}

		index[task.ID] = len(tasks)
		tasks = append(tasks, task)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning tasks: %w", err)
	}

	if err := d.loadUserTags(ctx, userID, tasks, index); err != nil {
		return nil, err
	}

	return tasks, nil
}

func (d *Database) loadUserTags(ctx context.Context, userID string, tasks []model.Task, index map[string]int) error {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT tt.task_id, tt.tag
		   FROM task_tag tt
		   JOIN task t ON t.id = tt.task_id
		  WHERE t.user_id = $1
		  ORDER BY tt.task_id, tt.position`, userID)
	if err != nil {
		return fmt.Errorf("error loading task tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, tag string

		if err := rows.Scan(&taskID, &tag); err != nil {
			return fmt.Errorf("error scanning task tag: %w", err)
		}

		if i, ok := index[taskID]; ok {
			tasks[i].Tags = append(tasks[i].Tags, tag)
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error scanning task tags: %w", err)
	}

	return nil
}

// GetTask loads a single task with its tags.
func (d *Database) GetTask(ctx context.Context, id string) (model.Task, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM task WHERE id = $1`, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	if err != nil {
		return model.Task{}, fmt.Errorf("error loading task %s: %w", id, err)
	}

	rows, err := d.conn.QueryContext(ctx, `SELECT tag FROM task_tag WHERE task_id = $1 ORDER BY position`, id)
	if err != nil {
		return model.Task{}, fmt.Errorf("error loading tags for task %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var tag string

		if err := rows.Scan(&tag); err != nil {
			return model.Task{}, fmt.Errorf("error scanning tag for task %s: %w", id, err)
		}

		task.Tags = append(task.Tags, tag)
	}

	if err = rows.Err(); err != nil {
		return model.Task{}, fmt.Errorf("error scanning tags for task %s: %w", id, err)
	}

	return task, nil
}

// InsertTask stores a new task and its tags.
func (d *Database) InsertTask(ctx context.Context, task model.Task) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		remEmail, remSMS, remTime := reminderColumns(task.Reminders)

		_, err := tx.ExecContext(ctx,
			`INSERT INTO task (`+taskColumns+`)
			     VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			task.ID, task.UserID, task.Title, task.Description, task.Category, task.Priority, task.Status,
			formatTime(task.DueDate), remEmail, remSMS, remTime,
			formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("task %s: %w", task.ID, ErrDuplicate)
		}

		if err != nil {
			return fmt.Errorf("error adding task '%s': %w", task.Title, err)
		}

		return insertTags(ctx, tx, task.ID, task.Tags)
	})
}

// UpdateTask overwrites every mutable column of an existing task and replaces its tags.
func (d *Database) UpdateTask(ctx context.Context, task model.Task) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		remEmail, remSMS, remTime := reminderColumns(task.Reminders)

		result, err := tx.ExecContext(ctx,
			`UPDATE task
			    SET title = $1, description = $2, category = $3, priority = $4, status = $5,
			        due_datetime = $6, reminder_email = $7, reminder_sms = $8, reminder_time = $9,
			        updated_datetime = $10
			  WHERE id = $11`,
			task.Title, task.Description, task.Category, task.Priority, task.Status,
			formatTime(task.DueDate), remEmail, remSMS, remTime, formatTime(task.UpdatedAt), task.ID,
		)
		if err != nil {
			return fmt.Errorf("error updating task '%s': %w", task.Title, err)
		}

		if err := expectOneRow(result, "task "+task.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM task_tag WHERE task_id = $1`, task.ID); err != nil {
			return fmt.Errorf("error clearing tags for task '%s': %w", task.Title, err)
		}

		return insertTags(ctx, tx, task.ID, task.Tags)
	})
}

// DeleteTask removes a task; its tags go with it.
func (d *Database) DeleteTask(ctx context.Context, id string) error {
	result, err := d.conn.ExecContext(ctx, `DELETE FROM task WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting task %s: %w", id, err)
	}

	return expectOneRow(result, "task "+id)
}

func insertTags(ctx context.Context, tx *sql.Tx, taskID string, tags []string) error {
	for position, tag := range model.NormalizeTags(tags) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO task_tag (task_id, tag, position) VALUES ($1, $2, $3)`, taskID, tag, position)
		if err != nil {
			return fmt.Errorf("error adding tag '%s' to task %s: %w", tag, taskID, err)
		}
	}

	return nil
}

func reminderColumns(r *model.Reminder) (sql.NullBool, sql.NullBool, sql.NullString) {
	if r == nil {
		return sql.NullBool{}, sql.NullBool{}, sql.NullString{}
	}

	return sql.NullBool{Bool: r.Email, Valid: true},
		sql.NullBool{Bool: r.SMS, Valid: true},
		sql.NullString{String: r.Time, Valid: true}
}

func expectOneRow(result sql.Result, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking rows affected for %s: %w", what, err)
	}

	if affected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}

	return nil
}
