package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/matt-steen/task-dashboard/pkg/model"
)

// TokenSource supplies the bearer token for task requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Tasks implements the task store's remote collaborator.
type Tasks struct {
	client *Client
	tokens TokenSource
}

// NewTasks creates a Tasks client authenticated by tokens.
func NewTasks(c *Client, tokens TokenSource) *Tasks {
	return &Tasks{client: c, tokens: tokens}
}

// List returns every task owned by userID.
func (t *Tasks) List(ctx context.Context, userID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := t.call(ctx, http.MethodGet, userPath(userID), nil, &tasks); err != nil {
		return nil, err
	}

	return tasks, nil
}

// Create stores a new task for userID and returns the server's record.
func (t *Tasks) Create(ctx context.Context, userID string, input model.TaskInput) (model.Task, error) {
	var task model.Task
	if err := t.call(ctx, http.MethodPost, userPath(userID), input, &task); err != nil {
		return model.Task{}, err
	}

	return task, nil
}

// Update applies patch to a task and returns the server's record.
func (t *Tasks) Update(ctx context.Context, taskID string, patch model.TaskPatch) (model.Task, error) {
	var task model.Task
	if err := t.call(ctx, http.MethodPatch, taskPath(taskID), patch, &task); err != nil {
		return model.Task{}, err
	}

	return task, nil
}

// Delete removes a task.
func (t *Tasks) Delete(ctx context.Context, taskID string) error {
	return t.call(ctx, http.MethodDelete, taskPath(taskID), nil, nil)
}

func (t *Tasks) call(ctx context.Context, method, path string, in, out interface{}) error {
	token, err := t.tokens.Token(ctx)
	if err != nil {
		return err
	}

	return t.client.do(ctx, method, path, token, in, out)
}

func userPath(userID string) string {
	return "/users/" + url.PathEscape(userID) + "/tasks"
}

func taskPath(taskID string) string {
	return "/tasks/" + url.PathEscape(taskID)
}
