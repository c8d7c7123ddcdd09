package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/matt-steen/task-dashboard/pkg/auth"
	"github.com/matt-steen/task-dashboard/pkg/db"
	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/matt-steen/task-dashboard/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var due = time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)

func newApp(t *testing.T, opts ...server.Option) *fiber.App {
	t.Helper()

	database, err := db.NewDatabase(context.Background(), filepath.Join(t.TempDir(), "server.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	identity := auth.NewService(database, auth.Config{
		Token:       auth.TokenConfig{SecretKey: "test-secret", TTL: time.Hour, Issuer: "taskdash-test"},
		BcryptCost:  bcrypt.MinCost,
		AutoConfirm: true,
	})

	return server.New(database, identity, opts...)
}

func do(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

// signIn creates an account and returns its id and token.
func signIn(t *testing.T, app *fiber.App, email string) (string, string) {
	t.Helper()

	creds := server.CredentialsRequest{Email: email, Password: "password123"}

	status, _ := do(t, app, http.MethodPost, "/auth/signup", "", creds)
	require.Equal(t, http.StatusCreated, status)

	status, body := do(t, app, http.MethodPost, "/auth/signin", "", creds)
	require.Equal(t, http.StatusOK, status)

	var token server.TokenResponse
	require.NoError(t, json.Unmarshal(body, &token))

	return token.UserID, token.AccessToken
}

func createTask(t *testing.T, app *fiber.App, userID, token string, input model.TaskInput) model.Task {
	t.Helper()

	status, body := do(t, app, http.MethodPost, fmt.Sprintf("/users/%s/tasks", userID), token, input)
	require.Equal(t, http.StatusCreated, status, string(body))

	var task model.Task
	require.NoError(t, json.Unmarshal(body, &task))

	return task
}

func sampleInput() model.TaskInput {
	return model.TaskInput{
		Title:    "Write report",
		Category: model.CategoryWork,
		Priority: model.PriorityHigh,
		DueDate:  due,
		Tags:     []string{"q1", "finance", "q1"},
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	status, body := do(t, newApp(t), http.MethodGet, "/health", "", nil)
	assert.Equal(http.StatusOK, status)
	assert.JSONEq(`{"status":"ok"}`, string(body))
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	app := newApp(t)

	userID, token := signIn(t, app, "ada@example.com")

	status, body := do(t, app, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(http.StatusOK, status)

	var me server.MeResponse
	assert.Nil(json.Unmarshal(body, &me))
	assert.Equal(userID, me.UserID)
	assert.Equal("ada@example.com", me.Email)
	assert.False(me.CreatedAt.IsZero())

	status, _ = do(t, app, http.MethodPost, "/auth/signout", token, nil)
	assert.Equal(http.StatusNoContent, status)

	status, _ = do(t, app, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(http.StatusUnauthorized, status)
}

func TestAuthErrors(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	app := newApp(t)

	signIn(t, app, "ada@example.com")

	status, _ := do(t, app, http.MethodPost, "/auth/signup", "", server.CredentialsRequest{Email: "ada@example.com", Password: "password123"})
	assert.Equal(http.StatusConflict, status)

	status, _ = do(t, app, http.MethodPost, "/auth/signup", "", server.CredentialsRequest{Email: "bob@example.com", Password: "short"})
	assert.Equal(http.StatusBadRequest, status)

	status, body := do(t, app, http.MethodPost, "/auth/signin", "", server.CredentialsRequest{Email: "ada@example.com", Password: "nope-nope"})
	assert.Equal(http.StatusUnauthorized, status)

	var errResp server.ErrorResponse
	assert.Nil(json.Unmarshal(body, &errResp))
	assert.Equal("unauthorized", errResp.Error)
	assert.Equal(auth.ErrInvalidCredentials.Error(), errResp.Message)
}

func TestBearerRequired(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	app := newApp(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
	}

	for _, tt := range tests {
		status, _ := do(t, app, http.MethodGet, "/users/u1/tasks", tt.token, nil)
		assert.Equal(http.StatusUnauthorized, status, tt.name)
	}
}

func TestTaskLifecycle(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	app := newApp(t)

	userID, token := signIn(t, app, "ada@example.com")

	task := createTask(t, app, userID, token, sampleInput())
	assert.NotEmpty(task.ID)
	assert.Equal(userID, task.UserID)
	assert.Equal(model.StatusPending, task.Status)
	assert.Equal([]string{"q1", "finance"}, task.Tags)
	assert.Equal(task.CreatedAt, task.UpdatedAt)

	status, body := do(t, app, http.MethodGet, fmt.Sprintf("/users/%s/tasks", userID), token, nil)
	assert.Equal(http.StatusOK, status)

	var tasks []model.Task
	assert.Nil(json.Unmarshal(body, &tasks))
	assert.Len(tasks, 1)
	assert.Equal([]string{"q1", "finance"}, tasks[0].Tags)

	status, body = do(t, app, http.MethodPatch, "/tasks/"+task.ID, token, model.StatusPatch(model.StatusCompleted))
	assert.Equal(http.StatusOK, status)

	var updated model.Task
	assert.Nil(json.Unmarshal(body, &updated))
	assert.Equal(model.StatusCompleted, updated.Status)
	assert.Equal(task.Title, updated.Title)
	assert.False(updated.UpdatedAt.Before(task.UpdatedAt))

	status, _ = do(t, app, http.MethodDelete, "/tasks/"+task.ID, token, nil)
	assert.Equal(http.StatusNoContent, status)

	status, _ = do(t, app, http.MethodDelete, "/tasks/"+task.ID, token, nil)
	assert.Equal(http.StatusNotFound, status)
}

func TestServerStampsIDsAndTimes(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	created := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	current := created
	clock := func() time.Time { return current }

	app := newApp(t, server.WithClock(clock), server.WithIDs(func() string { return "task-1" }))
	userID, token := signIn(t, app, "ada@example.com")

	task := createTask(t, app, userID, token, sampleInput())
	assert.Equal("task-1", task.ID)
	assert.True(created.Equal(task.CreatedAt))
	assert.True(created.Equal(task.UpdatedAt))

	current = created.Add(time.Hour)

	status, body := do(t, app, http.MethodPatch, "/tasks/task-1", token, model.StatusPatch(model.StatusCompleted))
	require.Equal(t, http.StatusOK, status, string(body))

	var updated model.Task
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.True(created.Equal(updated.CreatedAt))
	assert.True(current.Equal(updated.UpdatedAt))

	// a second task with the same id is a conflict
	status, _ = do(t, app, http.MethodPost, fmt.Sprintf("/users/%s/tasks", userID), token, sampleInput())
	assert.Equal(http.StatusConflict, status)
}

func TestEmptyList(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	app := newApp(t)

	userID, token := signIn(t, app, "ada@example.com")

	status, body := do(t, app, http.MethodGet, fmt.Sprintf("/users/%s/tasks", userID), token, nil)
	assert.Equal(http.StatusOK, status)
	assert.JSONEq(`[]`, string(body))
}

func TestTaskValidation(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	app := newApp(t)

	userID, token := signIn(t, app, "ada@example.com")

	input := sampleInput()
	input.Title = "   "

	status, _ := do(t, app, http.MethodPost, fmt.Sprintf("/users/%s/tasks", userID), token, input)
	assert.Equal(http.StatusBadRequest, status)

	task := createTask(t, app, userID, token, sampleInput())

	status, _ = do(t, app, http.MethodPatch, "/tasks/"+task.ID, token, model.TaskPatch{})
	assert.Equal(http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPatch, "/tasks/"+task.ID, token, model.StatusPatch("blocked"))
	assert.Equal(http.StatusBadRequest, status)
}

func TestOtherUsersTasks(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	app := newApp(t)

	adaID, adaToken := signIn(t, app, "ada@example.com")
	_, bobToken := signIn(t, app, "bob@example.com")

	task := createTask(t, app, adaID, adaToken, sampleInput())

	status, _ := do(t, app, http.MethodGet, fmt.Sprintf("/users/%s/tasks", adaID), bobToken, nil)
	assert.Equal(http.StatusForbidden, status)

	status, _ = do(t, app, http.MethodPost, fmt.Sprintf("/users/%s/tasks", adaID), bobToken, sampleInput())
	assert.Equal(http.StatusForbidden, status)

	status, _ = do(t, app, http.MethodPatch, "/tasks/"+task.ID, bobToken, model.StatusPatch(model.StatusCompleted))
	assert.Equal(http.StatusNotFound, status)

	status, _ = do(t, app, http.MethodDelete, "/tasks/"+task.ID, bobToken, nil)
	assert.Equal(http.StatusNotFound, status)

	status, _ = do(t, app, http.MethodDelete, "/tasks/"+task.ID, adaToken, nil)
	assert.Equal(http.StatusNoContent, status)
}
