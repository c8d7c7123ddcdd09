package db_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matt-steen/task-dashboard/pkg/db"
	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/stretchr/testify/assert"
)

var created = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func getDB(t *testing.T, assert *assert.Assertions) *db.Database {
	t.Helper()

	tempFile, err := os.CreateTemp(t.TempDir(), "test_new_database*.sqlite")
	assert.Nil(err)

	database, err := db.NewDatabase(context.Background(), tempFile.Name())
	assert.NotNil(database)
	assert.Nil(err)

	t.Cleanup(func() { database.Close() })

	return database
}

func addUser(assert *assert.Assertions, database *db.Database, id string) db.User {
	user := db.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    created,
	}

	assert.Nil(database.CreateUser(context.Background(), user))

	return user
}

func newTask(id, userID string) model.Task {
	return model.Task{
		ID:          id,
		UserID:      userID,
		Title:       "do some work",
		Description: "here are some details of what the work is or where to find out more",
		Category:    model.CategoryWork,
		Priority:    model.PriorityHigh,
		Status:      model.StatusPending,
		DueDate:     created.Add(48 * time.Hour),
		CreatedAt:   created,
		UpdatedAt:   created,
		Tags:        []string{"react", "aws", "project"},
		Reminders:   &model.Reminder{Email: true, Time: "09:00"},
	}
}

func TestNewDatabaseBadFile(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database, err := db.NewDatabase(context.Background(), "/alwfkjasfd/asdflkjdsal.sqlite")
	assert.Nil(database)
	assert.NotNil(err)
	assert.Contains(err.Error(), "error running base sql")
}

func TestNewDatabaseIdempotent(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	filename := filepath.Join(t.TempDir(), "idempotent.sqlite")

	database, err := db.NewDatabase(context.Background(), filename)
	assert.Nil(err)
	addUser(assert, database, "u1")
	assert.Nil(database.InsertTask(context.Background(), newTask("t1", "u1")))
	assert.Nil(database.Close())

	database2, err := db.NewDatabase(context.Background(), filename)
	assert.Nil(err)

	defer database2.Close()

	tasks, err := database2.ListTasks(context.Background(), "u1")
	assert.Nil(err)
	assert.Len(tasks, 1)
}

func TestInsertAndListTasks(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database := getDB(t, assert)
	addUser(assert, database, "u1")
	addUser(assert, database, "u2")

	first := newTask("t1", "u1")
	second := newTask("t2", "u1")
	second.CreatedAt = created.Add(time.Hour)
	second.Tags = nil
	second.Reminders = nil

	assert.Nil(database.InsertTask(context.Background(), second))
	assert.Nil(database.InsertTask(context.Background(), first))
	assert.Nil(database.InsertTask(context.Background(), newTask("other", "u2")))

	tasks, err := database.ListTasks(context.Background(), "u1")
	assert.Nil(err)
	assert.Len(tasks, 2)

	// oldest first, with tags in insertion order
	assert.Equal("t1", tasks[0].ID)
	assert.Equal([]string{"react", "aws", "project"}, tasks[0].Tags)
	assert.Equal(&model.Reminder{Email: true, Time: "09:00"}, tasks[0].Reminders)
	assert.True(first.DueDate.Equal(tasks[0].DueDate))
	assert.Equal("t2", tasks[1].ID)
	assert.Nil(tasks[1].Tags)
	assert.Nil(tasks[1].Reminders)
}

func TestInsertTaskTwice(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database := getDB(t, assert)
	addUser(assert, database, "u1")

	assert.Nil(database.InsertTask(context.Background(), newTask("t1", "u1")))

	err := database.InsertTask(context.Background(), newTask("t1", "u1"))
	assert.ErrorIs(err, db.ErrDuplicate)
}

func TestInsertTaskUnknownUser(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database := getDB(t, assert)

	assert.NotNil(database.InsertTask(context.Background(), newTask("t1", "ghost")))
}

func TestUpdateTaskReplacesTags(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database := getDB(t, assert)
	addUser(assert, database, "u1")

	task := newTask("t1", "u1")
	assert.Nil(database.InsertTask(context.Background(), task))

	task.Status = model.StatusCompleted
	task.Tags = []string{"aws", "done"}
	task.UpdatedAt = created.Add(time.Hour)
	assert.Nil(database.UpdateTask(context.Background(), task))

	stored, err := database.GetTask(context.Background(), "t1")
	assert.Nil(err)
	assert.Equal(model.StatusCompleted, stored.Status)
	assert.Equal([]string{"aws", "done"}, stored.Tags)
	assert.True(task.UpdatedAt.Equal(stored.UpdatedAt))
	assert.True(created.Equal(stored.CreatedAt))
}

func TestUpdateMissingTask(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database := getDB(t, assert)

	assert.ErrorIs(database.UpdateTask(context.Background(), newTask("nope", "u1")), db.ErrNotFound)
}

func TestListTasksOrdersWithinASecond(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database := getDB(t, assert)
	addUser(assert, database, "u1")

	later := newTask("a", "u1")
	later.CreatedAt = created.Add(500 * time.Millisecond)
	earlier := newTask("b", "u1")

	assert.Nil(database.InsertTask(context.Background(), later))
	assert.Nil(database.InsertTask(context.Background(), earlier))

	tasks, err := database.ListTasks(context.Background(), "u1")
	assert.Nil(err)

	if assert.Len(tasks, 2) {
		assert.Equal("b", tasks[0].ID)
		assert.Equal("a", tasks[1].ID)
		assert.True(later.CreatedAt.Equal(tasks[1].CreatedAt))
	}
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database := getDB(t, assert)
	addUser(assert, database, "u1")
	assert.Nil(database.InsertTask(context.Background(), newTask("t1", "u1")))

	assert.Nil(database.DeleteTask(context.Background(), "t1"))
	assert.ErrorIs(database.DeleteTask(context.Background(), "t1"), db.ErrNotFound)

	_, err := database.GetTask(context.Background(), "t1")
	assert.ErrorIs(err, db.ErrNotFound)
}

func TestUsers(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database := getDB(t, assert)
	user := addUser(assert, database, "u1")

	err := database.CreateUser(context.Background(), db.User{ID: "u2", Email: user.Email, CreatedAt: created})
	assert.ErrorIs(err, db.ErrDuplicate)

	loaded, err := database.UserByEmail(context.Background(), user.Email)
	assert.Nil(err)
	assert.Equal(user.ID, loaded.ID)
	assert.False(loaded.Confirmed)

	assert.Nil(database.ConfirmUser(context.Background(), user.ID))

	loaded, err = database.UserByID(context.Background(), user.ID)
	assert.Nil(err)
	assert.True(loaded.Confirmed)

	_, err = database.UserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(err, db.ErrNotFound)
}

func TestRevokedTokens(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database := getDB(t, assert)

	revoked, err := database.TokenRevoked(context.Background(), "jti-1")
	assert.Nil(err)
	assert.False(revoked)

	assert.Nil(database.RevokeToken(context.Background(), "jti-1", created.Add(time.Hour)))
	assert.Nil(database.RevokeToken(context.Background(), "jti-1", created.Add(time.Hour)))

	revoked, err = database.TokenRevoked(context.Background(), "jti-1")
	assert.Nil(err)
	assert.True(revoked)

	purged, err := database.PurgeExpiredTokens(context.Background(), created.Add(2*time.Hour))
	assert.Nil(err)
	assert.Equal(int64(1), purged)

	// expiry half a second past the hour has not passed on the hour
	assert.Nil(database.RevokeToken(context.Background(), "jti-2", created.Add(3*time.Hour+500*time.Millisecond)))

	purged, err = database.PurgeExpiredTokens(context.Background(), created.Add(3*time.Hour))
	assert.Nil(err)
	assert.Equal(int64(0), purged)
}
