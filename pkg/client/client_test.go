package client_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/matt-steen/task-dashboard/pkg/auth"
	"github.com/matt-steen/task-dashboard/pkg/client"
	"github.com/matt-steen/task-dashboard/pkg/db"
	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/matt-steen/task-dashboard/pkg/server"
	"github.com/matt-steen/task-dashboard/pkg/session"
	"github.com/matt-steen/task-dashboard/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// serve runs the real API on a loopback port and returns a client for it.
func serve(t *testing.T, autoConfirm bool) *client.Client {
	t.Helper()

	database, err := db.NewDatabase(context.Background(), filepath.Join(t.TempDir(), "client.sqlite"))
	require.NoError(t, err)

	identity := auth.NewService(database, auth.Config{
		Token:       auth.TokenConfig{SecretKey: "test-secret", TTL: time.Hour, Issuer: "taskdash-test"},
		BcryptCost:  bcrypt.MinCost,
		AutoConfirm: autoConfirm,
	})

	app := server.New(database, identity)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go app.Listener(ln) //nolint:errcheck

	t.Cleanup(func() {
		app.Shutdown() //nolint:errcheck
		database.Close()
	})

	return client.New("http://"+ln.Addr().String(), 5*time.Second)
}

func login(t *testing.T, c *client.Client) *session.Holder {
	t.Helper()

	ctx := context.Background()
	creds := session.Credentials{Email: "ada@example.com", Password: "password123"}

	holder := session.NewHolder(client.NewIdentity(c))
	holder.Initialize(ctx)

	require.NoError(t, holder.SignUp(ctx, creds))
	require.NoError(t, holder.Login(ctx, creds))

	return holder
}

func TestIdentityRoundTrip(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	c := serve(t, true)
	identity := client.NewIdentity(c)

	_, err := identity.FetchAuthSession(ctx)
	assert.ErrorIs(err, session.ErrNoSession)

	_, err = identity.GetCurrentUser(ctx)
	assert.ErrorIs(err, session.ErrNoSession)

	creds := session.Credentials{Email: "ada@example.com", Password: "password123"}
	assert.Nil(identity.SignUp(ctx, creds))
	assert.Nil(identity.SignIn(ctx, creds))

	sess, err := identity.FetchAuthSession(ctx)
	assert.Nil(err)
	assert.NotEmpty(sess.AccessToken)

	user, err := identity.GetCurrentUser(ctx)
	assert.Nil(err)
	assert.NotEmpty(user.UserID)
	assert.Equal("ada@example.com", user.LoginID)

	assert.Nil(identity.SignOut(ctx))

	_, err = identity.FetchAuthSession(ctx)
	assert.ErrorIs(err, session.ErrNoSession)
}

func TestIdentityErrors(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	c := serve(t, false)
	holder := session.NewHolder(client.NewIdentity(c))
	holder.Initialize(ctx)

	creds := session.Credentials{Email: "ada@example.com", Password: "password123"}
	assert.Nil(holder.SignUp(ctx, creds))

	err := holder.Login(ctx, creds)
	assert.ErrorIs(err, session.ErrAuthenticationFailed)

	var apiErr *client.APIError
	assert.True(errors.As(err, &apiErr))
	assert.Equal(http.StatusForbidden, apiErr.Status)
	assert.Equal(auth.ErrNotConfirmed.Error(), apiErr.Message)
	assert.Contains(err.Error(), auth.ErrNotConfirmed.Error())

	err = holder.ConfirmSignUp(ctx, "ada@example.com", "000000x")
	assert.ErrorIs(err, session.ErrSignUpFailed)
	assert.True(errors.As(err, &apiErr))
	assert.Equal(http.StatusBadRequest, apiErr.Status)

	assert.False(holder.Current().IsAuthenticated())
}

func TestStoreAgainstServer(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	c := serve(t, true)
	holder := login(t, c)

	st := store.New(client.NewTasks(c, holder), holder)
	st.Start(ctx)
	defer st.Close()

	assert.Empty(st.Tasks())
	assert.False(st.Loading())

	created, err := st.Create(ctx, model.TaskInput{
		Title:    "Write report",
		Category: model.CategoryWork,
		Priority: model.PriorityUrgent,
		DueDate:  time.Now().Add(48 * time.Hour),
		Tags:     []string{"b", "a", "b"},
	})
	assert.Nil(err)
	assert.Equal(holder.Current().UserID(), created.UserID)
	assert.Equal([]string{"b", "a"}, created.Tags)
	assert.Equal(1, st.Stats().TotalTasks)
	assert.Equal(1, st.Stats().PendingTasks)

	_, err = st.Update(ctx, created.ID, model.StatusPatch(model.StatusCompleted))
	assert.Nil(err)
	assert.Equal(1, st.Stats().CompletedTasks)
	assert.Equal(float64(100), st.Stats().CompletionRate)

	assert.Nil(st.Refresh(ctx))

	tasks := st.Tasks()
	assert.Len(tasks, 1)
	assert.Equal(model.StatusCompleted, tasks[0].Status)
	assert.Equal([]string{"b", "a"}, tasks[0].Tags)

	assert.Nil(st.Delete(ctx, created.ID))
	assert.Empty(st.Tasks())
	assert.Equal(0, st.Stats().TotalTasks)

	assert.Nil(holder.Logout(ctx))
	assert.Empty(st.Snapshot().UserID)

	_, err = st.Create(ctx, model.TaskInput{Title: "x", Category: model.CategoryWork, Priority: model.PriorityLow, DueDate: time.Now()})
	assert.ErrorIs(err, store.ErrNoUser)
}

func TestTasksRemoteErrors(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	c := serve(t, true)
	holder := login(t, c)
	tasks := client.NewTasks(c, holder)

	_, err := tasks.List(ctx, "someone-else")

	var apiErr *client.APIError
	assert.True(errors.As(err, &apiErr))
	assert.Equal(http.StatusForbidden, apiErr.Status)
	assert.Equal("forbidden", apiErr.Code)

	err = tasks.Delete(ctx, "missing")
	assert.True(errors.As(err, &apiErr))
	assert.Equal(http.StatusNotFound, apiErr.Status)

	assert.Nil(holder.Logout(ctx))

	_, err = tasks.List(ctx, "anyone")
	assert.ErrorIs(err, session.ErrNoSession)
}
