package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/matt-steen/task-dashboard/pkg/session"
)

// fakeRemote is an in-memory task API. Hooks let tests block or fail calls.
type fakeRemote struct {
	mu      sync.Mutex
	tasks   map[string][]model.Task
	nextID  int
	clock   func() time.Time
	lists   int
	failAll error

	beforeList   func(userID string)
	beforeUpdate func(taskID string)
	beforeDelete func(taskID string)
}

func newFakeRemote(clock func() time.Time) *fakeRemote {
	return &fakeRemote{tasks: map[string][]model.Task{}, clock: clock}
}

func (f *fakeRemote) seed(userID string, tasks ...model.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, task := range tasks {
		task.UserID = userID
		f.tasks[userID] = append(f.tasks[userID], task)
	}
}

func (f *fakeRemote) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lists
}

func (f *fakeRemote) List(_ context.Context, userID string) ([]model.Task, error) {
	if f.beforeList != nil {
		f.beforeList(userID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.lists++

	if f.failAll != nil {
		return nil, f.failAll
	}

	out := []model.Task{}
	for _, task := range f.tasks[userID] {
		out = append(out, task.Clone())
	}

	return out, nil
}

func (f *fakeRemote) Create(_ context.Context, userID string, input model.TaskInput) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll != nil {
		return model.Task{}, f.failAll
	}

	f.nextID++
	task := input.NewTask(fmt.Sprintf("srv-%d", f.nextID), userID, f.clock())
	f.tasks[userID] = append(f.tasks[userID], task)

	return task.Clone(), nil
}

func (f *fakeRemote) Update(_ context.Context, taskID string, patch model.TaskPatch) (model.Task, error) {
	if f.beforeUpdate != nil {
		f.beforeUpdate(taskID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll != nil {
		return model.Task{}, f.failAll
	}

	for userID, tasks := range f.tasks {
		for i, task := range tasks {
			if task.ID == taskID {
				updated := patch.Apply(task, f.clock())
				f.tasks[userID][i] = updated

				return updated.Clone(), nil
			}
		}
	}

	return model.Task{}, errors.New("task not found")
}

func (f *fakeRemote) Delete(_ context.Context, taskID string) error {
	if f.beforeDelete != nil {
		f.beforeDelete(taskID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll != nil {
		return f.failAll
	}

	for userID, tasks := range f.tasks {
		for i, task := range tasks {
			if task.ID == taskID {
				f.tasks[userID] = append(tasks[:i], tasks[i+1:]...)

				return nil
			}
		}
	}

	return errors.New("task not found")
}

// fakeSessions is a settable session source.
type fakeSessions struct {
	mu        sync.Mutex
	state     session.State
	listeners map[int]func(session.State)
	next      int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{listeners: map[int]func(session.State){}}
}

func (f *fakeSessions) Current() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

func (f *fakeSessions) Subscribe(fn func(session.State)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	f.listeners[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		delete(f.listeners, id)
	}
}

func (f *fakeSessions) login(userID string) {
	f.set(session.Authenticated(model.NewUser(userID, userID+"@example.com", time.Now())))
}

func (f *fakeSessions) logout() {
	f.set(session.Unauthenticated())
}

func (f *fakeSessions) set(state session.State) {
	f.mu.Lock()
	f.state = state

	listeners := []func(session.State){}
	for _, fn := range f.listeners {
		listeners = append(listeners, fn)
	}
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
