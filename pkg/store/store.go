// Package store owns the signed in user's task collection and the dashboard
// statistics derived from it.
//
// Every operation goes through the remote collaborator first and is applied locally
// only when the remote call succeeds, so a failed operation never leaves the
// collection partially changed. Statistics are recomputed from the whole collection
// after every change.
//
// Ordering: Update and Delete are serialized per task id, mutations on different ids
// run concurrently, and Refresh waits for in-flight mutations and holds new ones back
// until its result is applied. Results that arrive after the signed in user changed
// are dropped.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/matt-steen/task-dashboard/pkg/session"
	"github.com/matt-steen/task-dashboard/pkg/stats"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrFetchFailed is wrapped by failed refreshes.
	ErrFetchFailed = errors.New("failed to load tasks")
	// ErrCreateFailed is wrapped by failed creates.
	ErrCreateFailed = errors.New("failed to create task")
	// ErrUpdateFailed is wrapped by failed updates.
	ErrUpdateFailed = errors.New("failed to update task")
	// ErrDeleteFailed is wrapped by failed deletes.
	ErrDeleteFailed = errors.New("failed to delete task")

	// ErrNoUser means the operation needs a signed in user.
	ErrNoUser = errors.New("no user signed in")
	// ErrTaskNotFound means the id is not in the local collection.
	ErrTaskNotFound = errors.New("task not found")
	// ErrSessionChanged means the user changed while the remote call was in flight
	// and its result was dropped.
	ErrSessionChanged = errors.New("session changed before the result arrived")
)

// Remote is the task storage API.
type Remote interface {
	List(ctx context.Context, userID string) ([]model.Task, error)
	Create(ctx context.Context, userID string, input model.TaskInput) (model.Task, error)
	Update(ctx context.Context, taskID string, patch model.TaskPatch) (model.Task, error)
	Delete(ctx context.Context, taskID string) error
}

// Sessions is the part of the session holder the store reacts to.
type Sessions interface {
	Current() session.State
	Subscribe(fn func(session.State)) func()
}

// Snapshot is a read-only copy of the store's state.
type Snapshot struct {
	UserID  string
	Tasks   []model.Task
	Stats   stats.Dashboard
	Loading bool
	// Version increases with every state change; listeners can ignore events older
	// than one they already handled.
	Version uint64
}

// Event is sent to subscribers after every state change or failed operation.
type Event struct {
	Snapshot
	// Err is set when an operation failed; the snapshot is the unchanged state.
	Err error
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for overdue checks and progress buckets.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// WithLocation sets the time zone whose calendar days the weekly progress uses.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		s.loc = loc
	}
}

// Store is the task collection for the current user.
type Store struct {
	remote   Remote
	sessions Sessions
	clock    func() time.Time
	loc      *time.Location

	gate      sync.RWMutex
	taskLocks keyedMutex
	refreshes singleflight.Group

	mu           sync.Mutex
	ctx          context.Context
	userID       string
	epoch        uint64
	tasks        []model.Task
	stats        stats.Dashboard
	loading      bool
	version      uint64
	listeners    map[int]func(Event)
	nextListener int
	unsubscribe  func()
}

// New creates an empty store. Call Start to bind it to the session.
func New(remote Remote, sessions Sessions, opts ...Option) *Store {
	s := &Store{
		remote:    remote,
		sessions:  sessions,
		clock:     time.Now,
		loc:       time.Local,
		taskLocks: keyedMutex{locks: map[string]*refMutex{}},
		ctx:       context.Background(),
		tasks:     []model.Task{},
		listeners: map[int]func(Event){},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.stats = stats.Compute(nil, s.now())

	return s
}

// Start subscribes to session changes and loads the current user's tasks, if any.
// ctx is used for the refreshes that session changes trigger.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	unsubscribe := s.sessions.Subscribe(s.onSession)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.onSession(s.sessions.Current())
}

// Close stops following the session.
func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Subscribe registers fn for state change events. fn may call back into the store.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.listeners, id)
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

// Tasks returns a copy of the collection.
func (s *Store) Tasks() []model.Task {
	return s.Snapshot().Tasks
}

// Stats returns the current dashboard statistics.
func (s *Store) Stats() stats.Dashboard {
	return s.Snapshot().Stats
}

// Loading reports whether a refresh is outstanding.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loading
}

// Task returns a copy of the task with the given id.
func (s *Store) Task(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := indexOf(s.tasks, id); i >= 0 {
		return s.tasks[i].Clone(), true
	}

	return model.Task{}, false
}

// Refresh replaces the collection with the remote one. On failure the previous
// collection stays in place. Concurrent calls share one remote fetch, which runs
// under the context given to Start; ctx only bounds how long this caller waits.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	userID, epoch, fetchCtx := s.userID, s.epoch, s.ctx
	s.mu.Unlock()

	if userID == "" {
		return s.reject(ErrFetchFailed, ErrNoUser)
	}

	s.setLoading(epoch)

	key := fmt.Sprintf("%s/%d", userID, epoch)

	results := s.refreshes.DoChan(key, func() (interface{}, error) {
		event, err := s.fetch(fetchCtx, userID, epoch)

		return &refreshResult{event: event}, err
	})

	select {
	case res := <-results:
		return s.finishRefresh(userID, res)
	case <-ctx.Done():
		go func() { s.finishRefresh(userID, <-results) }() //nolint:errcheck

		return fmt.Errorf("%w: %w", ErrFetchFailed, ctx.Err())
	}
}

// refreshResult is shared by every caller that joined one fetch; the first
// caller to see it emits the event.
type refreshResult struct {
	event *Event
	once  sync.Once
}

func (s *Store) finishRefresh(userID string, res singleflight.Result) error {
	if res.Shared {
		log.Debug().Str("user", userID).Msg("joined in-flight refresh")
	}

	if result, ok := res.Val.(*refreshResult); ok {
		result.once.Do(func() { s.emit(result.event) })
	}

	return res.Err
}

// Create adds a task through the remote and appends the returned record.
func (s *Store) Create(ctx context.Context, input model.TaskInput) (model.Task, error) {
	if err := input.Validate(); err != nil {
		return model.Task{}, s.reject(ErrCreateFailed, err)
	}

	var created model.Task

	err := s.mutate(ErrCreateFailed, "", func(userID string) (applyFunc, error) {
		task, err := s.remote.Create(ctx, userID, input)
		if err != nil {
			return nil, err
		}

		if task.ID == "" {
			return nil, errors.New("remote returned a task without an id")
		}

		created = task.Clone()

		return func(tasks []model.Task) ([]model.Task, error) {
			if i := indexOf(tasks, task.ID); i >= 0 {
				tasks[i] = task.Clone()

				return tasks, nil
			}

			return append(tasks, task.Clone()), nil
		}, nil
	})
	if err != nil {
		return model.Task{}, err
	}

	log.Debug().Str("task", created.ID).Msg("created task")

	return created, nil
}

// Update sends a partial update and replaces the local task with the record the
// remote returns, timestamps included.
func (s *Store) Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	if err := patch.Validate(); err != nil {
		return model.Task{}, s.reject(ErrUpdateFailed, err)
	}

	var updated model.Task

	err := s.mutate(ErrUpdateFailed, id, func(string) (applyFunc, error) {
		task, err := s.remote.Update(ctx, id, patch)
		if err != nil {
			return nil, err
		}

		if task.ID != id {
			return nil, fmt.Errorf("remote returned task %q for %q", task.ID, id)
		}

		updated = task.Clone()

		return func(tasks []model.Task) ([]model.Task, error) {
			i := indexOf(tasks, id)
			if i < 0 {
				return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
			}

			tasks[i] = task.Clone()

			return tasks, nil
		}, nil
	})
	if err != nil {
		return model.Task{}, err
	}

	log.Debug().Str("task", id).Msg("updated task")

	return updated, nil
}

// Delete removes a task through the remote and then locally. Deleting an id that
// isn't in the collection is an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.mutate(ErrDeleteFailed, id, func(string) (applyFunc, error) {
		if err := s.remote.Delete(ctx, id); err != nil {
			return nil, err
		}

		return func(tasks []model.Task) ([]model.Task, error) {
			i := indexOf(tasks, id)
			if i < 0 {
				return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
			}

			return append(tasks[:i], tasks[i+1:]...), nil
		}, nil
	})
	if err != nil {
		return err
	}

	log.Debug().Str("task", id).Msg("deleted task")

	return nil
}

func (s *Store) onSession(state session.State) {
	userID := state.UserID()

	s.mu.Lock()
	if userID == s.userID {
		s.mu.Unlock()

		return
	}

	s.userID = userID
	s.epoch++
	s.tasks = []model.Task{}
	s.loading = userID != ""
	s.recomputeLocked()
	s.version++
	event := s.eventLocked(nil)
	ctx := s.ctx
	s.mu.Unlock()

	log.Info().Str("user", userID).Msg("session changed; task collection reset")
	s.emit(&event)

	if userID == "" {
		return
	}

	if err := s.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("initial task load failed")
	}
}

func (s *Store) setLoading(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.loading {
		s.mu.Unlock()

		return
	}

	s.loading = true
	s.version++
	event := s.eventLocked(nil)
	s.mu.Unlock()

	s.emit(&event)
}

// fetch holds the gate exclusively so no mutation is in flight while the remote
// list is read and applied.
func (s *Store) fetch(ctx context.Context, userID string, epoch uint64) (*Event, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	tasks, err := s.remote.List(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		log.Debug().Str("user", userID).Msg("dropping refresh for previous session")

		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, ErrSessionChanged)
	}

	s.loading = false
	s.version++

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		log.Warn().Err(err).Str("user", userID).Msg("keeping previous tasks")
		event := s.eventLocked(err)

		return &event, err
	}

	s.tasks = make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		s.tasks = append(s.tasks, task.Clone())
	}

	s.recomputeLocked()
	log.Debug().Str("user", userID).Int("tasks", len(s.tasks)).Msg("refreshed tasks")

	event := s.eventLocked(nil)

	return &event, nil
}

// applyFunc applies a successful remote result to the collection.
type applyFunc func(tasks []model.Task) ([]model.Task, error)

// remoteCall performs the remote half of a mutation for the given user.
type remoteCall func(userID string) (applyFunc, error)

func (s *Store) mutate(kind error, taskID string, call remoteCall) error {
	event, err := s.runMutation(kind, taskID, call)
	s.emit(event)

	return err
}

func (s *Store) runMutation(kind error, taskID string, call remoteCall) (*Event, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	if taskID != "" {
		defer s.taskLocks.lock(taskID)()
	}

	s.mu.Lock()
	userID, epoch := s.userID, s.epoch

	var precondition error

	switch {
	case userID == "":
		precondition = ErrNoUser
	case taskID != "" && indexOf(s.tasks, taskID) < 0:
		precondition = fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	if precondition != nil {
		err := fmt.Errorf("%w: %w", kind, precondition)
		event := s.eventLocked(err)
		s.mu.Unlock()

		return &event, err
	}
	s.mu.Unlock()

	apply, err := call(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		log.Debug().Str("user", userID).Msg("dropping mutation result for previous session")

		return nil, fmt.Errorf("%w: %w", kind, ErrSessionChanged)
	}

	if err == nil {
		var tasks []model.Task

		tasks, err = apply(cloneAll(s.tasks))
		if err == nil {
			s.tasks = tasks
			s.recomputeLocked()
			s.version++
			event := s.eventLocked(nil)

			return &event, nil
		}
	}

	err = fmt.Errorf("%w: %w", kind, err)
	log.Warn().Err(err).Str("task", taskID).Msg("task operation failed")
	event := s.eventLocked(err)

	return &event, err
}

// reject reports a failure that happened before any remote call.
func (s *Store) reject(kind, cause error) error {
	err := fmt.Errorf("%w: %w", kind, cause)

	s.mu.Lock()
	event := s.eventLocked(err)
	s.mu.Unlock()

	s.emit(&event)

	return err
}

func (s *Store) now() time.Time {
	return s.clock().In(s.loc)
}

func (s *Store) recomputeLocked() {
	s.stats = stats.Compute(s.tasks, s.now())
}

func (s *Store) snapshotLocked() Snapshot {
	weekly := append([]stats.DayProgress(nil), s.stats.WeeklyProgress...)
	dash := s.stats
	dash.WeeklyProgress = weekly

	return Snapshot{
		UserID:  s.userID,
		Tasks:   cloneAll(s.tasks),
		Stats:   dash,
		Loading: s.loading,
		Version: s.version,
	}
}

func (s *Store) eventLocked(err error) Event {
	return Event{Snapshot: s.snapshotLocked(), Err: err}
}

func (s *Store) emit(event *Event) {
	if event == nil {
		return
	}

	s.mu.Lock()
	listeners := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(*event)
	}
}

func indexOf(tasks []model.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}

	return -1
}

func cloneAll(tasks []model.Task) []model.Task {
	clones := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		clones = append(clones, task.Clone())
	}

	return clones
}
