// Package controller is the terminal dashboard. It renders snapshots of the task store
// and turns key presses into store and session operations; all state lives in the store.
package controller

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/matt-steen/task-dashboard/pkg/session"
	"github.com/matt-steen/task-dashboard/pkg/store"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	pageTasks = "tasks"
	pageForm  = "form"
	pageLogin = "login"
)

// Store is the part of the task store the dashboard uses.
type Store interface {
	Snapshot() store.Snapshot
	Subscribe(fn func(store.Event)) func()
	Refresh(ctx context.Context) error
	Create(ctx context.Context, input model.TaskInput) (model.Task, error)
	Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error)
	Delete(ctx context.Context, id string) error
}

// Sessions is the part of the session holder the dashboard uses.
type Sessions interface {
	Login(ctx context.Context, creds session.Credentials) error
	Logout(ctx context.Context) error
	Current() session.State
}

// Controller mediates between the store and the view.
type Controller struct {
	ctx      context.Context
	app      *tview.Application
	pages    *tview.Pages
	page     string
	store    Store
	sessions Sessions
	clock    func() time.Time
	loc      *time.Location

	header      *tview.TextView
	shortcuts   *tview.Table
	table       *tview.Table
	statusLine  *tview.TextView
	taskForm    *tview.Form
	loginForm   *tview.Form
	// loginHeader doubles as the login page's status line.
	loginHeader *tview.TextView

	content    *TaskContent
	snapshot   store.Snapshot
	views      []view
	view       int
	selectedID string
	events     map[rune]KeyEvent
	// startErr is shown on the status line once Run starts.
	startErr error
}

// NewController creates a new Controller to run the dashboard. Dates are shown in loc.
func NewController(ctx context.Context, st Store, sessions Sessions, loc *time.Location) *Controller {
	if loc == nil {
		loc = time.Local
	}

	c := Controller{
		ctx:      ctx,
		app:      tview.NewApplication(),
		store:    st,
		sessions: sessions,
		clock:    time.Now,
		loc:      loc,
		views:    views(),
		content:  NewTaskContent(nil, time.Now().In(loc)),
	}

	c.initEvents()

	return &c
}

// SignIn logs in before Run and loads the collection. A failed load is kept and
// shown when the dashboard starts; a failed login is returned.
func (c *Controller) SignIn(creds session.Credentials) error {
	if err := c.sessions.Login(c.ctx, creds); err != nil {
		return err
	}

	if err := c.store.Refresh(c.ctx); err != nil {
		log.Warn().Err(err).Msg("initial task load failed")
		c.startErr = err
	}

	return nil
}

// Run shows the dashboard and blocks until the user quits.
func (c *Controller) Run() error {
	c.pages = tview.NewPages()
	c.pages.AddPage(pageTasks, c.getTasksGrid(), true, true)
	c.pages.AddPage(pageForm, c.getFormGrid(), true, false)
	c.pages.AddPage(pageLogin, c.getLoginGrid(), true, false)

	unsubscribe := c.store.Subscribe(func(event store.Event) {
		c.app.QueueUpdateDraw(func() {
			c.apply(event.Snapshot, event.Err)
		})
	})
	defer unsubscribe()

	c.apply(c.store.Snapshot(), c.startErr)

	if c.sessions.Current().IsAuthenticated() {
		c.showPage(pageTasks)
	} else {
		c.showPage(pageLogin)
	}

	c.app.SetInputCapture(c.keyboard)

	log.Info().Msg("dashboard started")

	return c.app.SetRoot(c.pages, true).Run()
}

// apply renders a store snapshot; err, if any, goes to the status line.
func (c *Controller) apply(snapshot store.Snapshot, err error) {
	c.snapshot = snapshot

	now := c.clock().In(c.loc)
	current := c.views[c.view]

	c.content = NewTaskContent(current.tasks(snapshot.Tasks, now), now)
	c.table.SetContent(c.content)

	row := c.content.RowOf(c.selectedID)
	if row < 0 && c.content.GetRowCount() > 1 {
		row = 1
	}

	if row > 0 {
		c.table.Select(row, 0)
	}

	c.header.SetText(formatHeader(snapshot, current.name, now))

	if err != nil {
		c.setStatus("red", err.Error())
	}
}

func (c *Controller) setStatus(color, msg string) {
	c.statusLine.SetText("[" + color + "]" + msg)
}

// when the row selection changes, update the selected task.
func (c *Controller) setCurrentRow(row, _ int) {
	if task, ok := c.content.TaskAt(row); ok {
		c.selectedID = task.ID
	}
}

func (c *Controller) selectedTask() (model.Task, bool) {
	row, _ := c.table.GetSelection()

	return c.content.TaskAt(row)
}

func (c *Controller) showPage(name string) {
	c.page = name
	c.pages.SwitchToPage(name)

	switch name {
	case pageForm:
		c.taskForm.SetFocus(0)
		c.app.SetFocus(c.taskForm)
	case pageLogin:
		c.loginForm.SetFocus(0)
		c.app.SetFocus(c.loginForm)
	default:
		c.app.SetFocus(c.table)
	}
}

func (c *Controller) keyboard(evt *tcell.EventKey) *tcell.EventKey {
	if c.page != pageTasks {
		if evt.Key() == tcell.KeyEscape && c.page == pageForm {
			c.showPage(pageTasks)

			return nil
		}

		return evt
	}

	if evt.Key() == tcell.KeyEscape {
		c.app.Stop()

		return nil
	}

	if evt.Key() != tcell.KeyRune {
		return evt
	}

	if k, ok := c.events[evt.Rune()]; ok {
		return k.Action(evt)
	}

	return evt
}

// do runs op off the UI goroutine. Store failures reach the status line through the
// store's events; other failures are reported here.
func (c *Controller) do(name string, op func(ctx context.Context) error) {
	go func() {
		if err := op(c.ctx); err != nil {
			log.Warn().Err(err).Str("op", name).Msg("dashboard operation failed")

			c.app.QueueUpdateDraw(func() {
				c.setStatus("red", err.Error())
			})
		}
	}()
}
