package controller

import (
	"context"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/rs/zerolog/log"
)

// KeyEvent defines an event associated with a keypress.
type KeyEvent struct {
	Description string
	Action      func(*tcell.EventKey) *tcell.EventKey
}

func (c *Controller) initEvents() {
	c.events = map[rune]KeyEvent{}

	c.initShowEvents()
	c.initMarkEvents()

	c.events['n'] = KeyEvent{Description: "New Task", Action: func(key *tcell.EventKey) *tcell.EventKey {
		c.showPage(pageForm)

		return nil
	}}

	c.events['d'] = KeyEvent{Description: "Delete Task", Action: func(key *tcell.EventKey) *tcell.EventKey {
		task, ok := c.selectedTask()
		if !ok {
			return nil
		}

		c.setStatus("white", "deleting "+task.Title+"...")
		c.do("delete", func(ctx context.Context) error {
			return c.store.Delete(ctx, task.ID)
		})

		return nil
	}}

	c.events['r'] = KeyEvent{Description: "Refresh", Action: func(key *tcell.EventKey) *tcell.EventKey {
		c.setStatus("white", "refreshing...")
		c.do("refresh", c.store.Refresh)

		return nil
	}}

	c.events['L'] = KeyEvent{Description: "Logout", Action: func(key *tcell.EventKey) *tcell.EventKey {
		c.do("logout", c.sessions.Logout)
		c.showPage(pageLogin)

		return nil
	}}

	c.events['q'] = KeyEvent{Description: "Exit", Action: func(key *tcell.EventKey) *tcell.EventKey {
		log.Info().Msg("terminating dashboard")
		c.app.Stop()

		return nil
	}}
}

func (c *Controller) getShowAction(idx int) func(key *tcell.EventKey) *tcell.EventKey {
	return func(key *tcell.EventKey) *tcell.EventKey {
		c.view = idx
		c.apply(c.snapshot, nil)

		return nil
	}
}

func (c *Controller) initShowEvents() {
	for idx, v := range c.views {
		c.events[v.key] = KeyEvent{
			Description: "Show " + v.name,
			Action:      c.getShowAction(idx),
		}
	}
}

func (c *Controller) getMarkAction(status model.Status) func(key *tcell.EventKey) *tcell.EventKey {
	return func(key *tcell.EventKey) *tcell.EventKey {
		task, ok := c.selectedTask()
		if !ok || task.Status == status {
			return nil
		}

		c.do("update", func(ctx context.Context) error {
			_, err := c.store.Update(ctx, task.ID, model.StatusPatch(status))

			return err
		})

		return nil
	}
}

func (c *Controller) initMarkEvents() {
	c.events['p'] = KeyEvent{
		Description: "Mark Pending",
		Action:      c.getMarkAction(model.StatusPending),
	}

	c.events['i'] = KeyEvent{
		Description: "Mark In Progress",
		Action:      c.getMarkAction(model.StatusInProgress),
	}

	c.events['c'] = KeyEvent{
		Description: "Mark Completed",
		Action:      c.getMarkAction(model.StatusCompleted),
	}
}
