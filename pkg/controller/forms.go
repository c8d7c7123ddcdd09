package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/matt-steen/task-dashboard/pkg/session"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	titleMax       = 80
	descriptionMax = 500
	dueMax         = 16
	tagsMax        = 80
	emailMax       = 60
)

var dueLayouts = []string{dueLayout, "2006-01-02"}

// taskForm holds the raw text of the new task form.
type taskForm struct {
	title       string
	description string
	category    string
	priority    string
	due         string
	tags        string
}

// input converts the form to a validated TaskInput. A due date without a time means
// the end of that day in loc.
func (f taskForm) input(loc *time.Location) (model.TaskInput, error) {
	due, err := parseDue(strings.TrimSpace(f.due), loc)
	if err != nil {
		return model.TaskInput{}, err
	}

	input := model.TaskInput{
		Title:       f.title,
		Description: strings.TrimSpace(f.description),
		Category:    model.Category(f.category),
		Priority:    model.Priority(f.priority),
		DueDate:     due,
		Tags:        model.NormalizeTags(strings.Split(f.tags, ",")),
	}

	if err := input.Validate(); err != nil {
		return model.TaskInput{}, err
	}

	return input, nil
}

func parseDue(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range dueLayouts {
		due, err := time.ParseInLocation(layout, value, loc)
		if err != nil {
			continue
		}

		if layout != dueLayout {
			due = due.Add(24*time.Hour - time.Minute)
		}

		return due, nil
	}

	return time.Time{}, fmt.Errorf("%w: due date %q is not YYYY-MM-DD [HH:MM]", model.ErrInvalidTask, value)
}

func enumOptions[T ~string](values []T) []string {
	options := make([]string, 0, len(values))
	for _, v := range values {
		options = append(options, string(v))
	}

	return options
}

func (c *Controller) getFormGrid() *tview.Grid {
	grid := tview.NewGrid().SetBorders(true).SetRows(2, 0)

	c.initTaskForm()

	grid.AddItem(c.formHeader("New Task"), 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.taskForm, 1, 0, 1, 1, 0, 0, true)

	return grid
}

func (c *Controller) initTaskForm() {
	tomorrow := c.clock().In(c.loc).AddDate(0, 0, 1).Format("2006-01-02")

	c.taskForm = tview.NewForm().
		AddInputField("Title", "", titleMax, nil, nil).
		AddInputField("Description", "", descriptionMax, nil, nil).
		AddDropDown("Category", enumOptions(model.Categories()), 0, nil).
		AddDropDown("Priority", enumOptions(model.Priorities()), 2, nil).
		AddInputField("Due", tomorrow, dueMax, nil, nil).
		AddInputField("Tags", "", tagsMax, nil, nil)

	c.taskForm.AddButton("Save", func() {
		form := taskForm{
			title:       c.inputText(c.taskForm, "Title"),
			description: c.inputText(c.taskForm, "Description"),
			category:    c.dropDownText(c.taskForm, "Category"),
			priority:    c.dropDownText(c.taskForm, "Priority"),
			due:         c.inputText(c.taskForm, "Due"),
			tags:        c.inputText(c.taskForm, "Tags"),
		}

		input, err := form.input(c.loc)
		if err != nil {
			c.setStatus("red", err.Error())

			return
		}

		log.Debug().Str("title", input.Title).Msg("saving new task")

		c.do("create", func(ctx context.Context) error {
			task, err := c.store.Create(ctx, input)
			if err == nil {
				c.app.QueueUpdateDraw(func() {
					c.selectedID = task.ID
					c.setStatus("green", "created "+task.Title)
				})
			}

			return err
		})

		for _, label := range []string{"Title", "Description", "Tags"} {
			c.setInputText(c.taskForm, label, "")
		}

		c.showPage(pageTasks)
	})

	c.taskForm.AddButton("Cancel", func() {
		c.showPage(pageTasks)
	})
}

func (c *Controller) getLoginGrid() *tview.Grid {
	grid := tview.NewGrid().SetBorders(true).SetRows(2, 0)

	c.initLoginForm()

	c.loginHeader = tview.NewTextView().SetDynamicColors(true).SetText("[yellow]Sign In")

	grid.AddItem(c.loginHeader, 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.loginForm, 1, 0, 1, 1, 0, 0, true)

	return grid
}

func (c *Controller) initLoginForm() {
	c.loginForm = tview.NewForm().
		AddInputField("Email", "", emailMax, nil, nil).
		AddPasswordField("Password", "", emailMax, '*', nil)

	c.loginForm.AddButton("Sign In", func() {
		creds := session.Credentials{
			Email:    strings.TrimSpace(c.inputText(c.loginForm, "Email")),
			Password: c.inputText(c.loginForm, "Password"),
		}

		c.loginHeader.SetText("[yellow]Sign In\n[white]signing in...")

		go func() {
			err := c.sessions.Login(c.ctx, creds)

			c.app.QueueUpdateDraw(func() {
				if err != nil {
					log.Warn().Err(err).Msg("sign in failed")
					c.loginHeader.SetText("[yellow]Sign In\n[red]" + err.Error())

					return
				}

				c.setInputText(c.loginForm, "Password", "")
				c.loginHeader.SetText("[yellow]Sign In")
				c.setStatus("green", "signed in as "+creds.Email)
				c.showPage(pageTasks)
			})
		}()
	})

	c.loginForm.AddButton("Quit", func() {
		c.app.Stop()
	})
}

func (c *Controller) inputText(form *tview.Form, label string) string {
	if field, ok := form.GetFormItemByLabel(label).(*tview.InputField); ok {
		return field.GetText()
	}

	return ""
}

func (c *Controller) setInputText(form *tview.Form, label, text string) {
	if field, ok := form.GetFormItemByLabel(label).(*tview.InputField); ok {
		field.SetText(text)
	}
}

func (c *Controller) dropDownText(form *tview.Form, label string) string {
	if dropDown, ok := form.GetFormItemByLabel(label).(*tview.DropDown); ok {
		_, option := dropDown.GetCurrentOption()

		return option
	}

	return ""
}
