package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/matt-steen/task-dashboard/pkg/auth"
	"github.com/matt-steen/task-dashboard/pkg/db"
	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/rs/zerolog/log"
)

func newTaskID() string {
	return uuid.NewString()
}

func (s *Server) health(c *fiber.Ctx) error {
	if err := s.storage.Ping(c.UserContext()); err != nil {
		log.Error().Err(err).Msg("database ping failed")

		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) signUp(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return fail(c, fiber.StatusBadRequest, "email and password are required")
	}

	result, err := s.identity.SignUp(c.UserContext(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidSignUp):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		return fail(c, fiber.StatusConflict, err.Error())
	case err != nil:
		return err
	}

	if !result.Confirmed {
		// there is no mail delivery; the code goes to the operator's log
		log.Info().Str("email", req.Email).Str("code", result.Code).Msg("confirmation code issued")
	}

	return c.Status(fiber.StatusCreated).JSON(SignUpResponse{
		UserID:    result.UserID,
		Confirmed: result.Confirmed,
	})
}

func (s *Server) confirm(c *fiber.Ctx) error {
	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	err := s.identity.ConfirmSignUp(c.UserContext(), req.Email, req.Code)
	if errors.Is(err, auth.ErrInvalidCode) {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	if err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) signIn(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	token, err := s.identity.SignIn(c.UserContext(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return fail(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrNotConfirmed):
		return fail(c, fiber.StatusForbidden, err.Error())
	case err != nil:
		return err
	}

	expiresIn := int64(token.ExpiresAt.Sub(s.clock()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	return c.JSON(TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		UserID:      token.UserID,
	})
}

func (s *Server) signOut(c *fiber.Ctx) error {
	if err := s.identity.SignOut(c.UserContext(), claimsFrom(c)); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) me(c *fiber.Ctx) error {
	user, err := s.storage.UserByID(c.UserContext(), claimsFrom(c).UserID())
	if errors.Is(err, db.ErrNotFound) {
		return fail(c, fiber.StatusUnauthorized, "user no longer exists")
	}

	if err != nil {
		return err
	}

	return c.JSON(MeResponse{UserID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt})
}

func (s *Server) listTasks(c *fiber.Ctx) error {
	userID, err := s.pathUser(c)
	if err != nil {
		return err
	}

	tasks, err := s.storage.ListTasks(c.UserContext(), userID)
	if err != nil {
		return err
	}

	if tasks == nil {
		tasks = []model.Task{}
	}

	return c.JSON(tasks)
}

func (s *Server) createTask(c *fiber.Ctx) error {
	userID, err := s.pathUser(c)
	if err != nil {
		return err
	}

	var input model.TaskInput
	if err := c.BodyParser(&input); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := input.Validate(); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	task := input.NewTask(s.newID(), userID, s.clock())

	if err := s.storage.InsertTask(c.UserContext(), task); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return fail(c, fiber.StatusConflict, "task already exists")
		}

		return err
	}

	log.Debug().Str("user", userID).Str("task", task.ID).Msg("task created")

	return c.Status(fiber.StatusCreated).JSON(task)
}

func (s *Server) updateTask(c *fiber.Ctx) error {
	task, err := s.ownedTask(c)
	if err != nil {
		return err
	}

	var patch model.TaskPatch
	if err := c.BodyParser(&patch); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := patch.Validate(); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	updated := patch.Apply(task, s.clock())

	if err := s.storage.UpdateTask(c.UserContext(), updated); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "task not found")
		}

		return err
	}

	return c.JSON(updated)
}

func (s *Server) deleteTask(c *fiber.Ctx) error {
	task, err := s.ownedTask(c)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteTask(c.UserContext(), task.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "task not found")
		}

		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// pathUser returns the :userID parameter if it belongs to the caller.
func (s *Server) pathUser(c *fiber.Ctx) (string, error) {
	userID := c.Params("userID")
	if userID != claimsFrom(c).UserID() {
		return "", fiber.NewError(fiber.StatusForbidden, "cannot access another user's tasks")
	}

	return userID, nil
}

// ownedTask loads the :id task; tasks of other users are reported as missing.
func (s *Server) ownedTask(c *fiber.Ctx) (model.Task, error) {
	task, err := s.storage.GetTask(c.UserContext(), c.Params("id"))
	if errors.Is(err, db.ErrNotFound) || (err == nil && task.UserID != claimsFrom(c).UserID()) {
		return model.Task{}, fiber.NewError(fiber.StatusNotFound, "task not found")
	}

	return task, err
}
