// Package server is the REST API for accounts and tasks.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/matt-steen/task-dashboard/pkg/auth"
	"github.com/matt-steen/task-dashboard/pkg/db"
	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/rs/zerolog/log"
)

// Storage is the persistence the API needs.
type Storage interface {
	Ping(ctx context.Context) error
	UserByID(ctx context.Context, id string) (db.User, error)
	ListTasks(ctx context.Context, userID string) ([]model.Task, error)
	GetTask(ctx context.Context, id string) (model.Task, error)
	InsertTask(ctx context.Context, task model.Task) error
	UpdateTask(ctx context.Context, task model.Task) error
	DeleteTask(ctx context.Context, id string) error
}

// Identity is the account service the API needs.
type Identity interface {
	SignUp(ctx context.Context, email, password string) (auth.SignUpResult, error)
	ConfirmSignUp(ctx context.Context, email, code string) error
	SignIn(ctx context.Context, email, password string) (auth.Token, error)
	SignOut(ctx context.Context, claims *auth.Claims) error
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// Server holds the handlers' dependencies.
type Server struct {
	storage  Storage
	identity Identity
	clock    func() time.Time
	newID    func() string
}

// Option customizes a Server.
type Option func(*Server)

// WithClock sets the time source for task timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithIDs sets the task id generator.
func WithIDs(newID func() string) Option {
	return func(s *Server) {
		s.newID = newID
	}
}

// New builds the Fiber app with every route registered.
func New(storage Storage, identity Identity, opts ...Option) *fiber.App {
	s := &Server{
		storage:  storage,
		identity: identity,
		clock:    time.Now,
		newID:    newTaskID,
	}

	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestLogger())

	s.routes(app)

	return app
}

func (s *Server) routes(app *fiber.App) {
	app.Get("/health", s.health)

	authRoutes := app.Group("/auth")
	authRoutes.Post("/signup", s.signUp)
	authRoutes.Post("/confirm", s.confirm)
	authRoutes.Post("/signin", s.signIn)

	authed := bearer(s.identity)

	authRoutes.Post("/signout", authed, s.signOut)
	authRoutes.Get("/me", authed, s.me)

	app.Get("/users/:userID/tasks", authed, s.listTasks)
	app.Post("/users/:userID/tasks", authed, s.createTask)
	app.Patch("/tasks/:id", authed, s.updateTask)
	app.Delete("/tasks/:id", authed, s.deleteTask)
}

// requestLogger logs one line per request.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}

		log.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")

		return err
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	} else {
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   errorCode(code),
		Message: message,
	})
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusForbidden:
		return "forbidden"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusConflict:
		return "conflict"
	default:
		return "server_error"
	}
}

// fail writes an error response.
func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error:   errorCode(status),
		Message: message,
	})
}
