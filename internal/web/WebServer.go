package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/users-api/webserver/internal/common"
	"github.com/users-api/webserver/internal/log"
	"github.com/users-api/webserver/internal/models/user"
	"github.com/users-api/webserver/internal/services"
)

// UserStore is the subset of user.UserManager the handlers need.
type UserStore interface {
	GetAllUsers(ctx context.Context) ([]user.User, error)
	CreateUser(ctx context.Context, u *user.User) (*user.User, error)
	CreateUsers(ctx context.Context, users []user.User) ([]user.User, error)
	UpdateUserByID(ctx context.Context, id primitive.ObjectID, patch *user.Patch) (*user.User, error)
	DeleteUserByID(ctx context.Context, id primitive.ObjectID) (*user.User, error)
	GetUsersByName(ctx context.Context, name string) ([]user.User, error)
	GetUserByFavoriteFood(ctx context.Context, food string) (*user.User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*user.User, error)
	AddFavoriteFood(ctx context.Context, id primitive.ObjectID, food string) (*user.User, error)
	SetAgeByName(ctx context.Context, name string, age int) (*user.User, error)
	DeleteUsersByName(ctx context.Context, name string) (int64, error)
	SearchByFavoriteFood(ctx context.Context, food string, limit int64) ([]user.User, error)
	Ping(ctx context.Context) error
}

type WebServer struct {
	app    *fiber.App
	users  UserStore
	events services.EventPublisher
	logger *log.Logger
}

// Options tunes the HTTP layer.
type Options struct {
	// CORSAllowOrigins is a comma separated list of origins, "*" allows any.
	CORSAllowOrigins string
}

func NewWebServer(users UserStore, events services.EventPublisher, logger *log.Logger, opts Options) *WebServer {
	if events == nil {
		events = services.NopPublisher{}
	}
	if opts.CORSAllowOrigins == "" {
		opts.CORSAllowOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:               "users-api",
		UnescapePath:          true,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})

	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	app.Use(requestLogger(logger))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.CORSAllowOrigins,
		AllowHeaders: "Content-Type",
	}))

	s := &WebServer{
		app:    app,
		users:  users,
		events: events,
		logger: logger,
	}
	s.SetupRoutes()
	return s
}

// Run blocks serving HTTP on addr until Shutdown is called or the listener fails.
func (s *WebServer) Run(addr string) error {
	s.logger.Infof("Listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits up to timeout for in-flight requests.
func (s *WebServer) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *WebServer) SetupRoutes() {
	s.app.Get("/routes", s.getRoutes)
	s.app.Get("/health", s.healthCheck)

	users := s.app.Group("/users")
	users.Get("/", s.listUsers)
	users.Post("/", s.createUser)
	users.Post("/create-one", s.createUser)
	users.Post("/create-many", s.createManyUsers)
	users.Get("/find-by-name/:name", s.findUsersByName)
	users.Get("/find-one-food/:food", s.findOneUserByFood)
	users.Get("/find-by-id/:id", s.findUserByID)
	users.Put("/classic-update/:id", s.classicUpdate)
	users.Put("/find-one-and-update/:name", s.findOneAndUpdate)
	users.Delete("/find-by-id-and-remove/:id", s.deleteUserByID)
	users.Delete("/delete-many-by-name/:name", s.deleteUsersByName)
	users.Get("/search-burritos", s.searchBurritos)
	// registered last so the named routes above win
	users.Put("/:id", s.updateUserByID)
	users.Delete("/:id", s.deleteUserByID)
}

func (s *WebServer) getRoutes(c *fiber.Ctx) error {
	routes := s.app.GetRoutes(true)
	return c.Status(http.StatusOK).JSON(routes)
}

func (s *WebServer) healthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.users.Ping(ctx); err != nil {
		s.logger.Errorw("Health check failed", "error", err)
		return c.Status(http.StatusServiceUnavailable).JSON(common.ErrorResponse{Error: "database unavailable"})
	}
	return c.SendString("OK")
}

// fail maps an error from validation or the store onto the response status:
// client input errors are 400, a missing user is 404, anything else is a generic 500.
func (s *WebServer) fail(c *fiber.Ctx, action string, err error) error {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		s.logger.Infow(action+" rejected", "error", reqErr.Message, "request_id", requestID(c))
		return c.Status(http.StatusBadRequest).JSON(common.ErrorResponse{Error: reqErr.Message})
	case errors.Is(err, user.ErrInvalidUserID):
		s.logger.Infow(action+" rejected", "error", err, "request_id", requestID(c))
		return c.Status(http.StatusBadRequest).JSON(common.ErrorResponse{Error: "Invalid user ID"})
	case errors.Is(err, user.ErrValidation):
		s.logger.Infow(action+" rejected", "error", err, "request_id", requestID(c))
		return c.Status(http.StatusBadRequest).JSON(common.ErrorResponse{Error: err.Error()})
	case errors.Is(err, user.ErrUserNotFound):
		s.logger.Infow(action+": user not found", "request_id", requestID(c))
		return c.Status(http.StatusNotFound).JSON(common.ErrorResponse{Error: "User not found"})
	default:
		s.logger.Errorw(action+" failed", "error", err, "request_id", requestID(c))
		return c.Status(http.StatusInternalServerError).JSON(common.ErrorResponse{Error: "Internal server error"})
	}
}

// publishTimeout bounds how long a write request may spend announcing its event.
const publishTimeout = 2 * time.Second

// publish sends a user event. A failure is logged and otherwise ignored.
func (s *WebServer) publish(c *fiber.Ctx, event services.UserEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warnw("Failed to publish user event", "type", event.Type, "error", err, "request_id", requestID(c))
	}
}
