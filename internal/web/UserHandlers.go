// This file contains the /users handlers. Each handler binds and validates its input, makes one store call
// (classic-update makes two) and maps the outcome onto a status code through fail.

package web

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/users-api/webserver/internal/common"
	"github.com/users-api/webserver/internal/models/user"
	"github.com/users-api/webserver/internal/services"
)

const (
	classicUpdateFood    = "hamburger"
	findOneAndUpdateAge  = 20
	searchFood           = "burritos"
	searchLimit    int64 = 2
)

func (s *WebServer) listUsers(c *fiber.Ctx) error {
	users, err := s.users.GetAllUsers(context.TODO())
	if err != nil {
		return s.fail(c, "List users", err)
	}
	return c.Status(http.StatusOK).JSON(users)
}

// createUser serves both POST /users/ and POST /users/create-one.
func (s *WebServer) createUser(c *fiber.Ctx) error {
	var req common.CreateUserRequest
	if err := ValidateBody(c, &req); err != nil {
		return s.fail(c, "Create user", err)
	}

	created, err := s.users.CreateUser(context.TODO(), req.ToUser())
	if err != nil {
		return s.fail(c, "Create user", err)
	}

	s.logger.Infof("User %s created", created.ID.Hex())
	s.publish(c, services.NewUserEvent(services.EventUserCreated, created))
	return c.Status(http.StatusCreated).JSON(created)
}

func (s *WebServer) createManyUsers(c *fiber.Ctx) error {
	reqs, err := ValidateBatch[common.CreateUserRequest](c)
	if err != nil {
		return s.fail(c, "Create users", err)
	}

	users := make([]user.User, len(reqs))
	for i := range reqs {
		users[i] = *reqs[i].ToUser()
	}

	created, err := s.users.CreateUsers(context.TODO(), users)
	if err != nil {
		return s.fail(c, "Create users", err)
	}

	s.logger.Infof("%d users created", len(created))
	for i := range created {
		s.publish(c, services.NewUserEvent(services.EventUserCreated, &created[i]))
	}
	return c.Status(http.StatusCreated).JSON(created)
}

func (s *WebServer) updateUserByID(c *fiber.Ctx) error {
	var params common.UserIDRequest
	if err := ValidateParams(c, &params); err != nil {
		return s.fail(c, "Update user", err)
	}
	id, err := user.ParseID(params.ID)
	if err != nil {
		return s.fail(c, "Update user", err)
	}

	var req common.UpdateUserRequest
	if err := ValidateBody(c, &req); err != nil {
		return s.fail(c, "Update user", err)
	}

	updated, err := s.users.UpdateUserByID(context.TODO(), id, req.ToPatch())
	if err != nil {
		return s.fail(c, "Update user", err)
	}

	s.publish(c, services.NewUserEvent(services.EventUserUpdated, updated))
	return c.Status(http.StatusOK).JSON(updated)
}

// deleteUserByID serves both DELETE /users/:id and DELETE /users/find-by-id-and-remove/:id.
func (s *WebServer) deleteUserByID(c *fiber.Ctx) error {
	var params common.UserIDRequest
	if err := ValidateParams(c, &params); err != nil {
		return s.fail(c, "Delete user", err)
	}
	id, err := user.ParseID(params.ID)
	if err != nil {
		return s.fail(c, "Delete user", err)
	}

	deleted, err := s.users.DeleteUserByID(context.TODO(), id)
	if err != nil {
		return s.fail(c, "Delete user", err)
	}

	s.logger.Infof("User %s deleted", deleted.ID.Hex())
	s.publish(c, services.NewUserEvent(services.EventUserDeleted, deleted))
	return c.Status(http.StatusOK).JSON(deleted)
}

func (s *WebServer) findUsersByName(c *fiber.Ctx) error {
	var params common.UserNameRequest
	if err := ValidateParams(c, &params); err != nil {
		return s.fail(c, "Find users by name", err)
	}

	users, err := s.users.GetUsersByName(context.TODO(), params.Name)
	if err != nil {
		return s.fail(c, "Find users by name", err)
	}
	return c.Status(http.StatusOK).JSON(users)
}

func (s *WebServer) findOneUserByFood(c *fiber.Ctx) error {
	var params common.FavoriteFoodRequest
	if err := ValidateParams(c, &params); err != nil {
		return s.fail(c, "Find user by food", err)
	}

	found, err := s.users.GetUserByFavoriteFood(context.TODO(), params.Food)
	if err != nil {
		return s.fail(c, "Find user by food", err)
	}
	return c.Status(http.StatusOK).JSON(found)
}

func (s *WebServer) findUserByID(c *fiber.Ctx) error {
	var params common.UserIDRequest
	if err := ValidateParams(c, &params); err != nil {
		return s.fail(c, "Find user by ID", err)
	}
	id, err := user.ParseID(params.ID)
	if err != nil {
		return s.fail(c, "Find user by ID", err)
	}

	found, err := s.users.GetUserByID(context.TODO(), id)
	if err != nil {
		return s.fail(c, "Find user by ID", err)
	}
	return c.Status(http.StatusOK).JSON(found)
}

// classicUpdate adds "hamburger" to the user's favorite foods with a fetch, modify, save cycle.
// Not atomic: see UserManager.AddFavoriteFood.
func (s *WebServer) classicUpdate(c *fiber.Ctx) error {
	var params common.UserIDRequest
	if err := ValidateParams(c, &params); err != nil {
		return s.fail(c, "Classic update", err)
	}
	id, err := user.ParseID(params.ID)
	if err != nil {
		return s.fail(c, "Classic update", err)
	}

	updated, err := s.users.AddFavoriteFood(context.TODO(), id, classicUpdateFood)
	if err != nil {
		return s.fail(c, "Classic update", err)
	}

	s.publish(c, services.NewUserEvent(services.EventUserUpdated, updated))
	return c.Status(http.StatusOK).JSON(updated)
}

func (s *WebServer) findOneAndUpdate(c *fiber.Ctx) error {
	var params common.UserNameRequest
	if err := ValidateParams(c, &params); err != nil {
		return s.fail(c, "Find one and update", err)
	}

	updated, err := s.users.SetAgeByName(context.TODO(), params.Name, findOneAndUpdateAge)
	if err != nil {
		return s.fail(c, "Find one and update", err)
	}

	s.publish(c, services.NewUserEvent(services.EventUserUpdated, updated))
	return c.Status(http.StatusOK).JSON(updated)
}

func (s *WebServer) deleteUsersByName(c *fiber.Ctx) error {
	var params common.UserNameRequest
	if err := ValidateParams(c, &params); err != nil {
		return s.fail(c, "Delete users by name", err)
	}

	count, err := s.users.DeleteUsersByName(context.TODO(), params.Name)
	if err != nil {
		return s.fail(c, "Delete users by name", err)
	}
	if count == 0 {
		return s.fail(c, "Delete users by name", user.ErrUserNotFound)
	}

	s.logger.Infof("%d users named %q deleted", count, params.Name)
	s.publish(c, services.NewBulkDeleteEvent(params.Name, count))
	return c.Status(http.StatusOK).JSON(common.DeleteManyResponse{DeletedCount: count})
}

// searchBurritos returns the first two burrito lovers by name, without their age.
func (s *WebServer) searchBurritos(c *fiber.Ctx) error {
	users, err := s.users.SearchByFavoriteFood(context.TODO(), searchFood, searchLimit)
	if err != nil {
		return s.fail(c, "Search burritos", err)
	}
	return c.Status(http.StatusOK).JSON(users)
}
