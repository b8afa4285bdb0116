// This file contains the expected structure of incoming requests to the API. These structs are used to
// validate incoming requests, provide a consistent interface for handling requests, and to pass data to the
// appropriate handlers.
//
// Body structs carry json tags, path parameter structs carry params tags. They are kept apart so a body
// parser never touches a path value and vice versa.

package common

import (
	"github.com/users-api/webserver/internal/models/user"
)

// CreateUserRequest is the body of POST /users/, POST /users/create-one and each element of POST /users/create-many.
type CreateUserRequest struct {
	Name          string   `json:"name" validate:"required"`
	Age           *int     `json:"age,omitempty" validate:"omitnil,gte=0"`
	FavoriteFoods []string `json:"favoriteFoods"`
}

// ToUser converts the request into a new, unsaved User.
func (r *CreateUserRequest) ToUser() *user.User {
	foods := r.FavoriteFoods
	if foods == nil {
		foods = []string{}
	}
	return &user.User{
		Name:          r.Name,
		Age:           r.Age,
		FavoriteFoods: foods,
	}
}

// UpdateUserRequest is the body of PUT /users/:id. Absent fields are left unchanged.
type UpdateUserRequest struct {
	Name          *string   `json:"name,omitempty" validate:"omitnil,min=1"`
	Age           *int      `json:"age,omitempty" validate:"omitnil,gte=0"`
	FavoriteFoods *[]string `json:"favoriteFoods,omitempty"`
}

// ToPatch converts the request into a user.Patch.
func (r *UpdateUserRequest) ToPatch() *user.Patch {
	return &user.Patch{
		Name:          r.Name,
		Age:           r.Age,
		FavoriteFoods: r.FavoriteFoods,
	}
}

type UserIDRequest struct {
	ID string `params:"id" validate:"required"`
}

type UserNameRequest struct {
	Name string `params:"name" validate:"required"`
}

type FavoriteFoodRequest struct {
	Food string `params:"food" validate:"required"`
}

// DeleteManyResponse is returned by DELETE /users/delete-many-by-name/:name.
type DeleteManyResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
