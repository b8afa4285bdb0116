// This file contains the User struct stored in the users collection and the schema rules every stored user must satisfy.
//
// bson tags name the document fields, json tags name the API fields. Age is a pointer so that an absent age
// (never set, or projected out of a query) is omitted instead of rendered as 0.

package user

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrUserNotFound is returned when a requested user is not found in the database.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidUserID is returned when an ID is not a valid ObjectID hex string.
	ErrInvalidUserID = errors.New("invalid user ID")
	// ErrValidation wraps every schema validation failure.
	ErrValidation = errors.New("user validation failed")
)

var validate *validator.Validate

func init() {
	validate = NewValidator()
}

// NewValidator returns a validator that reports fields by their json name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// User represents a user document.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name" validate:"required"`
	Age           *int               `bson:"age,omitempty" json:"age,omitempty" validate:"omitnil,gte=0"`
	FavoriteFoods []string           `bson:"favoriteFoods" json:"favoriteFoods"`
}

// Patch holds the fields of a partial update. Nil fields are left untouched.
type Patch struct {
	Name          *string   `bson:"name,omitempty" json:"name,omitempty" validate:"omitnil,min=1"`
	Age           *int      `bson:"age,omitempty" json:"age,omitempty" validate:"omitnil,gte=0"`
	FavoriteFoods *[]string `bson:"favoriteFoods,omitempty" json:"favoriteFoods,omitempty"`
}

// Validate checks the user against the schema: a name is required and age, when set, must not be negative.
func (u *User) Validate() error {
	if u.FavoriteFoods == nil {
		u.FavoriteFoods = []string{}
	}
	return wrapValidation(validate.Struct(u))
}

// Validate checks the patch with the same rules as User for the fields it sets.
func (p *Patch) Validate() error {
	return wrapValidation(validate.Struct(p))
}

// IsEmpty reports whether the patch sets no fields.
func (p *Patch) IsEmpty() bool {
	return p.Name == nil && p.Age == nil && p.FavoriteFoods == nil
}

// HasFavoriteFood reports whether food is already in the user's list.
func (u *User) HasFavoriteFood(food string) bool {
	return slices.Contains(u.FavoriteFoods, food)
}

// AddFavoriteFood appends food unless it is already present. Returns true if the list changed.
func (u *User) AddFavoriteFood(food string) bool {
	if u.HasFavoriteFood(food) {
		return false
	}
	u.FavoriteFoods = append(u.FavoriteFoods, food)
	return true
}

// ParseID converts a hex string into an ObjectID, returning ErrInvalidUserID on malformed input.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidUserID
	}
	return id, nil
}

// ValidationMessage renders validator errors as a short, field-named message,
// e.g. "name is required; age must be greater than or equal to 0".
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe)
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters long", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed on the '%s' rule", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// fieldPath drops the top level struct name from the namespace, so "User.name" becomes "name"
// and "[1].name" stays "[1].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 && !strings.HasPrefix(ns, "[") {
		return ns[i+1:]
	}
	return ns
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, ValidationMessage(err))
}
