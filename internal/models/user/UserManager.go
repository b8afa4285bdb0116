// This file contains the UserManager implementation, which is responsible for interacting with the MongoDB users collection.
// The UserManager struct contains a pointer to the users collection and a logger. Each method maps to a single driver call
// (AddFavoriteFood is the one read-then-write exception) and converts mongo.ErrNoDocuments into ErrUserNotFound.
// Schema validation runs before every write, so nothing that breaks the User rules reaches the collection.

package user

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/users-api/webserver/internal/log"
)

type UserManager struct {
	collection *mongo.Collection
	logger     *log.Logger
}

// NewUserManager creates a new instance of UserManager backed by database.collection.
func NewUserManager(client *mongo.Client, database, collection string, logger *log.Logger) *UserManager {
	return NewUserManagerForCollection(client.Database(database).Collection(collection), logger)
}

// NewUserManagerForCollection creates a UserManager on an existing collection handle.
func NewUserManagerForCollection(collection *mongo.Collection, logger *log.Logger) *UserManager {
	return &UserManager{
		collection: collection,
		logger:     logger,
	}
}

// EnsureIndexes creates the non-unique name index used by the name lookups and the sorted food search.
func (um *UserManager) EnsureIndexes(ctx context.Context) error {
	_, err := um.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetName("name_1"),
	})
	if err != nil {
		return fmt.Errorf("failed to create name index: %w", err)
	}
	return nil
}

// Ping checks that the database behind the collection is reachable.
func (um *UserManager) Ping(ctx context.Context) error {
	return um.collection.Database().Client().Ping(ctx, nil)
}

// GetAllUsers returns every user in the collection.
func (um *UserManager) GetAllUsers(ctx context.Context) ([]User, error) {
	return um.find(ctx, bson.M{})
}

// CreateUser validates the user, assigns a new ID and inserts it.
// Returns the stored user, or an error wrapping ErrValidation if the user breaks the schema.
func (um *UserManager) CreateUser(ctx context.Context, user *User) (*User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}

	user.ID = primitive.NewObjectID()
	if _, err := um.collection.InsertOne(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// CreateUsers validates every user and inserts them in one ordered bulk insert.
// Nothing is written if any user fails validation.
func (um *UserManager) CreateUsers(ctx context.Context, users []User) ([]User, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: at least one user is required", ErrValidation)
	}

	docs := make([]interface{}, len(users))
	for i := range users {
		if err := users[i].Validate(); err != nil {
			return nil, fmt.Errorf("user at index %d: %w", i, err)
		}
		users[i].ID = primitive.NewObjectID()
		docs[i] = users[i]
	}

	if _, err := um.collection.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to insert users: %w", err)
	}
	return users, nil
}

// UpdateUserByID applies the patch to the user with the given ID and returns the updated document.
// An empty patch returns the current document unchanged.
func (um *UserManager) UpdateUserByID(ctx context.Context, id primitive.ObjectID, patch *Patch) (*User, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return um.GetUserByID(ctx, id)
	}
	return um.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": patch})
}

// DeleteUserByID removes the user with the given ID and returns the removed document.
func (um *UserManager) DeleteUserByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return decodeOne(um.collection.FindOneAndDelete(ctx, bson.M{"_id": id}))
}

// GetUsersByName returns every user whose name matches exactly. The result is never nil.
func (um *UserManager) GetUsersByName(ctx context.Context, name string) ([]User, error) {
	return um.find(ctx, bson.M{"name": name})
}

// GetUserByFavoriteFood returns the first user whose favoriteFoods contains food.
func (um *UserManager) GetUserByFavoriteFood(ctx context.Context, food string) (*User, error) {
	return um.findOne(ctx, bson.M{"favoriteFoods": food})
}

// GetUserByID retrieves a user from the database based on the given ID.
func (um *UserManager) GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return um.findOne(ctx, bson.M{"_id": id})
}

// AddFavoriteFood fetches the user, appends food if it is missing and writes the list back.
//
// The read and the write are two separate calls with no guard in between, so a concurrent writer can
// interleave and one of the two updates to favoriteFoods will be lost.
func (um *UserManager) AddFavoriteFood(ctx context.Context, id primitive.ObjectID, food string) (*User, error) {
	user, err := um.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !user.AddFavoriteFood(food) {
		um.logger.Debugf("User %s already has %q, nothing to save", user.ID.Hex(), food)
		return user, nil
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	result, err := um.collection.UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"favoriteFoods": user.FavoriteFoods}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// SetAgeByName sets age on the first user matching name and returns the updated document.
func (um *UserManager) SetAgeByName(ctx context.Context, name string, age int) (*User, error) {
	patch := &Patch{Age: &age}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	return um.findOneAndUpdate(ctx, bson.M{"name": name}, bson.M{"$set": patch})
}

// DeleteUsersByName removes every user matching name and returns how many were removed.
func (um *UserManager) DeleteUsersByName(ctx context.Context, name string) (int64, error) {
	result, err := um.collection.DeleteMany(ctx, bson.M{"name": name})
	if err != nil {
		return 0, fmt.Errorf("failed to delete users: %w", err)
	}
	return result.DeletedCount, nil
}

// SearchByFavoriteFood returns at most limit users whose favoriteFoods contains food, sorted by name
// ascending, with age projected out.
func (um *UserManager) SearchByFavoriteFood(ctx context.Context, food string, limit int64) ([]User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(limit).
		SetProjection(bson.D{{Key: "age", Value: 0}})
	return um.find(ctx, bson.M{"favoriteFoods": food}, opts)
}

func (um *UserManager) find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]User, error) {
	cursor, err := um.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	users := []User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	for i := range users {
		normalize(&users[i])
	}
	return users, nil
}

func (um *UserManager) findOne(ctx context.Context, filter interface{}) (*User, error) {
	return decodeOne(um.collection.FindOne(ctx, filter))
}

func (um *UserManager) findOneAndUpdate(ctx context.Context, filter, update interface{}) (*User, error) {
	return decodeOne(um.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	))
}

// decodeOne decodes a single-document result, mapping a missing document to ErrUserNotFound.
func decodeOne(result *mongo.SingleResult) (*User, error) {
	var user User
	if err := result.Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	normalize(&user)
	return &user, nil
}

// normalize fills in fields that documents written by other clients may lack.
func normalize(user *User) {
	if user.FavoriteFoods == nil {
		user.FavoriteFoods = []string{}
	}
}
