// Package user contains the implementation of interacting with the MongoDB users collection.
// The UserManager struct is responsible for interacting with the MongoDB users collection. It is CRUD for the user collection.
// The User struct is the stored document and carries the schema rules (name required, age not negative).
// Interaction is primarily by ID or by exact name. BSON is used to interact with the database.
package user
